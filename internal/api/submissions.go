package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Vodeneev/vodeneevgames/internal/games"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

type pickRequest struct {
	Round int    `json:"round" validate:"required,gt=0"`
	Team  string `json:"team" validate:"required,max=100"`
}

type scoreRequest struct {
	FixtureID int64 `json:"fixture_id" validate:"required,gt=0"`
	Home      int   `json:"home" validate:"gte=0"`
	Away      int   `json:"away" validate:"gte=0"`
}

type predictionsRequest struct {
	Round  int            `json:"round" validate:"required,gt=0"`
	Scores []scoreRequest `json:"scores" validate:"required,min=1,dive"`
}

type tableRequest struct {
	Positions []string `json:"positions" validate:"required,min=2,dive,required"`
}

// submissionTarget is the entry a submission is for, with its instance
type submissionTarget struct {
	entry models.Entry
	inst  models.GameInstance
}

func (s *Server) loadTarget(ctx context.Context, r *http.Request, want models.GameType) (submissionTarget, error) {
	id, err := pathID(r)
	if err != nil {
		return submissionTarget{}, err
	}
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return submissionTarget{}, err
	}
	inst, err := s.store.GetInstance(ctx, entry.InstanceID)
	if err != nil {
		return submissionTarget{}, err
	}
	if inst.GameType != want {
		return submissionTarget{}, fmt.Errorf("%w: instance %d is %s", games.ErrInvalidPick, inst.ID, inst.GameType.DisplayName())
	}
	return submissionTarget{entry: *entry, inst: *inst}, nil
}

// roundFixtures returns fixtures of a round from the store, pulling them from
// the data source on a miss
func (s *Server) roundFixtures(ctx context.Context, inst models.GameInstance, round int) ([]models.Fixture, error) {
	fixtures, err := s.store.ListFixtures(ctx, inst.Competition, inst.Season, round, round)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	if len(fixtures) > 0 || s.data == nil {
		return fixtures, nil
	}
	fixtures, err = s.data.Fixtures(ctx, inst.Competition, inst.Season, round)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}
	if len(fixtures) > 0 {
		if err := s.store.UpsertFixtures(ctx, fixtures); err != nil {
			return nil, fmt.Errorf("failed to store fixtures: %w", err)
		}
	}
	return fixtures, nil
}

func (s *Server) validate(t submissionTarget, in games.SubmissionInput) error {
	rules, err := games.MustForType(t.inst.GameType)
	if err != nil {
		return err
	}
	in.Instance = t.inst
	in.Entry = t.entry
	in.Now = s.now().UTC()
	return rules.ValidateSubmission(in)
}

func (s *Server) handleSubmitPick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	t, err := s.loadTarget(ctx, r, models.LastManStanding)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fixtures, err := s.roundFixtures(ctx, t.inst, req.Round)
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := s.store.ListPicks(ctx, t.inst.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var own []models.Pick
	for _, p := range all {
		if p.EntryID == t.entry.ID {
			own = append(own, p)
		}
	}

	err = s.validate(t, games.SubmissionInput{
		Submission: games.Submission{Round: req.Round, TeamName: req.Team},
		Fixtures:   fixtures,
		EntryPicks: own,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	pick := models.Pick{
		EntryID:    t.entry.ID,
		InstanceID: t.inst.ID,
		Round:      req.Round,
		TeamName:   req.Team,
		Result:     models.PickPending,
	}
	if err := s.store.SavePick(ctx, &pick); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pick)
}

func (s *Server) handleSubmitPredictions(w http.ResponseWriter, r *http.Request) {
	var req predictionsRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	t, err := s.loadTarget(ctx, r, models.WeeklyScore)
	if err != nil {
		writeError(w, r, err)
		return
	}

	fixtures, err := s.roundFixtures(ctx, t.inst, req.Round)
	if err != nil {
		writeError(w, r, err)
		return
	}
	preds := make([]models.ScorePrediction, 0, len(req.Scores))
	for _, sc := range req.Scores {
		preds = append(preds, models.ScorePrediction{
			EntryID:    t.entry.ID,
			InstanceID: t.inst.ID,
			Round:      req.Round,
			FixtureID:  sc.FixtureID,
			HomeGoals:  sc.Home,
			AwayGoals:  sc.Away,
		})
	}

	err = s.validate(t, games.SubmissionInput{
		Submission: games.Submission{Round: req.Round, Scores: preds},
		Fixtures:   fixtures,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.store.SaveScorePredictions(ctx, preds); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, preds)
}

func (s *Server) handleSubmitTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	t, err := s.loadTarget(ctx, r, models.TablePredictor)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var teams []string
	if s.data != nil {
		if teams, err = s.data.Teams(ctx, t.inst.Competition, t.inst.Season); err != nil {
			writeError(w, r, fmt.Errorf("failed to fetch teams: %w", err))
			return
		}
	}

	err = s.validate(t, games.SubmissionInput{
		Submission: games.Submission{Positions: req.Positions},
		Teams:      teams,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	table := models.TablePrediction{
		EntryID:    t.entry.ID,
		InstanceID: t.inst.ID,
		Positions:  req.Positions,
	}
	if err := s.store.SaveTablePrediction(ctx, &table); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, table)
}
