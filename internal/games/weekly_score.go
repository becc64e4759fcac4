package games

import (
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

const (
	exactScorePoints    = 3
	correctResultPoints = 1
	maxPredictedGoals   = 20
)

// WeeklyScoreRules: predict exact scores of one round; 3 points for an exact
// score, 1 for the right result. Highest total wins, zero for everyone rolls over.
type WeeklyScoreRules struct{}

func (WeeklyScoreRules) GameType() models.GameType { return models.WeeklyScore }

// ScorePoints returns points of a prediction against a finished fixture
func ScorePoints(pred models.ScorePrediction, f models.Fixture) int {
	if !f.Finished() {
		return 0
	}
	if pred.HomeGoals == *f.HomeGoals && pred.AwayGoals == *f.AwayGoals {
		return exactScorePoints
	}
	if pred.Outcome() == f.Outcome() {
		return correctResultPoints
	}
	return 0
}

func (WeeklyScoreRules) ValidateSubmission(in SubmissionInput) error {
	inst := in.Instance
	if inst.Status != models.InstanceOpen && inst.Status != models.InstanceActive {
		return invalidf("instance is %s", inst.Status)
	}
	if !in.Entry.Alive() {
		return invalidf("entry is %s", in.Entry.Status)
	}
	if in.Submission.Round != inst.StartRound {
		return invalidf("predictions are for round %d", inst.StartRound)
	}
	if len(in.Submission.Scores) == 0 {
		return invalidf("at least one score is required")
	}

	byID := make(map[int64]models.Fixture, len(in.Fixtures))
	for _, f := range in.Fixtures {
		if f.Round == inst.StartRound {
			byID[f.ID] = f
		}
	}
	seen := make(map[int64]bool)
	for _, s := range in.Submission.Scores {
		f, ok := byID[s.FixtureID]
		if !ok {
			return invalidf("fixture %d is not in round %d", s.FixtureID, inst.StartRound)
		}
		if seen[s.FixtureID] {
			return invalidf("fixture %d predicted twice", s.FixtureID)
		}
		seen[s.FixtureID] = true
		if s.HomeGoals < 0 || s.AwayGoals < 0 || s.HomeGoals > maxPredictedGoals || s.AwayGoals > maxPredictedGoals {
			return invalidf("score %d-%d is out of range", s.HomeGoals, s.AwayGoals)
		}
		if !in.Now.Before(f.KickOff) {
			return ErrLocked
		}
	}
	return nil
}

func (WeeklyScoreRules) Evaluate(in RoundInput) (Outcome, error) {
	inst := in.Instance
	out := Outcome{Instance: inst}
	if inst.Status != models.InstanceActive {
		return out, nil
	}

	round := inst.StartRound
	fixtures := models.FixturesForRound(in.Fixtures, round)
	byID := make(map[int64]models.Fixture, len(fixtures))
	for _, f := range fixtures {
		byID[f.ID] = f
	}

	book := newEntryBook(in.Entries)
	totals := make(map[int64]int)
	for _, p := range in.Predictions {
		if p.Round != round {
			continue
		}
		f, ok := byID[p.FixtureID]
		if ok && f.Settled() && !p.Settled {
			p.Points = ScorePoints(p, f)
			p.Settled = true
			out.Predictions = append(out.Predictions, p)
		}
		totals[p.EntryID] += p.Points
	}

	alive := book.alive()
	for _, e := range alive {
		book.setScore(e.ID, totals[e.ID])
	}

	if models.RoundComplete(fixtures) {
		out.SettledRounds = []int{round}
		best := 0
		for _, e := range alive {
			if totals[e.ID] > best {
				best = totals[e.ID]
			}
		}
		var winners []int64
		if best > 0 {
			for _, e := range alive {
				if totals[e.ID] == best {
					winners = append(winners, e.ID)
				}
			}
		}
		book.settle(winners, round)
		if len(winners) > 0 {
			finish(&inst, models.InstanceCompleted, in.Now)
		} else {
			finish(&inst, models.InstanceRolledOver, in.Now)
		}
	}

	book.fill(&out)
	out.Instance = inst
	return out, nil
}
