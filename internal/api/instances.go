package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/storage"
)

type createInstanceRequest struct {
	GameType    string    `json:"game_type" validate:"required"`
	Name        string    `json:"name" validate:"required,max=100"`
	Competition string    `json:"competition" validate:"required,alphanum,max=10"`
	Season      int       `json:"season" validate:"required,gte=2000,lte=2100"`
	StartRound  int       `json:"start_round" validate:"required,gt=0"`
	EndRound    int       `json:"end_round" validate:"required,gtefield=StartRound"`
	EntryFee    string    `json:"entry_fee" validate:"required,numeric"`
	Currency    string    `json:"currency" validate:"required,len=3,alpha"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.InstanceFilter{
		Status:      models.InstanceStatus(q.Get("status")),
		GameType:    models.GameType(q.Get("type")),
		Competition: q.Get("competition"),
	}
	if filter.GameType != "" && !filter.GameType.Valid() {
		writeError(w, r, errorf(http.StatusBadRequest, "unknown game type %q", filter.GameType))
		return
	}

	instances, err := s.store.ListInstances(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if instances == nil {
		instances = []models.GameInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inst, err := s.store.GetInstance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// handleCreateInstance opens a new instance and seeds it with any pot
// left over from earlier instances of the same game
func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inst, err := req.instance(s.now().UTC())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	carried, err := s.store.TakeRolloverPot(ctx, inst.GameType, inst.Competition)
	if err != nil {
		writeError(w, r, fmt.Errorf("failed to take rollover pot: %w", err))
		return
	}
	inst.CarriedPot = carried

	if err := s.store.CreateInstance(ctx, &inst); err != nil {
		if carried.IsPositive() {
			// Put the pot back so it is not lost with the failed insert.
			if rerr := s.store.AddRolloverPot(ctx, inst.GameType, inst.Competition, carried); rerr != nil {
				slog.Error("failed to return rollover pot", "game_type", inst.GameType,
					"competition", inst.Competition, "amount", carried.String(), "error", rerr)
			}
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (req createInstanceRequest) instance(now time.Time) (models.GameInstance, error) {
	gt := models.GameType(req.GameType)
	if !gt.Valid() {
		return models.GameInstance{}, errorf(http.StatusBadRequest, "unknown game type %q", req.GameType)
	}
	if gt == models.WeeklyScore && req.StartRound != req.EndRound {
		return models.GameInstance{}, errorf(http.StatusBadRequest, "weekly score instances cover a single round")
	}
	fee, err := decimal.NewFromString(req.EntryFee)
	if err != nil || fee.IsNegative() {
		return models.GameInstance{}, errorf(http.StatusBadRequest, "invalid entry fee %q", req.EntryFee)
	}
	if !req.StartsAt.After(now) {
		return models.GameInstance{}, errorf(http.StatusBadRequest, "starts_at must be in the future")
	}
	return models.GameInstance{
		GameType:     gt,
		Name:         req.Name,
		Competition:  strings.ToUpper(req.Competition),
		Season:       req.Season,
		StartRound:   req.StartRound,
		EndRound:     req.EndRound,
		CurrentRound: req.StartRound,
		EntryFee:     fee,
		Currency:     strings.ToUpper(req.Currency),
		Status:       models.InstanceOpen,
		StartsAt:     req.StartsAt.UTC(),
	}, nil
}
