package api

import (
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

type createEntryRequest struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	PaymentRef string `json:"payment_ref" validate:"required,max=128"`
}

// handleCreateEntry joins a user to an open instance. The payment itself is
// taken by the payment processor; only its reference is stored here.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createEntryRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if inst.Status != models.InstanceOpen || !s.now().Before(inst.StartsAt) {
		writeError(w, r, errorf(http.StatusConflict, "instance %d is not open for entries", id))
		return
	}

	entry := models.Entry{
		InstanceID: id,
		UserID:     req.UserID,
		PaymentRef: req.PaymentRef,
		Status:     models.EntryActive,
	}
	if err := s.store.CreateEntry(ctx, &entry); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.store.GetInstance(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.store.ListEntries(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// LeaderboardRow is one ranked entry
type LeaderboardRow struct {
	Rank            int                `json:"rank"`
	EntryID         int64              `json:"entry_id"`
	UserID          string             `json:"user_id"`
	Status          models.EntryStatus `json:"status"`
	Score           int                `json:"score"`
	EliminatedRound int                `json:"eliminated_round,omitempty"`
	Payout          *decimal.Decimal   `json:"payout,omitempty"`
}

// Leaderboard is the ranked view of an instance
type Leaderboard struct {
	Instance models.GameInstance `json:"instance"`
	Rows     []LeaderboardRow    `json:"rows"`
}

func statusRank(s models.EntryStatus) int {
	switch s {
	case models.EntryWinner:
		return 0
	case models.EntryActive:
		return 1
	case models.EntryEliminated:
		return 2
	default:
		return 3
	}
}

// BuildLeaderboard ranks entries: winners, then entries still alive, then
// eliminated entries by how long they lasted. Within a group the game's
// score decides; Table Predictor scores are distances so lower ranks higher.
func BuildLeaderboard(inst models.GameInstance, entries []models.Entry, payouts []models.Payout) Leaderboard {
	sorted := append([]models.Entry(nil), entries...)
	lowerIsBetter := inst.GameType == models.TablePredictor
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}
		if a.Status == models.EntryEliminated && a.EliminatedRound != b.EliminatedRound {
			return a.EliminatedRound > b.EliminatedRound
		}
		if a.Score != b.Score {
			if lowerIsBetter {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})

	paid := make(map[int64]decimal.Decimal, len(payouts))
	for _, p := range payouts {
		paid[p.EntryID] = paid[p.EntryID].Add(p.Amount)
	}

	rows := make([]LeaderboardRow, 0, len(sorted))
	for i, e := range sorted {
		row := LeaderboardRow{
			Rank:            i + 1,
			EntryID:         e.ID,
			UserID:          e.UserID,
			Status:          e.Status,
			Score:           e.Score,
			EliminatedRound: e.EliminatedRound,
		}
		// Ties share a rank.
		if i > 0 {
			prev := rows[i-1]
			if prev.Status == e.Status && prev.Score == e.Score && prev.EliminatedRound == e.EliminatedRound {
				row.Rank = prev.Rank
			}
		}
		if amount, ok := paid[e.ID]; ok {
			row.Payout = &amount
		}
		rows = append(rows, row)
	}
	return Leaderboard{Instance: inst, Rows: rows}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.store.ListEntries(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payouts, err := s.store.ListPayouts(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BuildLeaderboard(*inst, entries, payouts))
}
