package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

func newInstance(t *testing.T, s Storage, gt models.GameType, status models.InstanceStatus) models.GameInstance {
	t.Helper()
	inst := models.GameInstance{
		GameType: gt, Name: "test", Competition: "PL", Season: 2026,
		StartRound: 1, EndRound: 3, CurrentRound: 1,
		EntryFee: decimal.NewFromInt(5), Currency: "GBP", Status: status,
		StartsAt: time.Date(2026, 8, 15, 11, 30, 0, 0, time.UTC),
	}
	if err := s.CreateInstance(context.Background(), &inst); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	return inst
}

func TestMemoryStorage_EntryConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	inst := newInstance(t, s, models.LastManStanding, models.InstanceOpen)

	e := models.Entry{InstanceID: inst.ID, UserID: "u1"}
	if err := s.CreateEntry(ctx, &e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if e.Status != models.EntryActive {
		t.Errorf("status = %s, want active", e.Status)
	}
	dup := models.Entry{InstanceID: inst.ID, UserID: "u1"}
	if err := s.CreateEntry(ctx, &dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate entry error = %v, want ErrConflict", err)
	}
	missing := models.Entry{InstanceID: 999, UserID: "u1"}
	if err := s.CreateEntry(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entry on missing instance error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorage_PickUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	inst := newInstance(t, s, models.LastManStanding, models.InstanceActive)
	e := models.Entry{InstanceID: inst.ID, UserID: "u1"}
	s.CreateEntry(ctx, &e)

	first := models.Pick{EntryID: e.ID, InstanceID: inst.ID, Round: 1, TeamName: "Arsenal"}
	s.SavePick(ctx, &first)
	second := models.Pick{EntryID: e.ID, InstanceID: inst.ID, Round: 1, TeamName: "Chelsea"}
	s.SavePick(ctx, &second)

	picks, _ := s.ListPicks(ctx, inst.ID)
	if len(picks) != 1 || picks[0].TeamName != "Chelsea" || picks[0].ID != first.ID {
		t.Fatalf("picks = %+v, want one Chelsea pick keeping id %d", picks, first.ID)
	}
	if picks[0].Result != models.PickPending {
		t.Errorf("result = %s, want pending", picks[0].Result)
	}
}

func TestMemoryStorage_ListInstancesFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	newInstance(t, s, models.LastManStanding, models.InstanceOpen)
	b := newInstance(t, s, models.WeeklyScore, models.InstanceOpen)
	newInstance(t, s, models.WeeklyScore, models.InstanceActive)

	got, _ := s.ListInstances(ctx, InstanceFilter{Status: models.InstanceOpen, GameType: models.WeeklyScore})
	if len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("filtered instances = %+v", got)
	}
	all, _ := s.ListInstances(ctx, InstanceFilter{})
	if len(all) != 3 {
		t.Errorf("all instances = %d, want 3", len(all))
	}
}

func TestMemoryStorage_RolloverGoesToNextOpenInstance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if err := s.AddRolloverPot(ctx, models.LastManStanding, "PL", decimal.RequireFromString("18.00")); err != nil {
		t.Fatalf("AddRolloverPot: %v", err)
	}
	amount, _ := s.TakeRolloverPot(ctx, models.LastManStanding, "PL")
	if !amount.Equal(decimal.RequireFromString("18")) {
		t.Fatalf("ledger amount = %s, want 18", amount)
	}
	if again, _ := s.TakeRolloverPot(ctx, models.LastManStanding, "PL"); !again.IsZero() {
		t.Errorf("ledger not emptied: %s", again)
	}

	next := newInstance(t, s, models.LastManStanding, models.InstanceOpen)
	s.AddRolloverPot(ctx, models.LastManStanding, "PL", decimal.RequireFromString("9.50"))
	got, _ := s.GetInstance(ctx, next.ID)
	if !got.CarriedPot.Equal(decimal.RequireFromString("9.5")) {
		t.Errorf("carried pot = %s, want 9.5", got.CarriedPot)
	}
}

func TestMemoryStorage_ApplyRoundResult(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	inst := newInstance(t, s, models.LastManStanding, models.InstanceActive)
	e1 := models.Entry{InstanceID: inst.ID, UserID: "u1"}
	e2 := models.Entry{InstanceID: inst.ID, UserID: "u2"}
	s.CreateEntry(ctx, &e1)
	s.CreateEntry(ctx, &e2)

	inst.Status = models.InstanceCompleted
	e1.Status = models.EntryWinner
	e2.Status, e2.EliminatedRound = models.EntryEliminated, 1
	payout := models.Payout{InstanceID: inst.ID, EntryID: e1.ID, UserID: "u1", Amount: decimal.NewFromInt(9), Currency: "GBP"}

	err := s.ApplyRoundResult(ctx, RoundResult{
		Instance: inst,
		Entries:  []models.Entry{e1, e2},
		Payouts:  []models.Payout{payout},
	})
	if err != nil {
		t.Fatalf("ApplyRoundResult: %v", err)
	}

	gotInst, _ := s.GetInstance(ctx, inst.ID)
	if gotInst.Status != models.InstanceCompleted {
		t.Errorf("instance status = %s", gotInst.Status)
	}
	entries, _ := s.ListEntries(ctx, inst.ID)
	statuses := []models.EntryStatus{entries[0].Status, entries[1].Status}
	if diff := cmp.Diff([]models.EntryStatus{models.EntryWinner, models.EntryEliminated}, statuses); diff != "" {
		t.Errorf("entry statuses mismatch (-want +got):\n%s", diff)
	}
	payouts, _ := s.ListPayouts(ctx, inst.ID)
	if len(payouts) != 1 || !payouts[0].Amount.Equal(decimal.NewFromInt(9)) {
		t.Errorf("payouts = %+v", payouts)
	}
}

func TestMemoryStorage_ApplyRoundResultUnknownEntryWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	inst := newInstance(t, s, models.LastManStanding, models.InstanceActive)

	changed := inst
	changed.Status = models.InstanceCompleted
	err := s.ApplyRoundResult(ctx, RoundResult{Instance: changed, Entries: []models.Entry{{ID: 42}}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	got, _ := s.GetInstance(ctx, inst.ID)
	if got.Status != models.InstanceActive {
		t.Errorf("instance was modified: %s", got.Status)
	}
}

func TestMemoryStorage_ListFixturesRange(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	kick := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	s.UpsertFixtures(ctx, []models.Fixture{
		{ID: 3, Competition: "PL", Season: 2026, Round: 3, KickOff: kick},
		{ID: 1, Competition: "PL", Season: 2026, Round: 1, KickOff: kick},
		{ID: 2, Competition: "PL", Season: 2026, Round: 2, KickOff: kick},
		{ID: 4, Competition: "ELC", Season: 2026, Round: 2, KickOff: kick},
	})
	got, _ := s.ListFixtures(ctx, "PL", 2026, 1, 2)
	var gotIDs []int64
	for _, f := range got {
		gotIDs = append(gotIDs, f.ID)
	}
	if diff := cmp.Diff([]int64{1, 2}, gotIDs); diff != "" {
		t.Errorf("fixture ids mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStorage_CleanTable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	newInstance(t, s, models.RaceTo33, models.InstanceOpen)
	for _, table := range s.Tables() {
		if err := s.CleanTable(ctx, table); err != nil {
			t.Fatalf("CleanTable(%s): %v", table, err)
		}
	}
	if all, _ := s.ListInstances(ctx, InstanceFilter{}); len(all) != 0 {
		t.Errorf("instances left after clean: %d", len(all))
	}
	if err := s.CleanTable(ctx, "users"); err == nil {
		t.Error("expected error for unknown table")
	}
}
