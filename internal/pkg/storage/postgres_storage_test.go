package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// Runs against a real database only when POSTGRES_TEST_DSN is set.
func newTestPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	s, err := NewPostgresStorage(&config.PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewPostgresStorage: %v", err)
	}
	ctx := context.Background()
	for _, table := range s.Tables() {
		if err := s.CleanTable(ctx, table); err != nil {
			t.Fatalf("CleanTable(%s): %v", table, err)
		}
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage_RoundTrip(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	inst := newInstance(t, s, models.TablePredictor, models.InstanceOpen)

	e := models.Entry{InstanceID: inst.ID, UserID: "u1", PaymentRef: "pay_1"}
	if err := s.CreateEntry(ctx, &e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if err := s.CreateEntry(ctx, &models.Entry{InstanceID: inst.ID, UserID: "u1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate entry error = %v, want ErrConflict", err)
	}

	table := models.TablePrediction{EntryID: e.ID, InstanceID: inst.ID, Positions: []string{"Arsenal", "Liverpool"}}
	if err := s.SaveTablePrediction(ctx, &table); err != nil {
		t.Fatalf("SaveTablePrediction: %v", err)
	}
	tables, err := s.ListTablePredictions(ctx, inst.ID)
	if err != nil || len(tables) != 1 || tables[0].Positions[1] != "Liverpool" {
		t.Fatalf("tables = %+v, err = %v", tables, err)
	}

	inst.Status = models.InstanceActive
	e.Score = 4
	if err := s.ApplyRoundResult(ctx, RoundResult{Instance: inst, Entries: []models.Entry{e}}); err != nil {
		t.Fatalf("ApplyRoundResult: %v", err)
	}
	got, err := s.GetEntry(ctx, e.ID)
	if err != nil || got.Score != 4 {
		t.Fatalf("entry = %+v, err = %v", got, err)
	}
	if _, err := s.GetInstance(ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing instance error = %v", err)
	}
}

func TestPostgresStorage_Rollover(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	if err := s.AddRolloverPot(ctx, models.WeeklyScore, "PL", decimal.RequireFromString("7.20")); err != nil {
		t.Fatalf("AddRolloverPot: %v", err)
	}
	amount, err := s.TakeRolloverPot(ctx, models.WeeklyScore, "PL")
	if err != nil || !amount.Equal(decimal.RequireFromString("7.2")) {
		t.Fatalf("TakeRolloverPot = %s, %v", amount, err)
	}
	if again, _ := s.TakeRolloverPot(ctx, models.WeeklyScore, "PL"); !again.IsZero() {
		t.Errorf("ledger not emptied: %s", again)
	}
}
