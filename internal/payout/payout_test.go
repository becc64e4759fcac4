package payout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPot(t *testing.T) {
	tests := []struct {
		name       string
		fee        string
		entries    int
		carried    string
		commission float64
		want       string
	}{
		{"no commission", "5.00", 10, "0", 0, "50"},
		{"ten percent", "5.00", 10, "0", 10, "45"},
		{"with rollover", "2.50", 3, "12.34", 10, "17.85"},
		{"rounds down", "1.00", 3, "0", 33.3333, "2"},
		{"no entries", "5.00", 0, "0", 10, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Pot(d(tt.fee), tt.entries, d(tt.carried), tt.commission)
			if !got.Equal(d(tt.want)) {
				t.Errorf("Pot() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSplit_RemainderGoesToLowestIDs(t *testing.T) {
	winners := []models.Entry{{ID: 30}, {ID: 10}, {ID: 20}}
	shares := Split(d("10.00"), winners)

	want := map[int64]string{10: "3.34", 20: "3.33", 30: "3.33"}
	total := decimal.Zero
	for i, w := range winners {
		if !shares[i].Equal(d(want[w.ID])) {
			t.Errorf("entry %d share = %s, want %s", w.ID, shares[i], want[w.ID])
		}
		total = total.Add(shares[i])
	}
	if !total.Equal(d("10.00")) {
		t.Errorf("shares sum to %s, want 10.00", total)
	}
}

func TestSplit_NoWinners(t *testing.T) {
	if got := Split(d("10"), nil); got != nil {
		t.Errorf("expected nil shares, got %v", got)
	}
}

func TestSettle(t *testing.T) {
	inst := models.GameInstance{ID: 7, Currency: "GBP"}
	now := time.Date(2026, 5, 24, 18, 0, 0, 0, time.UTC)
	rows := Settle(inst, d("9.01"), []models.Entry{{ID: 1, UserID: "u1"}, {ID: 2, UserID: "u2"}}, now)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !rows[0].Amount.Equal(d("4.51")) || !rows[1].Amount.Equal(d("4.50")) {
		t.Errorf("amounts = %s, %s", rows[0].Amount, rows[1].Amount)
	}
	if rows[0].Currency != "GBP" || rows[0].InstanceID != 7 || rows[1].UserID != "u2" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}
