// Package payout computes prize pots and winner shares in exact decimal cents.
package payout

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// Pot returns the net prize pool: (fee × entries + carried) less commission, rounded down to cents.
func Pot(entryFee decimal.Decimal, entries int, carried decimal.Decimal, commissionPercent float64) decimal.Decimal {
	gross := entryFee.Mul(decimal.NewFromInt(int64(entries))).Add(carried)
	keep := hundred.Sub(decimal.NewFromFloat(commissionPercent)).Div(hundred)
	return gross.Mul(keep).RoundDown(2)
}

// Split divides pot into len(winners) shares. Leftover cents go to the lowest entry IDs,
// so the shares always add up to pot.
func Split(pot decimal.Decimal, winners []models.Entry) []decimal.Decimal {
	if len(winners) == 0 {
		return nil
	}
	n := decimal.NewFromInt(int64(len(winners)))
	share := pot.Div(n).RoundDown(2)
	remainder := pot.Sub(share.Mul(n))
	extra := remainder.Div(cent).IntPart()

	shares := make([]decimal.Decimal, len(winners))
	for i := range shares {
		shares[i] = share
	}

	order := make([]int, len(winners))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return winners[order[a]].ID < winners[order[b]].ID })
	for i := int64(0); i < extra && int(i) < len(order); i++ {
		shares[order[i]] = shares[order[i]].Add(cent)
	}
	return shares
}

// Settle builds payout rows for the winners of an instance
func Settle(inst models.GameInstance, pot decimal.Decimal, winners []models.Entry, now time.Time) []models.Payout {
	shares := Split(pot, winners)
	out := make([]models.Payout, 0, len(winners))
	for i, w := range winners {
		out = append(out, models.Payout{
			InstanceID: inst.ID,
			EntryID:    w.ID,
			UserID:     w.UserID,
			Amount:     shares[i],
			Currency:   inst.Currency,
			CreatedAt:  now,
		})
	}
	return out
}
