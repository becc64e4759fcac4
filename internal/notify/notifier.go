// Package notify delivers game lifecycle events to operators.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// EventType names a lifecycle change
type EventType string

const (
	EntryEliminated    EventType = "entry_eliminated"
	InstanceCompleted  EventType = "instance_completed"
	InstanceRolledOver EventType = "instance_rolled_over"
	InstanceCancelled  EventType = "instance_cancelled"
	InstanceActivated  EventType = "instance_activated"
	RoundAdvanced      EventType = "round_advanced"
)

// Event is what the processor reports after persisting a change
type Event struct {
	Type     EventType
	Instance models.GameInstance
	Entries  []models.Entry  // eliminated entries or winners
	Payouts  []models.Payout // InstanceCompleted only
	Round    int
	Pot      decimal.Decimal // net pot settled or carried
	At       time.Time
}

// Notifier delivers events. Implementations must not block the caller for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes events to slog
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, ev Event) error {
	args := []any{
		"event", string(ev.Type),
		"instance_id", ev.Instance.ID,
		"game", string(ev.Instance.GameType),
		"round", ev.Round,
	}
	switch ev.Type {
	case EntryEliminated:
		args = append(args, "entries", entryIDs(ev.Entries))
	case InstanceCompleted:
		args = append(args, "winners", entryIDs(ev.Entries), "pot", ev.Pot.StringFixed(2), "currency", ev.Instance.Currency)
	case InstanceRolledOver:
		args = append(args, "carried", ev.Pot.StringFixed(2), "currency", ev.Instance.Currency)
	case InstanceActivated, InstanceCancelled:
		args = append(args, "entries", len(ev.Entries))
	}
	n.logger.InfoContext(ctx, "Game event", args...)
	return nil
}

func entryIDs(entries []models.Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

// Multi fans an event out to several notifiers, joining their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
