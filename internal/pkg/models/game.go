package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameType identifies one of the mini-games
type GameType string

const (
	LastManStanding GameType = "last_man_standing"
	TablePredictor  GameType = "table_predictor"
	WeeklyScore     GameType = "weekly_score"
	RaceTo33        GameType = "race_to_33"
)

// GameTypes lists every supported game type
var GameTypes = []GameType{LastManStanding, TablePredictor, WeeklyScore, RaceTo33}

// Valid reports whether g is a known game type
func (g GameType) Valid() bool {
	for _, t := range GameTypes {
		if t == g {
			return true
		}
	}
	return false
}

// DisplayName returns a human-readable name of the game
func (g GameType) DisplayName() string {
	switch g {
	case LastManStanding:
		return "Last Man Standing"
	case TablePredictor:
		return "Table Predictor"
	case WeeklyScore:
		return "Weekly Score Predictor"
	case RaceTo33:
		return "Race to 33"
	default:
		return string(g)
	}
}

// InstanceStatus is the lifecycle state of a game instance
type InstanceStatus string

const (
	InstanceOpen       InstanceStatus = "open"
	InstanceActive     InstanceStatus = "active"
	InstanceCompleted  InstanceStatus = "completed"
	InstanceRolledOver InstanceStatus = "rolled_over"
	InstanceCancelled  InstanceStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceRolledOver || s == InstanceCancelled
}

// CanTransition reports whether an instance may move from s to next
func (s InstanceStatus) CanTransition(next InstanceStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case InstanceOpen:
		return next == InstanceActive || next == InstanceCancelled
	case InstanceActive:
		return next == InstanceCompleted || next == InstanceRolledOver || next == InstanceCancelled
	default:
		return false
	}
}

// GameInstance is a time-boxed run of one game type over a competition
type GameInstance struct {
	ID           int64           `json:"id"`
	GameType     GameType        `json:"game_type"`
	Name         string          `json:"name"`
	Competition  string          `json:"competition"` // e.g. PL
	Season       int             `json:"season"`      // starting year, e.g. 2026
	StartRound   int             `json:"start_round"`
	EndRound     int             `json:"end_round"`
	CurrentRound int             `json:"current_round"`
	EntryFee     decimal.Decimal `json:"entry_fee"`
	Currency     string          `json:"currency"`
	CarriedPot   decimal.Decimal `json:"carried_pot"`
	Status       InstanceStatus  `json:"status"`
	StartsAt     time.Time       `json:"starts_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// EntryStatus is the state of a user's entry in an instance
type EntryStatus string

const (
	EntryActive     EntryStatus = "active"
	EntryEliminated EntryStatus = "eliminated"
	EntryWinner     EntryStatus = "winner"
	EntryRefunded   EntryStatus = "refunded"
)

// Entry is a user's paid participation in a game instance
type Entry struct {
	ID              int64       `json:"id"`
	InstanceID      int64       `json:"instance_id"`
	UserID          string      `json:"user_id"`
	PaymentRef      string      `json:"payment_ref"`
	Status          EntryStatus `json:"status"`
	Score           int         `json:"score"`
	EliminatedRound int         `json:"eliminated_round,omitempty"`
	JoinedAt        time.Time   `json:"joined_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Alive reports whether the entry is still in play
func (e Entry) Alive() bool {
	return e.Status == EntryActive
}

// Payout is a prize share recorded when an instance settles
type Payout struct {
	InstanceID int64           `json:"instance_id"`
	EntryID    int64           `json:"entry_id"`
	UserID     string          `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
}
