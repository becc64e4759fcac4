package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint is violated
	ErrConflict = errors.New("conflict")
)

// InstanceFilter narrows ListInstances; zero values match everything
type InstanceFilter struct {
	Status      models.InstanceStatus
	GameType    models.GameType
	Competition string
}

func (f InstanceFilter) match(inst models.GameInstance) bool {
	return (f.Status == "" || inst.Status == f.Status) &&
		(f.GameType == "" || inst.GameType == f.GameType) &&
		(f.Competition == "" || inst.Competition == f.Competition)
}

// RoundResult is every write produced by one processing step of an instance.
// ApplyRoundResult persists it atomically.
type RoundResult struct {
	Instance    models.GameInstance
	Entries     []models.Entry
	Picks       []models.Pick
	Predictions []models.ScorePrediction
	Assignments []models.TeamAssignment
	Payouts     []models.Payout
	// Rollover is the net pot carried to the next instance of the same game and competition
	Rollover decimal.Decimal
}

// Storage is the relational store of game state
type Storage interface {
	CreateInstance(ctx context.Context, inst *models.GameInstance) error
	GetInstance(ctx context.Context, id int64) (*models.GameInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]models.GameInstance, error)
	UpdateInstance(ctx context.Context, inst *models.GameInstance) error

	// CreateEntry returns ErrConflict if the user already entered the instance
	CreateEntry(ctx context.Context, e *models.Entry) error
	GetEntry(ctx context.Context, id int64) (*models.Entry, error)
	ListEntries(ctx context.Context, instanceID int64) ([]models.Entry, error)
	UpdateEntries(ctx context.Context, entries []models.Entry) error

	// SavePick upserts on (entry, round)
	SavePick(ctx context.Context, p *models.Pick) error
	ListPicks(ctx context.Context, instanceID int64) ([]models.Pick, error)
	UpdatePicks(ctx context.Context, picks []models.Pick) error

	// SaveScorePredictions upserts on (entry, fixture)
	SaveScorePredictions(ctx context.Context, preds []models.ScorePrediction) error
	// ListScorePredictions returns predictions of a round; round 0 returns all
	ListScorePredictions(ctx context.Context, instanceID int64, round int) ([]models.ScorePrediction, error)
	UpdateScorePredictions(ctx context.Context, preds []models.ScorePrediction) error

	// SaveTablePrediction upserts on entry
	SaveTablePrediction(ctx context.Context, t *models.TablePrediction) error
	ListTablePredictions(ctx context.Context, instanceID int64) ([]models.TablePrediction, error)

	SaveAssignments(ctx context.Context, assignments []models.TeamAssignment) error
	ListAssignments(ctx context.Context, instanceID int64) ([]models.TeamAssignment, error)

	UpsertFixtures(ctx context.Context, fixtures []models.Fixture) error
	ListFixtures(ctx context.Context, competition string, season, fromRound, toRound int) ([]models.Fixture, error)

	SavePayouts(ctx context.Context, payouts []models.Payout) error
	ListPayouts(ctx context.Context, instanceID int64) ([]models.Payout, error)

	// AddRolloverPot credits the next open instance of the game and competition,
	// or the rollover ledger when there is none
	AddRolloverPot(ctx context.Context, gameType models.GameType, competition string, amount decimal.Decimal) error
	// TakeRolloverPot empties the ledger row and returns its amount
	TakeRolloverPot(ctx context.Context, gameType models.GameType, competition string) (decimal.Decimal, error)

	ApplyRoundResult(ctx context.Context, res RoundResult) error

	// Tables lists the tables clean-db may truncate
	Tables() []string
	CleanTable(ctx context.Context, table string) error

	Close() error
}
