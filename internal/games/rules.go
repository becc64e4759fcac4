// Package games holds the scoring and elimination rules of every mini-game.
//
// Rules are pure: Evaluate reads a RoundInput snapshot and returns the changes
// the caller has to persist. Nothing here touches storage or the network.
package games

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

var (
	// ErrInvalidPick is returned for submissions that break the game rules
	ErrInvalidPick = errors.New("invalid pick")
	// ErrLocked is returned when the relevant fixture has already kicked off
	ErrLocked = errors.New("pick is locked")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPick, fmt.Sprintf(format, args...))
}

// Submission is what a user sends for one entry
type Submission struct {
	Round     int
	TeamName  string                   // Last Man Standing
	Scores    []models.ScorePrediction // Weekly Score Predictor
	Positions []string                 // Table Predictor
}

// SubmissionInput is the context needed to validate a submission
type SubmissionInput struct {
	Instance   models.GameInstance
	Entry      models.Entry
	Submission Submission
	Fixtures   []models.Fixture // fixtures of the submitted round (or season for table games)
	Teams      []string         // competition teams, for table orderings
	EntryPicks []models.Pick    // earlier picks of the same entry
	Now        time.Time
}

// RoundInput is a snapshot of one instance for evaluation
type RoundInput struct {
	Instance    models.GameInstance
	Now         time.Time
	Fixtures    []models.Fixture // every known fixture of rounds StartRound..EndRound
	Standings   []models.Standing
	Entries     []models.Entry
	Picks       []models.Pick
	Predictions []models.ScorePrediction
	Tables      []models.TablePrediction
	Assignments []models.TeamAssignment
	RaceTarget  int
}

// Outcome carries the changes produced by one evaluation
type Outcome struct {
	Instance      models.GameInstance
	Entries       []models.Entry           // entries whose status or score changed
	Picks         []models.Pick            // picks that were settled
	Predictions   []models.ScorePrediction // predictions that were scored
	Winners       []models.Entry
	Eliminated    []models.Entry // entries knocked out by this evaluation
	SettledRounds []int
}

// Settled reports whether the evaluation finished the instance
func (o Outcome) Settled() bool {
	return o.Instance.Status.Terminal()
}

// Changed reports whether anything needs to be written back
func (o Outcome) Changed(before models.GameInstance) bool {
	return len(o.Entries) > 0 || len(o.Picks) > 0 || len(o.Predictions) > 0 ||
		o.Instance.Status != before.Status || o.Instance.CurrentRound != before.CurrentRound
}

// Rules implements one game type
type Rules interface {
	GameType() models.GameType
	ValidateSubmission(in SubmissionInput) error
	Evaluate(in RoundInput) (Outcome, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[models.GameType]Rules{}
)

// Register adds rules for a game type; duplicates panic
func Register(r Rules) {
	if r == nil {
		panic("games: nil rules in Register")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[r.GameType()]; exists {
		panic("games: duplicate registration for " + string(r.GameType()))
	}
	registry[r.GameType()] = r
}

// ForType returns the rules of a game type
func ForType(t models.GameType) (Rules, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[t]
	return r, ok
}

// MustForType is ForType that returns an error instead of ok=false
func MustForType(t models.GameType) (Rules, error) {
	if r, ok := ForType(t); ok {
		return r, nil
	}
	return nil, fmt.Errorf("games: no rules for game type %q", t)
}

func init() {
	Register(LastManStandingRules{})
	Register(WeeklyScoreRules{})
	Register(TablePredictorRules{})
	Register(RaceTo33Rules{})
}

// entryBook tracks entry mutations during one evaluation
type entryBook struct {
	byID       map[int64]*models.Entry
	order      []int64
	changed    map[int64]bool
	eliminated []int64
	winners    []int64
}

func newEntryBook(entries []models.Entry) *entryBook {
	b := &entryBook{
		byID:    make(map[int64]*models.Entry, len(entries)),
		changed: make(map[int64]bool),
	}
	for i := range entries {
		e := entries[i]
		b.byID[e.ID] = &e
		b.order = append(b.order, e.ID)
	}
	sort.Slice(b.order, func(i, j int) bool { return b.order[i] < b.order[j] })
	return b
}

func (b *entryBook) alive() []*models.Entry {
	var out []*models.Entry
	for _, id := range b.order {
		if e := b.byID[id]; e.Alive() {
			out = append(out, e)
		}
	}
	return out
}

func (b *entryBook) eliminate(id int64, round int) {
	e := b.byID[id]
	if e == nil || !e.Alive() {
		return
	}
	e.Status = models.EntryEliminated
	e.EliminatedRound = round
	b.changed[id] = true
	b.eliminated = append(b.eliminated, id)
}

func (b *entryBook) crown(id int64) {
	e := b.byID[id]
	if e == nil || !e.Alive() {
		return
	}
	e.Status = models.EntryWinner
	b.changed[id] = true
	b.winners = append(b.winners, id)
}

func (b *entryBook) setScore(id int64, score int) {
	e := b.byID[id]
	if e == nil || e.Score == score {
		return
	}
	e.Score = score
	b.changed[id] = true
}

// settle crowns winnerIDs and eliminates every other live entry
func (b *entryBook) settle(winnerIDs []int64, round int) {
	win := make(map[int64]bool, len(winnerIDs))
	for _, id := range winnerIDs {
		win[id] = true
	}
	for _, e := range b.alive() {
		if win[e.ID] {
			b.crown(e.ID)
		} else {
			b.eliminate(e.ID, round)
		}
	}
}

func (b *entryBook) fill(out *Outcome) {
	for _, id := range b.order {
		if b.changed[id] {
			out.Entries = append(out.Entries, *b.byID[id])
		}
	}
	for _, id := range b.eliminated {
		out.Eliminated = append(out.Eliminated, *b.byID[id])
	}
	for _, id := range b.winners {
		out.Winners = append(out.Winners, *b.byID[id])
	}
}

func finish(inst *models.GameInstance, status models.InstanceStatus, now time.Time) {
	inst.Status = status
	settled := now
	inst.SettledAt = &settled
	inst.UpdatedAt = now
}
