package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// Ensure MemoryStorage implements Storage
var _ Storage = (*MemoryStorage)(nil)

type pickKey struct {
	entryID int64
	round   int
}

type predictionKey struct {
	entryID   int64
	fixtureID int64
}

type rolloverKey struct {
	gameType    models.GameType
	competition string
}

// MemoryStorage keeps everything in process memory. Used for local runs and tests.
type MemoryStorage struct {
	mu sync.Mutex

	lastID int64
	now    func() time.Time

	instances   map[int64]models.GameInstance
	entries     map[int64]models.Entry
	picks       map[pickKey]models.Pick
	predictions map[predictionKey]models.ScorePrediction
	tables      map[int64]models.TablePrediction
	assignments map[int64][]models.TeamAssignment
	fixtures    map[int64]models.Fixture
	payouts     map[int64][]models.Payout
	rollover    map[rolloverKey]decimal.Decimal
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		now:         time.Now,
		instances:   make(map[int64]models.GameInstance),
		entries:     make(map[int64]models.Entry),
		picks:       make(map[pickKey]models.Pick),
		predictions: make(map[predictionKey]models.ScorePrediction),
		tables:      make(map[int64]models.TablePrediction),
		assignments: make(map[int64][]models.TeamAssignment),
		fixtures:    make(map[int64]models.Fixture),
		payouts:     make(map[int64][]models.Payout),
		rollover:    make(map[rolloverKey]decimal.Decimal),
	}
}

func (s *MemoryStorage) nextID() int64 {
	s.lastID++
	return s.lastID
}

func (s *MemoryStorage) CreateInstance(_ context.Context, inst *models.GameInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	inst.ID = s.nextID()
	inst.CreatedAt, inst.UpdatedAt = now, now
	s.instances[inst.ID] = *inst
	return nil
}

func (s *MemoryStorage) GetInstance(_ context.Context, id int64) (*models.GameInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, fmt.Errorf("instance %d: %w", id, ErrNotFound)
	}
	return &inst, nil
}

func (s *MemoryStorage) ListInstances(_ context.Context, filter InstanceFilter) ([]models.GameInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GameInstance
	for _, inst := range s.instances {
		if filter.match(inst) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) UpdateInstance(_ context.Context, inst *models.GameInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateInstance(*inst)
}

func (s *MemoryStorage) updateInstance(inst models.GameInstance) error {
	if _, ok := s.instances[inst.ID]; !ok {
		return fmt.Errorf("instance %d: %w", inst.ID, ErrNotFound)
	}
	s.instances[inst.ID] = inst
	return nil
}

func (s *MemoryStorage) CreateEntry(_ context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[e.InstanceID]; !ok {
		return fmt.Errorf("instance %d: %w", e.InstanceID, ErrNotFound)
	}
	for _, existing := range s.entries {
		if existing.InstanceID == e.InstanceID && existing.UserID == e.UserID {
			return fmt.Errorf("user %s already entered instance %d: %w", e.UserID, e.InstanceID, ErrConflict)
		}
	}
	now := s.now().UTC()
	e.ID = s.nextID()
	if e.Status == "" {
		e.Status = models.EntryActive
	}
	e.JoinedAt, e.UpdatedAt = now, now
	s.entries[e.ID] = *e
	return nil
}

func (s *MemoryStorage) GetEntry(_ context.Context, id int64) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return &e, nil
}

func (s *MemoryStorage) ListEntries(_ context.Context, instanceID int64) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Entry
	for _, e := range s.entries {
		if e.InstanceID == instanceID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStorage) UpdateEntries(_ context.Context, entries []models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEntries(entries)
}

func (s *MemoryStorage) updateEntries(entries []models.Entry) error {
	for _, e := range entries {
		if _, ok := s.entries[e.ID]; !ok {
			return fmt.Errorf("entry %d: %w", e.ID, ErrNotFound)
		}
	}
	now := s.now().UTC()
	for _, e := range entries {
		e.UpdatedAt = now
		s.entries[e.ID] = e
	}
	return nil
}

func (s *MemoryStorage) SavePick(_ context.Context, p *models.Pick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pickKey{p.EntryID, p.Round}
	if existing, ok := s.picks[key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = s.nextID()
	}
	if p.Result == "" {
		p.Result = models.PickPending
	}
	p.CreatedAt = s.now().UTC()
	s.picks[key] = *p
	return nil
}

func (s *MemoryStorage) ListPicks(_ context.Context, instanceID int64) ([]models.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Pick
	for _, p := range s.picks {
		if p.InstanceID == instanceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

func (s *MemoryStorage) UpdatePicks(_ context.Context, picks []models.Pick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatePicks(picks)
	return nil
}

func (s *MemoryStorage) updatePicks(picks []models.Pick) {
	for _, p := range picks {
		s.picks[pickKey{p.EntryID, p.Round}] = p
	}
}

func (s *MemoryStorage) SaveScorePredictions(_ context.Context, preds []models.ScorePrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, p := range preds {
		p.CreatedAt = now
		s.predictions[predictionKey{p.EntryID, p.FixtureID}] = p
	}
	return nil
}

func (s *MemoryStorage) ListScorePredictions(_ context.Context, instanceID int64, round int) ([]models.ScorePrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScorePrediction
	for _, p := range s.predictions {
		if p.InstanceID == instanceID && (round == 0 || p.Round == round) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryID != out[j].EntryID {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].FixtureID < out[j].FixtureID
	})
	return out, nil
}

func (s *MemoryStorage) UpdateScorePredictions(_ context.Context, preds []models.ScorePrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatePredictions(preds)
	return nil
}

func (s *MemoryStorage) updatePredictions(preds []models.ScorePrediction) {
	for _, p := range preds {
		s.predictions[predictionKey{p.EntryID, p.FixtureID}] = p
	}
}

func (s *MemoryStorage) SaveTablePrediction(_ context.Context, t *models.TablePrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = s.now().UTC()
	cp := *t
	cp.Positions = append([]string(nil), t.Positions...)
	s.tables[t.EntryID] = cp
	return nil
}

func (s *MemoryStorage) ListTablePredictions(_ context.Context, instanceID int64) ([]models.TablePrediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TablePrediction
	for _, t := range s.tables {
		if t.InstanceID == instanceID {
			t.Positions = append([]string(nil), t.Positions...)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

func (s *MemoryStorage) SaveAssignments(_ context.Context, assignments []models.TeamAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveAssignments(assignments)
	return nil
}

func (s *MemoryStorage) saveAssignments(assignments []models.TeamAssignment) {
	byInstance := make(map[int64][]models.TeamAssignment)
	for _, a := range assignments {
		byInstance[a.InstanceID] = append(byInstance[a.InstanceID], a)
	}
	// An instance is assigned once; saving again replaces the deal.
	for id, list := range byInstance {
		s.assignments[id] = list
	}
}

func (s *MemoryStorage) ListAssignments(_ context.Context, instanceID int64) ([]models.TeamAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TeamAssignment(nil), s.assignments[instanceID]...), nil
}

func (s *MemoryStorage) UpsertFixtures(_ context.Context, fixtures []models.Fixture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range fixtures {
		s.fixtures[f.ID] = f
	}
	return nil
}

func (s *MemoryStorage) ListFixtures(_ context.Context, competition string, season, fromRound, toRound int) ([]models.Fixture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Fixture
	for _, f := range s.fixtures {
		if f.Competition == competition && f.Season == season && f.Round >= fromRound && f.Round <= toRound {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		if !out[i].KickOff.Equal(out[j].KickOff) {
			return out[i].KickOff.Before(out[j].KickOff)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStorage) SavePayouts(_ context.Context, payouts []models.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePayouts(payouts)
	return nil
}

func (s *MemoryStorage) savePayouts(payouts []models.Payout) {
	for _, p := range payouts {
		s.payouts[p.InstanceID] = append(s.payouts[p.InstanceID], p)
	}
}

func (s *MemoryStorage) ListPayouts(_ context.Context, instanceID int64) ([]models.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Payout(nil), s.payouts[instanceID]...), nil
}

func (s *MemoryStorage) AddRolloverPot(_ context.Context, gameType models.GameType, competition string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addRollover(gameType, competition, amount)
	return nil
}

func (s *MemoryStorage) addRollover(gameType models.GameType, competition string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	var next *models.GameInstance
	for _, inst := range s.instances {
		if inst.GameType != gameType || inst.Competition != competition || inst.Status != models.InstanceOpen {
			continue
		}
		if next == nil || inst.StartsAt.Before(next.StartsAt) {
			cp := inst
			next = &cp
		}
	}
	if next != nil {
		next.CarriedPot = next.CarriedPot.Add(amount)
		next.UpdatedAt = s.now().UTC()
		s.instances[next.ID] = *next
		return
	}
	key := rolloverKey{gameType, competition}
	s.rollover[key] = s.rollover[key].Add(amount)
}

func (s *MemoryStorage) TakeRolloverPot(_ context.Context, gameType models.GameType, competition string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rolloverKey{gameType, competition}
	amount := s.rollover[key]
	delete(s.rollover, key)
	return amount, nil
}

func (s *MemoryStorage) ApplyRoundResult(_ context.Context, res RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before writing so a failure leaves nothing half-applied.
	if _, ok := s.instances[res.Instance.ID]; !ok {
		return fmt.Errorf("instance %d: %w", res.Instance.ID, ErrNotFound)
	}
	for _, e := range res.Entries {
		if _, ok := s.entries[e.ID]; !ok {
			return fmt.Errorf("entry %d: %w", e.ID, ErrNotFound)
		}
	}

	if err := s.updateInstance(res.Instance); err != nil {
		return err
	}
	if err := s.updateEntries(res.Entries); err != nil {
		return err
	}
	s.updatePicks(res.Picks)
	s.updatePredictions(res.Predictions)
	s.saveAssignments(res.Assignments)
	s.savePayouts(res.Payouts)
	s.addRollover(res.Instance.GameType, res.Instance.Competition, res.Rollover)
	return nil
}

func (s *MemoryStorage) Tables() []string {
	return append([]string(nil), gameTables...)
}

func (s *MemoryStorage) CleanTable(_ context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch table {
	case "game_instances":
		s.instances = make(map[int64]models.GameInstance)
	case "entries":
		s.entries = make(map[int64]models.Entry)
	case "picks":
		s.picks = make(map[pickKey]models.Pick)
	case "score_predictions":
		s.predictions = make(map[predictionKey]models.ScorePrediction)
	case "table_predictions":
		s.tables = make(map[int64]models.TablePrediction)
	case "team_assignments":
		s.assignments = make(map[int64][]models.TeamAssignment)
	case "fixtures":
		s.fixtures = make(map[int64]models.Fixture)
	case "payouts":
		s.payouts = make(map[int64][]models.Payout)
	case "rollover_pots":
		s.rollover = make(map[rolloverKey]decimal.Decimal)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func (s *MemoryStorage) Close() error { return nil }
