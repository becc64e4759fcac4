// Package processor runs the result-processing pipeline: it activates instances
// that have started, pulls fixtures and results, evaluates every active game,
// writes the outcome, settles pots and emits notifications.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/games"
	"github.com/Vodeneev/vodeneevgames/internal/notify"
	"github.com/Vodeneev/vodeneevgames/internal/payout"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/performance"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/storage"
)

// ErrRunInProgress is returned when another run holds the processing lock
var ErrRunInProgress = errors.New("processing run already in progress")

const lockKey = "process-results"

// Fetcher provides fixtures and standings. sportsdata.Client implements it.
type Fetcher interface {
	Fixtures(ctx context.Context, competition string, season, matchday int) ([]models.Fixture, error)
	Standings(ctx context.Context, competition string, season int) ([]models.Standing, error)
	Teams(ctx context.Context, competition string, season int) ([]string, error)
}

// Locker guards runs across replicas. storage.RedisClient implements it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, func(), error)
}

// Options tune the pipeline
type Options struct {
	MinEntries        int
	CommissionPercent float64
	RaceTarget        int

	AsyncEnabled bool
	Interval     time.Duration
	RunTimeout   time.Duration
	LockTTL      time.Duration
}

// OptionsFromConfig maps service config onto processor options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinEntries:        cfg.Games.MinEntries,
		CommissionPercent: cfg.Games.CommissionPercent,
		RaceTarget:        cfg.Games.RaceTarget,
		AsyncEnabled:      cfg.Processor.AsyncEnabled,
		Interval:          cfg.Processor.Interval,
		RunTimeout:        cfg.Processor.RunTimeout,
		LockTTL:           cfg.Processor.LockTTL,
	}
}

// InstanceReport describes what one run did to one instance
type InstanceReport struct {
	InstanceID    int64                 `json:"instance_id"`
	GameType      models.GameType       `json:"game_type"`
	Action        string                `json:"action"`
	StatusBefore  models.InstanceStatus `json:"status_before"`
	StatusAfter   models.InstanceStatus `json:"status_after"`
	CurrentRound  int                   `json:"current_round"`
	SettledRounds []int                 `json:"settled_rounds,omitempty"`
	Eliminated    int                   `json:"eliminated"`
	Winners       int                   `json:"winners"`
	Pot           string                `json:"pot,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Actions reported per instance
const (
	ActionActivated  = "activated"
	ActionCancelled  = "cancelled"
	ActionEvaluated  = "evaluated"
	ActionCompleted  = "completed"
	ActionRolledOver = "rolled_over"
	ActionUnchanged  = "unchanged"
	ActionFailed     = "failed"
)

// RunReport is the result of one ProcessAll call
type RunReport struct {
	RunID     uuid.UUID        `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Instances []InstanceReport `json:"instances"`
}

// Failed counts instances that errored
func (r RunReport) Failed() int {
	n := 0
	for _, i := range r.Instances {
		if i.Action == ActionFailed {
			n++
		}
	}
	return n
}

// Processor is the result-processing pipeline
type Processor struct {
	store    storage.Storage
	fetcher  Fetcher
	notifier notify.Notifier
	locker   Locker
	opts     Options
	tracker  *performance.Tracker
	now      func() time.Time

	runMu      sync.Mutex
	statusMu   sync.RWMutex
	running    bool
	lastReport *RunReport
	lastError  string

	asyncTicker  *time.Ticker
	asyncMu      sync.RWMutex
	asyncStopped bool
	asyncBase    context.Context
	asyncCancel  context.CancelFunc
}

// New creates a processor. notifier and locker may be nil.
func New(store storage.Storage, fetcher Fetcher, notifier notify.Notifier, locker Locker, opts Options) *Processor {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	if opts.RaceTarget <= 0 {
		opts.RaceTarget = games.DefaultRaceTarget
	}
	return &Processor{
		store:    store,
		fetcher:  fetcher,
		notifier: notifier,
		locker:   locker,
		opts:     opts,
		tracker:  performance.GetTracker(),
		now:      time.Now,
	}
}

// ProcessAll runs the pipeline once over every open and active instance
func (p *Processor) ProcessAll(ctx context.Context) (RunReport, error) {
	if !p.runMu.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	if p.locker != nil {
		ok, release, err := p.locker.TryLock(ctx, lockKey, p.opts.LockTTL)
		if err != nil {
			return RunReport{}, fmt.Errorf("failed to acquire processing lock: %w", err)
		}
		if !ok {
			return RunReport{}, ErrRunInProgress
		}
		defer release()
	}

	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	p.setRunning(true)
	defer p.setRunning(false)

	began := time.Now()
	run := &runState{
		report:   RunReport{RunID: uuid.New(), StartedAt: p.now().UTC()},
		fixtures: make(map[string][]models.Fixture),
	}
	log := slog.With("run_id", run.report.RunID.String())
	log.Info("processor: run started")

	err := p.processAll(ctx, run, log)

	run.report.Duration = time.Since(began)
	settled := 0
	for _, r := range run.report.Instances {
		if r.StatusAfter.Terminal() && !r.StatusBefore.Terminal() {
			settled++
		}
	}
	timing := performance.RunTiming{
		RunID:     run.report.RunID.String(),
		StartedAt: run.report.StartedAt,
		Instances: len(run.report.Instances),
		Failed:    run.report.Failed(),
		Settled:   settled,
		Fetch:     run.fetch,
		Apply:     run.apply,
		Total:     run.report.Duration,
	}
	if err != nil {
		timing.Error = err.Error()
	}
	p.tracker.RecordRun(timing)
	p.setLastReport(run.report, err)

	if err != nil {
		log.Error("processor: run failed", "error", err, "duration", run.report.Duration)
		return run.report, err
	}
	log.Info("processor: run finished",
		"instances", len(run.report.Instances),
		"failed", timing.Failed,
		"settled", settled,
		"duration", run.report.Duration)
	return run.report, nil
}

// runState is shared by the steps of one run
type runState struct {
	report   RunReport
	fixtures map[string][]models.Fixture // provider responses fetched during this run
	fetch    time.Duration
	apply    time.Duration
}

func (p *Processor) processAll(ctx context.Context, run *runState, log *slog.Logger) error {
	open, err := p.store.ListInstances(ctx, storage.InstanceFilter{Status: models.InstanceOpen})
	if err != nil {
		return fmt.Errorf("failed to list open instances: %w", err)
	}
	now := p.now().UTC()
	for _, inst := range open {
		if now.Before(inst.StartsAt) {
			continue
		}
		rep := p.activate(ctx, run, inst)
		p.logReport(log, rep)
		run.report.Instances = append(run.report.Instances, rep)
	}

	active, err := p.store.ListInstances(ctx, storage.InstanceFilter{Status: models.InstanceActive})
	if err != nil {
		return fmt.Errorf("failed to list active instances: %w", err)
	}
	for _, inst := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep := p.processInstance(ctx, run, inst)
		p.logReport(log, rep)
		run.report.Instances = append(run.report.Instances, rep)
	}
	return nil
}

func (p *Processor) logReport(log *slog.Logger, rep InstanceReport) {
	args := []any{
		"instance_id", rep.InstanceID,
		"game", string(rep.GameType),
		"action", rep.Action,
		"status", string(rep.StatusAfter),
		"round", rep.CurrentRound,
	}
	if rep.Error != "" {
		log.Error("processor: instance failed", append(args, "error", rep.Error)...)
		return
	}
	if rep.Action == ActionUnchanged {
		log.Debug("processor: instance unchanged", args...)
		return
	}
	log.Info("processor: instance processed", append(args, "eliminated", rep.Eliminated, "winners", rep.Winners)...)
}

func newReport(inst models.GameInstance) InstanceReport {
	return InstanceReport{
		InstanceID:   inst.ID,
		GameType:     inst.GameType,
		StatusBefore: inst.Status,
		StatusAfter:  inst.Status,
		CurrentRound: inst.CurrentRound,
	}
}

func failed(rep InstanceReport, err error) InstanceReport {
	rep.Action = ActionFailed
	rep.Error = err.Error()
	return rep
}

// activate moves an open instance past its start time to active or cancelled
func (p *Processor) activate(ctx context.Context, run *runState, inst models.GameInstance) InstanceReport {
	rep := newReport(inst)
	now := p.now().UTC()

	entries, err := p.store.ListEntries(ctx, inst.ID)
	if err != nil {
		return failed(rep, fmt.Errorf("failed to list entries: %w", err))
	}
	var alive []models.Entry
	for _, e := range entries {
		if e.Alive() {
			alive = append(alive, e)
		}
	}

	if len(alive) < p.opts.MinEntries {
		refunded := make([]models.Entry, 0, len(alive))
		for _, e := range alive {
			e.Status = models.EntryRefunded
			refunded = append(refunded, e)
		}
		inst.Status = models.InstanceCancelled
		inst.SettledAt = &now
		inst.UpdatedAt = now

		start := time.Now()
		// A carried pot moves on to the next instance rather than vanishing.
		err := p.store.ApplyRoundResult(ctx, storage.RoundResult{Instance: inst, Entries: refunded, Rollover: inst.CarriedPot})
		run.apply += time.Since(start)
		if err != nil {
			return failed(rep, fmt.Errorf("failed to cancel instance: %w", err))
		}
		rep.Action = ActionCancelled
		rep.StatusAfter = inst.Status
		p.emit(ctx, notify.Event{Type: notify.InstanceCancelled, Instance: inst, Entries: refunded, At: now})
		return rep
	}

	inst.Status = models.InstanceActive
	inst.CurrentRound = inst.StartRound
	inst.UpdatedAt = now
	res := storage.RoundResult{Instance: inst}

	if inst.GameType == models.RaceTo33 {
		start := time.Now()
		teams, err := p.fetcher.Teams(ctx, inst.Competition, inst.Season)
		run.fetch += time.Since(start)
		if err != nil {
			return failed(rep, fmt.Errorf("failed to fetch teams: %w", err))
		}
		res.Assignments = games.AssignTeams(inst.ID, alive, teams)
		if len(res.Assignments) == 0 {
			return failed(rep, fmt.Errorf("no teams to assign for %s %d", inst.Competition, inst.Season))
		}
	}

	start := time.Now()
	err = p.store.ApplyRoundResult(ctx, res)
	run.apply += time.Since(start)
	if err != nil {
		return failed(rep, fmt.Errorf("failed to activate instance: %w", err))
	}
	rep.Action = ActionActivated
	rep.StatusAfter = inst.Status
	rep.CurrentRound = inst.CurrentRound
	p.emit(ctx, notify.Event{Type: notify.InstanceActivated, Instance: inst, Entries: alive, At: now})
	return rep
}

// processInstance evaluates one active instance against the latest results
func (p *Processor) processInstance(ctx context.Context, run *runState, inst models.GameInstance) InstanceReport {
	rep := newReport(inst)

	rules, err := games.MustForType(inst.GameType)
	if err != nil {
		return failed(rep, err)
	}

	start := time.Now()
	err = p.refreshFixtures(ctx, run, inst)
	run.fetch += time.Since(start)
	if err != nil {
		return failed(rep, err)
	}

	in, err := p.loadRoundInput(ctx, run, inst)
	if err != nil {
		return failed(rep, err)
	}

	out, err := rules.Evaluate(in)
	if err != nil {
		return failed(rep, fmt.Errorf("failed to evaluate: %w", err))
	}
	rep.SettledRounds = out.SettledRounds
	rep.Eliminated = len(out.Eliminated)
	rep.Winners = len(out.Winners)
	rep.StatusAfter = out.Instance.Status
	rep.CurrentRound = out.Instance.CurrentRound

	if !out.Changed(inst) {
		rep.Action = ActionUnchanged
		return rep
	}

	res := storage.RoundResult{
		Instance:    out.Instance,
		Entries:     out.Entries,
		Picks:       out.Picks,
		Predictions: out.Predictions,
	}
	var pot decimal.Decimal
	if out.Settled() {
		pot = payout.Pot(inst.EntryFee, paidEntries(in.Entries), inst.CarriedPot, p.opts.CommissionPercent)
		rep.Pot = pot.StringFixed(2)
		switch out.Instance.Status {
		case models.InstanceCompleted:
			res.Payouts = payout.Settle(out.Instance, pot, out.Winners, in.Now)
		case models.InstanceRolledOver:
			res.Rollover = pot
		}
	}

	start = time.Now()
	err = p.store.ApplyRoundResult(ctx, res)
	run.apply += time.Since(start)
	if err != nil {
		return failed(rep, fmt.Errorf("failed to apply round result: %w", err))
	}

	rep.Action = ActionEvaluated
	switch out.Instance.Status {
	case models.InstanceCompleted:
		rep.Action = ActionCompleted
	case models.InstanceRolledOver:
		rep.Action = ActionRolledOver
	}
	p.notifyOutcome(ctx, inst, out, res.Payouts, pot, in.Now)
	return rep
}

// paidEntries counts entries whose fee is in the pot
func paidEntries(entries []models.Entry) int {
	n := 0
	for _, e := range entries {
		if e.Status != models.EntryRefunded {
			n++
		}
	}
	return n
}

func lastRound(rounds []int, fallback int) int {
	if len(rounds) == 0 {
		return fallback
	}
	return rounds[len(rounds)-1]
}

func (p *Processor) notifyOutcome(ctx context.Context, before models.GameInstance, out games.Outcome, payouts []models.Payout, pot decimal.Decimal, now time.Time) {
	inst := out.Instance
	round := lastRound(out.SettledRounds, before.CurrentRound)

	if len(out.Eliminated) > 0 {
		p.emit(ctx, notify.Event{Type: notify.EntryEliminated, Instance: inst, Entries: out.Eliminated, Round: round, At: now})
	}
	switch inst.Status {
	case models.InstanceCompleted:
		p.emit(ctx, notify.Event{Type: notify.InstanceCompleted, Instance: inst, Entries: out.Winners, Payouts: payouts, Round: round, Pot: pot, At: now})
	case models.InstanceRolledOver:
		p.emit(ctx, notify.Event{Type: notify.InstanceRolledOver, Instance: inst, Round: round, Pot: pot, At: now})
	default:
		if inst.CurrentRound != before.CurrentRound {
			p.emit(ctx, notify.Event{Type: notify.RoundAdvanced, Instance: inst, Round: round, At: now})
		}
	}
}

// emit delivers an event; failures are logged and never fail the run
func (p *Processor) emit(ctx context.Context, ev notify.Event) {
	if err := p.notifier.Notify(ctx, ev); err != nil {
		slog.Warn("processor: notification failed", "event", string(ev.Type), "instance_id", ev.Instance.ID, "error", err)
	}
}

// fixtureWindow returns the provider matchday to request (0 is the whole season)
// and the rounds the instance still needs
func fixtureWindow(inst models.GameInstance) (matchday, from, to int) {
	switch inst.GameType {
	case models.WeeklyScore:
		return inst.StartRound, inst.StartRound, inst.StartRound
	case models.LastManStanding, models.RaceTo33:
		from = inst.CurrentRound
		if from < inst.StartRound {
			from = inst.StartRound
		}
		if from == inst.EndRound {
			return from, from, from
		}
		return 0, from, inst.EndRound
	default:
		return 0, inst.StartRound, inst.EndRound
	}
}

// refreshFixtures pulls the rounds an instance still depends on and stores them.
// Responses are shared between instances of the same competition within a run.
func (p *Processor) refreshFixtures(ctx context.Context, run *runState, inst models.GameInstance) error {
	matchday, from, to := fixtureWindow(inst)
	key := fmt.Sprintf("%s|%d|%d", inst.Competition, inst.Season, matchday)

	if _, ok := run.fixtures[key]; ok {
		return nil
	}
	// A whole-season response fetched earlier in this run already covers any matchday.
	if _, ok := run.fixtures[fmt.Sprintf("%s|%d|0", inst.Competition, inst.Season)]; ok {
		return nil
	}

	fetched, err := p.fetcher.Fixtures(ctx, inst.Competition, inst.Season, matchday)
	if err != nil {
		return fmt.Errorf("failed to fetch fixtures: %w", err)
	}
	run.fixtures[key] = fetched

	var relevant []models.Fixture
	for _, f := range fetched {
		if f.Round >= from && f.Round <= to {
			relevant = append(relevant, f)
		}
	}
	if matchday == 0 {
		// Whole season requested: store it all so later instances hit the database.
		relevant = fetched
	}
	if len(relevant) == 0 {
		return nil
	}
	if err := p.store.UpsertFixtures(ctx, relevant); err != nil {
		return fmt.Errorf("failed to store fixtures: %w", err)
	}
	return nil
}

func (p *Processor) loadRoundInput(ctx context.Context, run *runState, inst models.GameInstance) (games.RoundInput, error) {
	in := games.RoundInput{
		Instance:   inst,
		Now:        p.now().UTC(),
		RaceTarget: p.opts.RaceTarget,
	}
	var err error

	if in.Fixtures, err = p.store.ListFixtures(ctx, inst.Competition, inst.Season, inst.StartRound, inst.EndRound); err != nil {
		return in, fmt.Errorf("failed to load fixtures: %w", err)
	}
	if in.Entries, err = p.store.ListEntries(ctx, inst.ID); err != nil {
		return in, fmt.Errorf("failed to load entries: %w", err)
	}

	switch inst.GameType {
	case models.LastManStanding:
		in.Picks, err = p.store.ListPicks(ctx, inst.ID)
	case models.WeeklyScore:
		in.Predictions, err = p.store.ListScorePredictions(ctx, inst.ID, inst.StartRound)
	case models.TablePredictor:
		if in.Tables, err = p.store.ListTablePredictions(ctx, inst.ID); err == nil {
			start := time.Now()
			in.Standings, err = p.fetcher.Standings(ctx, inst.Competition, inst.Season)
			run.fetch += time.Since(start)
		}
	case models.RaceTo33:
		in.Assignments, err = p.store.ListAssignments(ctx, inst.ID)
	}
	if err != nil {
		return in, fmt.Errorf("failed to load %s state: %w", inst.GameType, err)
	}
	return in, nil
}

func (p *Processor) setRunning(v bool) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.running = v
}

func (p *Processor) setLastReport(r RunReport, err error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.lastReport = &r
	p.lastError = ""
	if err != nil {
		p.lastError = err.Error()
	}
}

// Status is what /process/status reports
type Status struct {
	Running      bool       `json:"running"`
	AsyncRunning bool       `json:"async_running"`
	Interval     string     `json:"interval,omitempty"`
	LastRun      *RunReport `json:"last_run,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Status returns the current pipeline status
func (p *Processor) Status() Status {
	p.statusMu.RLock()
	s := Status{Running: p.running, LastError: p.lastError}
	if p.lastReport != nil {
		r := *p.lastReport
		s.LastRun = &r
	}
	p.statusMu.RUnlock()

	s.AsyncRunning = p.IsAsyncRunning()
	if p.opts.Interval > 0 {
		s.Interval = p.opts.Interval.String()
	}
	return s
}
