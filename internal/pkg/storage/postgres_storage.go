package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/models"
)

// Ensure PostgresStorage implements Storage
var _ Storage = (*PostgresStorage)(nil)

// gameTables in truncation order (children first)
var gameTables = []string{
	"payouts", "team_assignments", "table_predictions", "score_predictions", "picks",
	"entries", "game_instances", "fixtures", "rollover_pots",
}

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStorage stores game state in PostgreSQL
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage opens the database and creates the schema
func NewPostgresStorage(cfg *config.PostgresConfig) (*PostgresStorage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &PostgresStorage{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL game storage initialized successfully")
	return s, nil
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS game_instances (
		id BIGSERIAL PRIMARY KEY,
		game_type VARCHAR(50) NOT NULL,
		name VARCHAR(200) NOT NULL,
		competition VARCHAR(20) NOT NULL,
		season INTEGER NOT NULL,
		start_round INTEGER NOT NULL,
		end_round INTEGER NOT NULL,
		current_round INTEGER NOT NULL,
		entry_fee NUMERIC(12, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		carried_pot NUMERIC(12, 2) NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		starts_at TIMESTAMPTZ NOT NULL,
		settled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_game_instances_status ON game_instances(status);

	CREATE TABLE IF NOT EXISTS entries (
		id BIGSERIAL PRIMARY KEY,
		instance_id BIGINT NOT NULL REFERENCES game_instances(id) ON DELETE CASCADE,
		user_id VARCHAR(100) NOT NULL,
		payment_ref VARCHAR(200) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		eliminated_round INTEGER NOT NULL DEFAULT 0,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(instance_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS picks (
		id BIGSERIAL PRIMARY KEY,
		entry_id BIGINT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		instance_id BIGINT NOT NULL,
		round INTEGER NOT NULL,
		team_name VARCHAR(200) NOT NULL,
		result VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_at TIMESTAMPTZ,
		UNIQUE(entry_id, round)
	);
	CREATE INDEX IF NOT EXISTS idx_picks_instance ON picks(instance_id);

	CREATE TABLE IF NOT EXISTS score_predictions (
		entry_id BIGINT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		instance_id BIGINT NOT NULL,
		round INTEGER NOT NULL,
		fixture_id BIGINT NOT NULL,
		home_goals INTEGER NOT NULL,
		away_goals INTEGER NOT NULL,
		points INTEGER NOT NULL DEFAULT 0,
		settled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY(entry_id, fixture_id)
	);
	CREATE INDEX IF NOT EXISTS idx_score_predictions_instance ON score_predictions(instance_id, round);

	CREATE TABLE IF NOT EXISTS table_predictions (
		entry_id BIGINT PRIMARY KEY REFERENCES entries(id) ON DELETE CASCADE,
		instance_id BIGINT NOT NULL,
		positions TEXT[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS team_assignments (
		entry_id BIGINT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
		instance_id BIGINT NOT NULL,
		team_name VARCHAR(200) NOT NULL,
		PRIMARY KEY(entry_id, team_name)
	);
	CREATE INDEX IF NOT EXISTS idx_team_assignments_instance ON team_assignments(instance_id);

	CREATE TABLE IF NOT EXISTS fixtures (
		id BIGINT PRIMARY KEY,
		competition VARCHAR(20) NOT NULL,
		season INTEGER NOT NULL,
		round INTEGER NOT NULL,
		home_team VARCHAR(200) NOT NULL,
		away_team VARCHAR(200) NOT NULL,
		home_goals INTEGER,
		away_goals INTEGER,
		status VARCHAR(20) NOT NULL,
		kick_off TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_fixtures_round ON fixtures(competition, season, round);

	CREATE TABLE IF NOT EXISTS payouts (
		id BIGSERIAL PRIMARY KEY,
		instance_id BIGINT NOT NULL REFERENCES game_instances(id) ON DELETE CASCADE,
		entry_id BIGINT NOT NULL,
		user_id VARCHAR(100) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(instance_id, entry_id)
	);

	CREATE TABLE IF NOT EXISTS rollover_pots (
		game_type VARCHAR(50) NOT NULL,
		competition VARCHAR(20) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY(game_type, competition)
	);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// isUniqueViolation reports a Postgres unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const instanceColumns = `id, game_type, name, competition, season, start_round, end_round, current_round,
	entry_fee, currency, carried_pot, status, starts_at, settled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (models.GameInstance, error) {
	var inst models.GameInstance
	var settledAt sql.NullTime
	err := row.Scan(&inst.ID, &inst.GameType, &inst.Name, &inst.Competition, &inst.Season,
		&inst.StartRound, &inst.EndRound, &inst.CurrentRound, &inst.EntryFee, &inst.Currency,
		&inst.CarriedPot, &inst.Status, &inst.StartsAt, &settledAt, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return inst, err
	}
	if settledAt.Valid {
		t := settledAt.Time
		inst.SettledAt = &t
	}
	return inst, nil
}

func (s *PostgresStorage) CreateInstance(ctx context.Context, inst *models.GameInstance) error {
	query := `
		INSERT INTO game_instances (game_type, name, competition, season, start_round, end_round, current_round,
			entry_fee, currency, carried_pot, status, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query, inst.GameType, inst.Name, inst.Competition, inst.Season,
		inst.StartRound, inst.EndRound, inst.CurrentRound, inst.EntryFee, inst.Currency, inst.CarriedPot,
		inst.Status, inst.StartsAt).Scan(&inst.ID, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetInstance(ctx context.Context, id int64) (*models.GameInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM game_instances WHERE id = $1`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instance %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return &inst, nil
}

func (s *PostgresStorage) ListInstances(ctx context.Context, filter InstanceFilter) ([]models.GameInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM game_instances
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR game_type = $2) AND ($3 = '' OR competition = $3)
		ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, string(filter.Status), string(filter.GameType), filter.Competition)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var out []models.GameInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateInstance(ctx context.Context, inst *models.GameInstance) error {
	return updateInstance(ctx, s.db, inst)
}

func updateInstance(ctx context.Context, q dbtx, inst *models.GameInstance) error {
	query := `
		UPDATE game_instances SET name = $2, current_round = $3, carried_pot = $4, status = $5,
			starts_at = $6, settled_at = $7, updated_at = NOW()
		WHERE id = $1`
	res, err := q.ExecContext(ctx, query, inst.ID, inst.Name, inst.CurrentRound, inst.CarriedPot,
		inst.Status, inst.StartsAt, inst.SettledAt)
	if err != nil {
		return fmt.Errorf("failed to update instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("instance %d: %w", inst.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) CreateEntry(ctx context.Context, e *models.Entry) error {
	if e.Status == "" {
		e.Status = models.EntryActive
	}
	query := `
		INSERT INTO entries (instance_id, user_id, payment_ref, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, joined_at, updated_at`
	err := s.db.QueryRowContext(ctx, query, e.InstanceID, e.UserID, e.PaymentRef, e.Status).
		Scan(&e.ID, &e.JoinedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s already entered instance %d: %w", e.UserID, e.InstanceID, ErrConflict)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return fmt.Errorf("instance %d: %w", e.InstanceID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

const entryColumns = `id, instance_id, user_id, payment_ref, status, score, eliminated_round, joined_at, updated_at`

func scanEntry(row rowScanner) (models.Entry, error) {
	var e models.Entry
	err := row.Scan(&e.ID, &e.InstanceID, &e.UserID, &e.PaymentRef, &e.Status, &e.Score,
		&e.EliminatedRound, &e.JoinedAt, &e.UpdatedAt)
	return e, err
}

func (s *PostgresStorage) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return &e, nil
}

func (s *PostgresStorage) ListEntries(ctx context.Context, instanceID int64) ([]models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE instance_id = $1 ORDER BY id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateEntries(ctx context.Context, entries []models.Entry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return updateEntries(ctx, tx, entries) })
}

func updateEntries(ctx context.Context, q dbtx, entries []models.Entry) error {
	for _, e := range entries {
		res, err := q.ExecContext(ctx, `
			UPDATE entries SET status = $2, score = $3, eliminated_round = $4, updated_at = NOW()
			WHERE id = $1`, e.ID, e.Status, e.Score, e.EliminatedRound)
		if err != nil {
			return fmt.Errorf("failed to update entry %d: %w", e.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("entry %d: %w", e.ID, ErrNotFound)
		}
	}
	return nil
}

func (s *PostgresStorage) SavePick(ctx context.Context, p *models.Pick) error {
	if p.Result == "" {
		p.Result = models.PickPending
	}
	query := `
		INSERT INTO picks (entry_id, instance_id, round, team_name, result)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entry_id, round) DO UPDATE SET team_name = EXCLUDED.team_name,
			result = EXCLUDED.result, created_at = NOW(), settled_at = NULL
		RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query, p.EntryID, p.InstanceID, p.Round, p.TeamName, p.Result).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pick: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListPicks(ctx context.Context, instanceID int64) ([]models.Pick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entry_id, instance_id, round, team_name, result, created_at, settled_at
		FROM picks WHERE instance_id = $1 ORDER BY round, entry_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	defer rows.Close()

	var out []models.Pick
	for rows.Next() {
		var p models.Pick
		var settledAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.EntryID, &p.InstanceID, &p.Round, &p.TeamName, &p.Result, &p.CreatedAt, &settledAt); err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		if settledAt.Valid {
			t := settledAt.Time
			p.SettledAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdatePicks(ctx context.Context, picks []models.Pick) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return updatePicks(ctx, tx, picks) })
}

func updatePicks(ctx context.Context, q dbtx, picks []models.Pick) error {
	for _, p := range picks {
		_, err := q.ExecContext(ctx, `UPDATE picks SET result = $3, settled_at = $4 WHERE entry_id = $1 AND round = $2`,
			p.EntryID, p.Round, p.Result, p.SettledAt)
		if err != nil {
			return fmt.Errorf("failed to update pick of entry %d round %d: %w", p.EntryID, p.Round, err)
		}
	}
	return nil
}

func (s *PostgresStorage) SaveScorePredictions(ctx context.Context, preds []models.ScorePrediction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range preds {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO score_predictions (entry_id, instance_id, round, fixture_id, home_goals, away_goals)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (entry_id, fixture_id) DO UPDATE SET home_goals = EXCLUDED.home_goals,
					away_goals = EXCLUDED.away_goals, points = 0, settled = FALSE, created_at = NOW()`,
				p.EntryID, p.InstanceID, p.Round, p.FixtureID, p.HomeGoals, p.AwayGoals)
			if err != nil {
				return fmt.Errorf("failed to save prediction for fixture %d: %w", p.FixtureID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStorage) ListScorePredictions(ctx context.Context, instanceID int64, round int) ([]models.ScorePrediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, instance_id, round, fixture_id, home_goals, away_goals, points, settled, created_at
		FROM score_predictions WHERE instance_id = $1 AND ($2 = 0 OR round = $2)
		ORDER BY entry_id, fixture_id`, instanceID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer rows.Close()

	var out []models.ScorePrediction
	for rows.Next() {
		var p models.ScorePrediction
		if err := rows.Scan(&p.EntryID, &p.InstanceID, &p.Round, &p.FixtureID, &p.HomeGoals, &p.AwayGoals,
			&p.Points, &p.Settled, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpdateScorePredictions(ctx context.Context, preds []models.ScorePrediction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return updatePredictions(ctx, tx, preds) })
}

func updatePredictions(ctx context.Context, q dbtx, preds []models.ScorePrediction) error {
	for _, p := range preds {
		_, err := q.ExecContext(ctx, `UPDATE score_predictions SET points = $3, settled = $4 WHERE entry_id = $1 AND fixture_id = $2`,
			p.EntryID, p.FixtureID, p.Points, p.Settled)
		if err != nil {
			return fmt.Errorf("failed to update prediction for fixture %d: %w", p.FixtureID, err)
		}
	}
	return nil
}

func (s *PostgresStorage) SaveTablePrediction(ctx context.Context, t *models.TablePrediction) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO table_predictions (entry_id, instance_id, positions)
		VALUES ($1, $2, $3)
		ON CONFLICT (entry_id) DO UPDATE SET positions = EXCLUDED.positions, created_at = NOW()
		RETURNING created_at`, t.EntryID, t.InstanceID, pq.Array(t.Positions)).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save table prediction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListTablePredictions(ctx context.Context, instanceID int64) ([]models.TablePrediction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, instance_id, positions, created_at FROM table_predictions
		WHERE instance_id = $1 ORDER BY entry_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list table predictions: %w", err)
	}
	defer rows.Close()

	var out []models.TablePrediction
	for rows.Next() {
		var t models.TablePrediction
		if err := rows.Scan(&t.EntryID, &t.InstanceID, pq.Array(&t.Positions), &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan table prediction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SaveAssignments(ctx context.Context, assignments []models.TeamAssignment) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return saveAssignments(ctx, tx, assignments) })
}

func saveAssignments(ctx context.Context, q dbtx, assignments []models.TeamAssignment) error {
	cleared := make(map[int64]bool)
	for _, a := range assignments {
		if !cleared[a.InstanceID] {
			if _, err := q.ExecContext(ctx, `DELETE FROM team_assignments WHERE instance_id = $1`, a.InstanceID); err != nil {
				return fmt.Errorf("failed to clear assignments: %w", err)
			}
			cleared[a.InstanceID] = true
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO team_assignments (entry_id, instance_id, team_name) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`, a.EntryID, a.InstanceID, a.TeamName); err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) ListAssignments(ctx context.Context, instanceID int64) ([]models.TeamAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, instance_id, team_name FROM team_assignments
		WHERE instance_id = $1 ORDER BY entry_id, team_name`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.TeamAssignment
	for rows.Next() {
		var a models.TeamAssignment
		if err := rows.Scan(&a.EntryID, &a.InstanceID, &a.TeamName); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) UpsertFixtures(ctx context.Context, fixtures []models.Fixture) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, f := range fixtures {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO fixtures (id, competition, season, round, home_team, away_team, home_goals, away_goals, status, kick_off, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
				ON CONFLICT (id) DO UPDATE SET round = EXCLUDED.round, home_team = EXCLUDED.home_team,
					away_team = EXCLUDED.away_team, home_goals = EXCLUDED.home_goals, away_goals = EXCLUDED.away_goals,
					status = EXCLUDED.status, kick_off = EXCLUDED.kick_off, updated_at = NOW()`,
				f.ID, f.Competition, f.Season, f.Round, f.HomeTeam, f.AwayTeam, f.HomeGoals, f.AwayGoals, f.Status, f.KickOff)
			if err != nil {
				return fmt.Errorf("failed to upsert fixture %d: %w", f.ID, err)
			}
		}
		return nil
	})
}

func (s *PostgresStorage) ListFixtures(ctx context.Context, competition string, season, fromRound, toRound int) ([]models.Fixture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, competition, season, round, home_team, away_team, home_goals, away_goals, status, kick_off, updated_at
		FROM fixtures WHERE competition = $1 AND season = $2 AND round BETWEEN $3 AND $4
		ORDER BY round, kick_off, id`, competition, season, fromRound, toRound)
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	defer rows.Close()

	var out []models.Fixture
	for rows.Next() {
		var f models.Fixture
		var home, away sql.NullInt64
		if err := rows.Scan(&f.ID, &f.Competition, &f.Season, &f.Round, &f.HomeTeam, &f.AwayTeam,
			&home, &away, &f.Status, &f.KickOff, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fixture: %w", err)
		}
		if home.Valid {
			v := int(home.Int64)
			f.HomeGoals = &v
		}
		if away.Valid {
			v := int(away.Int64)
			f.AwayGoals = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SavePayouts(ctx context.Context, payouts []models.Payout) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return savePayouts(ctx, tx, payouts) })
}

func savePayouts(ctx context.Context, q dbtx, payouts []models.Payout) error {
	for _, p := range payouts {
		_, err := q.ExecContext(ctx, `
			INSERT INTO payouts (instance_id, entry_id, user_id, amount, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (instance_id, entry_id) DO NOTHING`,
			p.InstanceID, p.EntryID, p.UserID, p.Amount, p.Currency, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save payout for entry %d: %w", p.EntryID, err)
		}
	}
	return nil
}

func (s *PostgresStorage) ListPayouts(ctx context.Context, instanceID int64) ([]models.Payout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, entry_id, user_id, amount, currency, created_at
		FROM payouts WHERE instance_id = $1 ORDER BY entry_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.InstanceID, &p.EntryID, &p.UserID, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) AddRolloverPot(ctx context.Context, gameType models.GameType, competition string, amount decimal.Decimal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return addRollover(ctx, tx, gameType, competition, amount) })
}

func addRollover(ctx context.Context, q dbtx, gameType models.GameType, competition string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	res, err := q.ExecContext(ctx, `
		UPDATE game_instances SET carried_pot = carried_pot + $3, updated_at = NOW()
		WHERE id = (
			SELECT id FROM game_instances
			WHERE game_type = $1 AND competition = $2 AND status = 'open'
			ORDER BY starts_at, id LIMIT 1
		)`, gameType, competition, amount)
	if err != nil {
		return fmt.Errorf("failed to carry pot to next instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO rollover_pots (game_type, competition, amount, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (game_type, competition) DO UPDATE SET amount = rollover_pots.amount + EXCLUDED.amount, updated_at = NOW()`,
		gameType, competition, amount)
	if err != nil {
		return fmt.Errorf("failed to add rollover pot: %w", err)
	}
	return nil
}

func (s *PostgresStorage) TakeRolloverPot(ctx context.Context, gameType models.GameType, competition string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM rollover_pots WHERE game_type = $1 AND competition = $2
		RETURNING amount`, gameType, competition).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to take rollover pot: %w", err)
	}
	return amount, nil
}

func (s *PostgresStorage) ApplyRoundResult(ctx context.Context, res RoundResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := updateInstance(ctx, tx, &res.Instance); err != nil {
			return err
		}
		if err := updateEntries(ctx, tx, res.Entries); err != nil {
			return err
		}
		if err := updatePicks(ctx, tx, res.Picks); err != nil {
			return err
		}
		if err := updatePredictions(ctx, tx, res.Predictions); err != nil {
			return err
		}
		if len(res.Assignments) > 0 {
			if err := saveAssignments(ctx, tx, res.Assignments); err != nil {
				return err
			}
		}
		if err := savePayouts(ctx, tx, res.Payouts); err != nil {
			return err
		}
		return addRollover(ctx, tx, res.Instance.GameType, res.Instance.Competition, res.Rollover)
	})
}

func (s *PostgresStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Tables() []string {
	return append([]string(nil), gameTables...)
}

// CleanTable truncates one of the game tables
func (s *PostgresStorage) CleanTable(ctx context.Context, table string) error {
	known := false
	for _, t := range gameTables {
		if t == table {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown table %q", table)
	}
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+pq.QuoteIdentifier(table)+` RESTART IDENTITY CASCADE`); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", table, err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
