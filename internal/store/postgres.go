package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/startup-scraper/internal/db"
	"github.com/sells-group/startup-scraper/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgStartupColumns = `id, name, description, year_founded, url, logo_url,
	source, cohort, status, location, tags, team_size, created_at, updated_at`

const pgFounderColumns = `id, startup_id, name, title, role_type, bio,
	background, linkedin_url, twitter_url, github_url, created_at`

const pgRunColumns = `id, source, start_time, end_time, status, added, updated,
	unchanged, total, error_message`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"select_startup_by_key": `SELECT ` + pgStartupColumns + ` FROM startups WHERE name = $1 AND cohort = $2`,
	"select_founders":       `SELECT ` + pgFounderColumns + ` FROM founders WHERE startup_id = $1`,
	"insert_run":            `INSERT INTO scraper_runs (id, source, start_time, status) VALUES ($1, $2, $3, $4)`,
	"get_run":               `SELECT ` + pgRunColumns + ` FROM scraper_runs WHERE id = $1`,
	"distinct_locations":    `SELECT DISTINCT location FROM startups WHERE location <> '' ORDER BY location`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS startups (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	year_founded INTEGER NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	logo_url     TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	cohort       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'ACTIVE',
	location     TEXT NOT NULL DEFAULT '',
	tags         TEXT NOT NULL DEFAULT '',
	team_size    INTEGER,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(name, cohort)
);

CREATE TABLE IF NOT EXISTS founders (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	startup_id   TEXT NOT NULL REFERENCES startups(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	role_type    TEXT NOT NULL DEFAULT '',
	bio          TEXT NOT NULL DEFAULT '',
	background   TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	twitter_url  TEXT NOT NULL DEFAULT '',
	github_url   TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(startup_id, name)
);

CREATE TABLE IF NOT EXISTS scraper_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source        TEXT NOT NULL,
	start_time    TIMESTAMPTZ NOT NULL DEFAULT now(),
	end_time      TIMESTAMPTZ,
	status        TEXT NOT NULL DEFAULT 'in_progress',
	added         INTEGER NOT NULL DEFAULT 0,
	updated       INTEGER NOT NULL DEFAULT 0,
	unchanged     INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_startups_cohort ON startups(cohort);
CREATE INDEX IF NOT EXISTS idx_startups_status ON startups(status);
CREATE INDEX IF NOT EXISTS idx_startups_location ON startups(location);
CREATE INDEX IF NOT EXISTS idx_founders_startup_id ON founders(startup_id);
CREATE INDEX IF NOT EXISTS idx_scraper_runs_status ON scraper_runs(status);
CREATE INDEX IF NOT EXISTS idx_scraper_runs_source ON scraper_runs(source);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertStartup(ctx context.Context, in model.Startup) (UpsertOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return UpsertOutcome{}, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+pgStartupColumns+` FROM startups WHERE name = $1 AND cohort = $2`,
		in.Name, in.Cohort,
	)
	existing, err := scanPgStartup(row)

	var out UpsertOutcome
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		out, err = insertPgStartup(ctx, tx, in)
		if err != nil {
			return UpsertOutcome{}, err
		}
	case err != nil:
		return UpsertOutcome{}, err
	default:
		out, err = mergePgStartup(ctx, tx, existing, in)
		if err != nil {
			return UpsertOutcome{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertOutcome{}, eris.Wrapf(err, "postgres: commit upsert %s", in.Name)
	}
	return out, nil
}

func insertPgStartup(ctx context.Context, tx pgx.Tx, in model.Startup) (UpsertOutcome, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := tx.Exec(ctx,
		`INSERT INTO startups (`+pgStartupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, in.Name, in.Description, in.YearFounded, in.URL, in.LogoURL,
		in.Source, in.Cohort, in.Status, in.Location, in.Tags, in.TeamSize, now, now,
	)
	if err != nil {
		return UpsertOutcome{}, eris.Wrapf(err, "postgres: insert startup %s", in.Name)
	}

	for _, f := range in.Founders {
		if err := insertPgFounder(ctx, tx, id, f); err != nil {
			return UpsertOutcome{}, err
		}
	}
	return UpsertOutcome{ID: id, Created: true}, nil
}

func mergePgStartup(ctx context.Context, tx pgx.Tx, existing *model.Startup, in model.Startup) (UpsertOutcome, error) {
	updated := model.MergeStartup(existing, in)
	if updated {
		_, err := tx.Exec(ctx,
			`UPDATE startups SET description = $1, year_founded = $2, url = $3,
			 logo_url = $4, source = $5, status = $6, location = $7, tags = $8,
			 team_size = $9, updated_at = $10 WHERE id = $11`,
			existing.Description, existing.YearFounded, existing.URL,
			existing.LogoURL, existing.Source, existing.Status,
			existing.Location, existing.Tags, existing.TeamSize,
			time.Now().UTC(), existing.ID,
		)
		if err != nil {
			return UpsertOutcome{}, eris.Wrapf(err, "postgres: update startup %s", existing.ID)
		}
	}

	rows, err := tx.Query(ctx,
		`SELECT `+pgFounderColumns+` FROM founders WHERE startup_id = $1`,
		existing.ID,
	)
	if err != nil {
		return UpsertOutcome{}, eris.Wrap(err, "postgres: load founders")
	}
	current, err := scanPgFounders(rows)
	if err != nil {
		return UpsertOutcome{}, err
	}

	for _, f := range in.Founders {
		match := founderByName(current, f.Name)
		if match == nil {
			if err := insertPgFounder(ctx, tx, existing.ID, f); err != nil {
				return UpsertOutcome{}, err
			}
			updated = true
			continue
		}
		if model.MergeFounder(match, f) {
			_, err := tx.Exec(ctx,
				`UPDATE founders SET title = $1, role_type = $2, bio = $3,
				 background = $4, linkedin_url = $5, twitter_url = $6,
				 github_url = $7 WHERE id = $8`,
				match.Title, match.RoleType, match.Bio, match.Background,
				match.LinkedInURL, match.TwitterURL, match.GitHubURL, match.ID,
			)
			if err != nil {
				return UpsertOutcome{}, eris.Wrapf(err, "postgres: update founder %s", match.ID)
			}
			updated = true
		}
	}

	return UpsertOutcome{ID: existing.ID, Updated: updated}, nil
}

func insertPgFounder(ctx context.Context, tx pgx.Tx, startupID string, f model.Founder) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO founders (`+pgFounderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.New().String(), startupID, f.Name, f.Title, f.RoleType, f.Bio,
		f.Background, f.LinkedInURL, f.TwitterURL, f.GitHubURL, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert founder %s", f.Name)
}

func (s *PostgresStore) GetStartup(ctx context.Context, id string) (*model.Startup, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgStartupColumns+` FROM startups WHERE id = $1`, id,
	)
	st, err := scanPgStartup(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("startup not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+pgFounderColumns+` FROM founders WHERE startup_id = $1 ORDER BY name`, id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load founders")
	}
	st.Founders, err = scanPgFounders(rows)
	return st, err
}

func (s *PostgresStore) ListStartups(ctx context.Context, filter StartupFilter) ([]model.Startup, error) {
	query := `SELECT ` + pgStartupColumns + ` FROM startups WHERE 1=1`
	var args []any

	if filter.Cohort != "" {
		args = append(args, filter.Cohort)
		query += ` AND cohort = ` + placeholder(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = ` + placeholder(len(args))
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list startups")
	}
	defer rows.Close()

	var startups []model.Startup
	for rows.Next() {
		st, err := scanPgStartup(rows)
		if err != nil {
			return nil, err
		}
		startups = append(startups, *st)
	}
	return startups, eris.Wrap(rows.Err(), "postgres: list startups iterate")
}

func (s *PostgresStore) DistinctLocations(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT location FROM startups WHERE location <> '' ORDER BY location`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: distinct locations")
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locations = append(locations, loc)
	}
	return locations, eris.Wrap(rows.Err(), "postgres: distinct locations iterate")
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.ScraperRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scraper_runs (id, source, start_time, status) VALUES ($1, $2, $3, $4)`,
		id, source, now, string(model.RunStatusInProgress),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ScraperRun{
		ID:        id,
		Source:    source,
		StartTime: now,
		Status:    model.RunStatusInProgress,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, errMsg string) error {
	if !status.Terminal() {
		return eris.Errorf("finish run %s: status %s is not terminal", runID, status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE scraper_runs SET end_time = $1, status = $2, added = $3,
		 updated = $4, unchanged = $5, total = $6, error_message = $7
		 WHERE id = $8 AND status = $9`,
		time.Now().UTC(), string(status), stats.Added, stats.Updated,
		stats.Unchanged, stats.Total, errMsg,
		runID, string(model.RunStatusInProgress),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("in-progress run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ScraperRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM scraper_runs WHERE id = $1`, runID,
	)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScraperRun, error) {
	query := `SELECT ` + pgRunColumns + ` FROM scraper_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = ` + placeholder(len(args))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = ` + placeholder(len(args))
	}
	query += ` ORDER BY start_time DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ScraperRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// scan helpers

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanPgStartup(row pgx.Row) (*model.Startup, error) {
	var st model.Startup
	var teamSize *int

	err := row.Scan(&st.ID, &st.Name, &st.Description, &st.YearFounded,
		&st.URL, &st.LogoURL, &st.Source, &st.Cohort, &st.Status,
		&st.Location, &st.Tags, &teamSize, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan startup")
	}
	st.TeamSize = teamSize
	return &st, nil
}

func scanPgFounders(rows pgx.Rows) ([]model.Founder, error) {
	defer rows.Close()

	var founders []model.Founder
	for rows.Next() {
		var f model.Founder
		err := rows.Scan(&f.ID, &f.StartupID, &f.Name, &f.Title, &f.RoleType,
			&f.Bio, &f.Background, &f.LinkedInURL, &f.TwitterURL,
			&f.GitHubURL, &f.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan founder")
		}
		founders = append(founders, f)
	}
	return founders, eris.Wrap(rows.Err(), "postgres: founders iterate")
}

func scanPgRun(row pgx.Row) (*model.ScraperRun, error) {
	var r model.ScraperRun
	var endTime *time.Time

	err := row.Scan(&r.ID, &r.Source, &r.StartTime, &endTime, &r.Status,
		&r.Stats.Added, &r.Stats.Updated, &r.Stats.Unchanged, &r.Stats.Total,
		&r.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	r.EndTime = endTime
	return &r, nil
}

func founderByName(founders []model.Founder, name string) *model.Founder {
	for i := range founders {
		if founders[i].Name == name {
			return &founders[i]
		}
	}
	return nil
}
