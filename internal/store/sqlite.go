package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/startup-scraper/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS startups (
	id           TEXT PRIMARY KEY,
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
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(name, cohort)
);

CREATE TABLE IF NOT EXISTS founders (
	id           TEXT PRIMARY KEY,
	startup_id   TEXT NOT NULL REFERENCES startups(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	role_type    TEXT NOT NULL DEFAULT '',
	bio          TEXT NOT NULL DEFAULT '',
	background   TEXT NOT NULL DEFAULT '',
	linkedin_url TEXT NOT NULL DEFAULT '',
	twitter_url  TEXT NOT NULL DEFAULT '',
	github_url   TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(startup_id, name)
);

CREATE TABLE IF NOT EXISTS scraper_runs (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	start_time    DATETIME NOT NULL,
	end_time      DATETIME,
	status        TEXT NOT NULL DEFAULT 'in_progress',
	added         INTEGER NOT NULL DEFAULT 0,
	updated       INTEGER NOT NULL DEFAULT 0,
	unchanged     INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_startups_cohort ON startups(cohort);
CREATE INDEX IF NOT EXISTS idx_startups_status ON startups(status);
CREATE INDEX IF NOT EXISTS idx_founders_startup_id ON founders(startup_id);
CREATE INDEX IF NOT EXISTS idx_scraper_runs_status ON scraper_runs(status);
CREATE INDEX IF NOT EXISTS idx_scraper_runs_source ON scraper_runs(source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteStartupColumns = `id, name, description, year_founded, url, logo_url,
	source, cohort, status, location, tags, team_size, created_at, updated_at`

func (s *SQLiteStore) UpsertStartup(ctx context.Context, in model.Startup) (UpsertOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertOutcome{}, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+sqliteStartupColumns+` FROM startups WHERE name = ? AND cohort = ?`,
		in.Name, in.Cohort,
	)
	existing, err := scanStartup(row)

	var out UpsertOutcome
	switch {
	case errors.Is(err, sql.ErrNoRows):
		out, err = s.insertStartup(ctx, tx, in)
		if err != nil {
			return UpsertOutcome{}, err
		}
	case err != nil:
		return UpsertOutcome{}, err
	default:
		out, err = s.mergeStartup(ctx, tx, existing, in)
		if err != nil {
			return UpsertOutcome{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return UpsertOutcome{}, eris.Wrapf(err, "sqlite: commit upsert %s", in.Name)
	}
	return out, nil
}

func (s *SQLiteStore) insertStartup(ctx context.Context, tx *sql.Tx, in model.Startup) (UpsertOutcome, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO startups (`+sqliteStartupColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.Description, in.YearFounded, in.URL, in.LogoURL,
		in.Source, in.Cohort, in.Status, in.Location, in.Tags, in.TeamSize, now, now,
	)
	if err != nil {
		return UpsertOutcome{}, eris.Wrapf(err, "sqlite: insert startup %s", in.Name)
	}

	for _, f := range in.Founders {
		if err := insertFounderTx(ctx, tx, id, f); err != nil {
			return UpsertOutcome{}, err
		}
	}
	return UpsertOutcome{ID: id, Created: true}, nil
}

func (s *SQLiteStore) mergeStartup(ctx context.Context, tx *sql.Tx, existing *model.Startup, in model.Startup) (UpsertOutcome, error) {
	updated := model.MergeStartup(existing, in)
	if updated {
		_, err := tx.ExecContext(ctx,
			`UPDATE startups SET description = ?, year_founded = ?, url = ?,
			 logo_url = ?, source = ?, status = ?, location = ?, tags = ?,
			 team_size = ?, updated_at = ? WHERE id = ?`,
			existing.Description, existing.YearFounded, existing.URL,
			existing.LogoURL, existing.Source, existing.Status,
			existing.Location, existing.Tags, existing.TeamSize,
			time.Now().UTC(), existing.ID,
		)
		if err != nil {
			return UpsertOutcome{}, eris.Wrapf(err, "sqlite: update startup %s", existing.ID)
		}
	}

	current, err := loadFoundersTx(ctx, tx, existing.ID)
	if err != nil {
		return UpsertOutcome{}, err
	}

	for _, f := range in.Founders {
		match := founderByName(current, f.Name)
		if match == nil {
			if err := insertFounderTx(ctx, tx, existing.ID, f); err != nil {
				return UpsertOutcome{}, err
			}
			updated = true
			continue
		}
		if model.MergeFounder(match, f) {
			_, err := tx.ExecContext(ctx,
				`UPDATE founders SET title = ?, role_type = ?, bio = ?,
				 background = ?, linkedin_url = ?, twitter_url = ?, github_url = ?
				 WHERE id = ?`,
				match.Title, match.RoleType, match.Bio, match.Background,
				match.LinkedInURL, match.TwitterURL, match.GitHubURL, match.ID,
			)
			if err != nil {
				return UpsertOutcome{}, eris.Wrapf(err, "sqlite: update founder %s", match.ID)
			}
			updated = true
		}
	}

	return UpsertOutcome{ID: existing.ID, Updated: updated}, nil
}

func (s *SQLiteStore) GetStartup(ctx context.Context, id string) (*model.Startup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteStartupColumns+` FROM startups WHERE id = ?`, id,
	)
	st, err := scanStartup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("startup not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+founderColumns+` FROM founders WHERE startup_id = ? ORDER BY name`, id,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load founders")
	}
	defer rows.Close()
	st.Founders, err = scanFounders(rows)
	return st, err
}

func (s *SQLiteStore) ListStartups(ctx context.Context, filter StartupFilter) ([]model.Startup, error) {
	query := `SELECT ` + sqliteStartupColumns + ` FROM startups WHERE 1=1`
	var args []any

	if filter.Cohort != "" {
		query += ` AND cohort = ?`
		args = append(args, filter.Cohort)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY name`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list startups")
	}
	defer rows.Close()

	var startups []model.Startup
	for rows.Next() {
		st, err := scanStartup(rows)
		if err != nil {
			return nil, err
		}
		startups = append(startups, *st)
	}
	return startups, eris.Wrap(rows.Err(), "sqlite: list startups iterate")
}

func (s *SQLiteStore) DistinctLocations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT location FROM startups WHERE location <> '' ORDER BY location`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: distinct locations")
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		locations = append(locations, loc)
	}
	return locations, eris.Wrap(rows.Err(), "sqlite: distinct locations iterate")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.ScraperRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraper_runs (id, source, start_time, status) VALUES (?, ?, ?, ?)`,
		id, source, now, string(model.RunStatusInProgress),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.ScraperRun{
		ID:        id,
		Source:    source,
		StartTime: now,
		Status:    model.RunStatusInProgress,
	}, nil
}

// FinishRun records the terminal state of a run. The status guard means a
// second finish attempt matches zero rows and fails instead of silently
// overwriting a terminal record.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, errMsg string) error {
	if !status.Terminal() {
		return eris.Errorf("finish run %s: status %s is not terminal", runID, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE scraper_runs SET end_time = ?, status = ?, added = ?, updated = ?,
		 unchanged = ?, total = ?, error_message = ?
		 WHERE id = ? AND status = ?`,
		time.Now().UTC(), string(status), stats.Added, stats.Updated,
		stats.Unchanged, stats.Total, errMsg,
		runID, string(model.RunStatusInProgress),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "in-progress run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ScraperRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM scraper_runs WHERE id = ?`, runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScraperRun, error) {
	query := `SELECT ` + runColumns + ` FROM scraper_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY start_time DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ScraperRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

const founderColumns = `id, startup_id, name, title, role_type, bio,
	background, linkedin_url, twitter_url, github_url, created_at`

const runColumns = `id, source, start_time, end_time, status, added, updated,
	unchanged, total, error_message`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStartup(row scannable) (*model.Startup, error) {
	var st model.Startup
	var teamSize sql.NullInt64

	err := row.Scan(&st.ID, &st.Name, &st.Description, &st.YearFounded,
		&st.URL, &st.LogoURL, &st.Source, &st.Cohort, &st.Status,
		&st.Location, &st.Tags, &teamSize, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan startup")
	}
	if teamSize.Valid {
		ts := int(teamSize.Int64)
		st.TeamSize = &ts
	}
	return &st, nil
}

func scanFounders(rows *sql.Rows) ([]model.Founder, error) {
	var founders []model.Founder
	for rows.Next() {
		var f model.Founder
		err := rows.Scan(&f.ID, &f.StartupID, &f.Name, &f.Title, &f.RoleType,
			&f.Bio, &f.Background, &f.LinkedInURL, &f.TwitterURL,
			&f.GitHubURL, &f.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan founder")
		}
		founders = append(founders, f)
	}
	return founders, eris.Wrap(rows.Err(), "sqlite: founders iterate")
}

func scanRun(row scannable) (*model.ScraperRun, error) {
	var r model.ScraperRun
	var endTime sql.NullTime

	err := row.Scan(&r.ID, &r.Source, &r.StartTime, &endTime, &r.Status,
		&r.Stats.Added, &r.Stats.Updated, &r.Stats.Unchanged, &r.Stats.Total,
		&r.ErrorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		r.EndTime = &t
	}
	return &r, nil
}

func loadFoundersTx(ctx context.Context, tx *sql.Tx, startupID string) ([]model.Founder, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+founderColumns+` FROM founders WHERE startup_id = ?`, startupID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load founders")
	}
	defer rows.Close()
	return scanFounders(rows)
}

func insertFounderTx(ctx context.Context, tx *sql.Tx, startupID string, f model.Founder) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO founders (`+founderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), startupID, f.Name, f.Title, f.RoleType, f.Bio,
		f.Background, f.LinkedInURL, f.TwitterURL, f.GitHubURL, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert founder %s", f.Name)
}
