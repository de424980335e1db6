package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/startup-scraper/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit
// testing without a live database.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

var pgStartupCols = []string{"id", "name", "description", "year_founded",
	"url", "logo_url", "source", "cohort", "status", "location", "tags",
	"team_size", "created_at", "updated_at"}

var pgFounderCols = []string{"id", "startup_id", "name", "title", "role_type",
	"bio", "background", "linkedin_url", "twitter_url", "github_url",
	"created_at"}

// anyArgs returns n pgxmock.AnyArg matchers, for Exec expectations whose
// argument values are not under test.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgres_UpsertStartup_Creates(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM startups WHERE name = \$1 AND cohort = \$2`).
		WithArgs("Acme Robotics", "W24").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO startups`).
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO founders`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	out, err := st.UpsertStartup(context.Background(), sampleStartup())
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.False(t, out.Updated)
	assert.NotEmpty(t, out.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertStartup_Unchanged(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	in := sampleStartup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM startups WHERE name = \$1 AND cohort = \$2`).
		WithArgs(in.Name, in.Cohort).
		WillReturnRows(pgxmock.NewRows(pgStartupCols).AddRow(
			"id-1", in.Name, in.Description, in.YearFounded, in.URL,
			in.LogoURL, in.Source, in.Cohort, in.Status, in.Location,
			in.Tags, nil, now, now,
		))
	mock.ExpectQuery(`SELECT .* FROM founders WHERE startup_id = \$1`).
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows(pgFounderCols).AddRow(
			"f-1", "id-1", "Dana Miles", "CEO", model.RoleNonTechnical,
			"", "", "", "", "", now,
		))
	mock.ExpectCommit()
	mock.ExpectRollback()

	out, err := st.UpsertStartup(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.False(t, out.Updated)
	assert.Equal(t, "id-1", out.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertStartup_MergesChangedField(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	in := sampleStartup()
	in.Description = "New pitch"
	in.Founders = nil

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM startups WHERE name = \$1 AND cohort = \$2`).
		WithArgs(in.Name, in.Cohort).
		WillReturnRows(pgxmock.NewRows(pgStartupCols).AddRow(
			"id-1", in.Name, "Old pitch", in.YearFounded, in.URL,
			in.LogoURL, in.Source, in.Cohort, in.Status, in.Location,
			in.Tags, nil, now, now,
		))
	mock.ExpectExec(`UPDATE startups SET`).
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT .* FROM founders WHERE startup_id = \$1`).
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows(pgFounderCols))
	mock.ExpectCommit()
	mock.ExpectRollback()

	out, err := st.UpsertStartup(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO scraper_runs`).
		WithArgs(pgxmock.AnyArg(), "directory", pgxmock.AnyArg(), string(model.RunStatusInProgress)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "directory")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusInProgress, run.Status)
	assert.Equal(t, "directory", run.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinishRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE scraper_runs SET`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	stats := model.RunStats{Added: 2, Total: 2}
	err := st.FinishRun(context.Background(), "run-1", model.RunStatusSuccess, stats, "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FinishRun_AlreadyTerminal(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	// The status guard matches zero rows when the run is already terminal.
	mock.ExpectExec(`UPDATE scraper_runs SET`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.FinishRun(context.Background(), "run-1", model.RunStatusFailed, model.RunStats{}, "late")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-progress run not found")
}

func TestPostgres_FinishRun_RejectsNonTerminalStatus(t *testing.T) {
	st, _ := newMockPostgresStore(t)

	err := st.FinishRun(context.Background(), "run-1", model.RunStatusInProgress, model.RunStats{}, "")
	assert.Error(t, err)
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	start := time.Now().UTC().Add(-time.Minute)
	end := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM scraper_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "start_time",
			"end_time", "status", "added", "updated", "unchanged", "total",
			"error_message"}).
			AddRow("run-1", "directory", start, &end, model.RunStatusSuccess, 3, 1, 2, 6, ""))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, model.RunStats{Added: 3, Updated: 1, Unchanged: 2, Total: 6}, run.Stats)
	require.NotNil(t, run.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DistinctLocations(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT DISTINCT location FROM startups`).
		WillReturnRows(pgxmock.NewRows([]string{"location"}).
			AddRow("Denver, CO").
			AddRow("São Paulo, Brazil"))

	locs, err := st.DistinctLocations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Denver, CO", "São Paulo, Brazil"}, locs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
