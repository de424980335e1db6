// Package store persists startups, founders, and scraper runs. Two backends
// are provided: SQLite for local single-binary use and Postgres for shared
// deployments. Both implement the same interface; the pipeline never knows
// which one it is talking to.
package store

import (
	"context"

	"github.com/sells-group/startup-scraper/internal/model"
)

// UpsertOutcome reports what one reconciliation did. Exactly one of Created
// and Updated is true for a change; both false means the record matched an
// existing row byte for byte.
type UpsertOutcome struct {
	ID      string
	Created bool
	Updated bool
}

// StartupFilter specifies criteria for listing startups.
type StartupFilter struct {
	Cohort string `json:"cohort,omitempty"`
	Status string `json:"status,omitempty"`
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing scraper runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Source string          `json:"source,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the scraping pipeline.
//
// UpsertStartup is the reconciliation primitive: it runs as one transaction
// that looks up the natural key (name, cohort), inserts or merges the row and
// its founders, and commits. A failure aborts only that record.
type Store interface {
	// Startups
	UpsertStartup(ctx context.Context, in model.Startup) (UpsertOutcome, error)
	GetStartup(ctx context.Context, id string) (*model.Startup, error)
	ListStartups(ctx context.Context, filter StartupFilter) ([]model.Startup, error)
	DistinctLocations(ctx context.Context) ([]string, error)

	// Runs
	CreateRun(ctx context.Context, source string) (*model.ScraperRun, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.ScraperRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ScraperRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
