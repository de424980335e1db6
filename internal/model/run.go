package model

import "time"

// RunStatus is the lifecycle state of a scraper run. in_progress transitions
// exactly once to success or failed; both are terminal.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusSuccess    RunStatus = "success"
	RunStatusFailed     RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// RunStats accumulates per-run reconciliation counters. A processed record
// bumps exactly one of Added/Updated/Unchanged; Total is bumped once per
// block attempted, including blocks that failed extraction.
type RunStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Total     int `json:"total"`
}

// ScraperRun records one scraping session.
type ScraperRun struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       RunStatus  `json:"status"`
	Stats        RunStats   `json:"stats"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
