package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCohortYear(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cohort   string
		expected int
	}{
		{name: "winter batch", cohort: "W24", expected: 2024},
		{name: "spring batch", cohort: "S09", expected: 2009},
		{name: "fall batch", cohort: "F25", expected: 2025},
		{name: "summer batch", cohort: "X25", expected: 2025},
		{name: "empty falls back to current year", cohort: "", expected: 2026},
		{name: "unknown season letter", cohort: "Q24", expected: 2026},
		{name: "lowercase rejected", cohort: "w24", expected: 2026},
		{name: "too short", cohort: "W2", expected: 2026},
		{name: "non-digit year", cohort: "Wxx", expected: 2026},
		{name: "trailing garbage", cohort: "W24x", expected: 2026},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CohortYear(tt.cohort, now))
		})
	}
}

func TestNormalizeYearFounded(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s := Startup{Cohort: "S21"}
	s.NormalizeYearFounded(now)
	assert.Equal(t, 2021, s.YearFounded)

	// An already-set year is never overwritten.
	s = Startup{Cohort: "S21", YearFounded: 2019}
	s.NormalizeYearFounded(now)
	assert.Equal(t, 2019, s.YearFounded)

	s = Startup{}
	s.NormalizeYearFounded(now)
	assert.Equal(t, 2026, s.YearFounded)
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunStatusInProgress.Terminal())
	assert.True(t, RunStatusSuccess.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
}
