// Package model defines the persistent and in-flight record types for the
// startup directory scraper.
package model

import (
	"regexp"
	"time"
)

// Lifecycle status values as reported by the source directory.
const (
	StatusActive   = "ACTIVE"
	StatusAcquired = "ACQUIRED"
	StatusInactive = "INACTIVE"
)

// Founder role categories.
const (
	RoleTechnical    = "technical"
	RoleNonTechnical = "non_technical"
)

// cohortPattern matches a cohort code: season letter plus two-digit year.
// W = Winter, S = Spring, F = Fall, X = Summer. The letter set is closed.
var cohortPattern = regexp.MustCompile(`^[WSFX]\d{2}$`)

// Startup is one organization scraped from the directory. The natural key
// is (Name, Cohort); the same company can appear in multiple cohorts.
type Startup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	YearFounded int       `json:"year_founded"`
	URL         string    `json:"url,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Source      string    `json:"source,omitempty"`
	Cohort      string    `json:"cohort,omitempty"`
	Status      string    `json:"status,omitempty"`
	Location    string    `json:"location,omitempty"`
	Tags        string    `json:"tags,omitempty"`
	TeamSize    *int      `json:"team_size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Founders []Founder `json:"founders,omitempty"`
}

// Founder belongs to exactly one Startup and is unique by name within it.
type Founder struct {
	ID          string    `json:"id"`
	StartupID   string    `json:"startup_id"`
	Name        string    `json:"name"`
	Title       string    `json:"title,omitempty"`
	RoleType    string    `json:"role_type,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Background  string    `json:"background,omitempty"`
	LinkedInURL string    `json:"linkedin_url,omitempty"`
	TwitterURL  string    `json:"twitter_url,omitempty"`
	GitHubURL   string    `json:"github_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ValidCohort reports whether code is a well-formed cohort code.
func ValidCohort(code string) bool {
	return cohortPattern.MatchString(code)
}

// CohortYear derives the founding year from a cohort code ("W24" -> 2024).
// A missing or malformed code falls back to the year of now, so the
// year_founded column is never null.
func CohortYear(code string, now time.Time) int {
	if !ValidCohort(code) {
		return now.Year()
	}
	yy := int(code[1]-'0')*10 + int(code[2]-'0')
	return 2000 + yy
}

// NormalizeYearFounded fills YearFounded from the cohort code when unset.
func (s *Startup) NormalizeYearFounded(now time.Time) {
	if s.YearFounded == 0 {
		s.YearFounded = CohortYear(s.Cohort, now)
	}
}
