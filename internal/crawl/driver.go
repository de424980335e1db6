// Package crawl fetches company blocks from the startup directory. The
// directory renders one anchor card per company; each card's text is the
// noisy concatenated block the extractor works on. The pipeline only sees
// the Driver interface, so tests can feed fixture blocks without a network.
package crawl

import (
	"context"
	"fmt"
	"time"
)

// Filter selects which slice of the directory a session scrapes.
type Filter struct {
	// Cohort is the batch code used as the directory's URL filter,
	// e.g. "W24". Empty means the unfiltered listing.
	Cohort string

	// Limit caps the number of blocks returned. 0 means no cap.
	Limit int

	// Settle is the page-load budget for one navigation.
	Settle time.Duration
}

// Element is a minimal read-only view of a markup node.
type Element interface {
	Text() string
	Attribute(name string) string
	Children(selector string) []Element
}

// FounderLink is a social profile link found inside a company card.
type FounderLink struct {
	Name string
	URL  string
}

// Block is one company card as scraped: the raw concatenated text plus
// whatever structure could be pulled from sub-elements.
type Block struct {
	Text          string
	URL           string
	LogoURL       string
	LocationHints []string
	FounderLinks  []FounderLink
}

// Driver navigates the directory and yields company blocks. Navigate and
// Blocks are split so the session can retry navigation without re-reading
// blocks it already consumed. Retry-with-backoff is the caller's
// responsibility.
type Driver interface {
	Navigate(ctx context.Context, filter Filter) error
	Blocks(ctx context.Context) ([]Block, error)
}

// ExpandCohorts returns the batch codes to scrape for one year: Winter and
// Spring always, Fall from 2024 on, Summer (X) from 2025 on. A zero year
// expands to the last five years.
func ExpandCohorts(year int, now time.Time) []string {
	if year == 0 {
		var all []string
		current := now.Year()
		for y := current - 4; y <= current; y++ {
			all = append(all, ExpandCohorts(y, now)...)
		}
		return all
	}

	yy := fmt.Sprintf("%02d", year%100)
	cohorts := []string{"W" + yy, "S" + yy}
	if year >= 2024 {
		cohorts = append(cohorts, "F"+yy)
	}
	if year >= 2025 {
		cohorts = append(cohorts, "X"+yy)
	}
	return cohorts
}
