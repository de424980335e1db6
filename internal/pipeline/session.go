// Package pipeline drives one scraping session end to end: refresh the
// geographic knowledge base, create a run record, pull blocks from the
// crawl driver, extract and repair a candidate per block, and reconcile
// each candidate into the store. Sessions are independent of each other;
// callers may run one per cohort concurrently.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/crawl"
	"github.com/sells-group/startup-scraper/internal/extract"
	"github.com/sells-group/startup-scraper/internal/geo"
	"github.com/sells-group/startup-scraper/internal/model"
	"github.com/sells-group/startup-scraper/internal/resilience"
	"github.com/sells-group/startup-scraper/internal/store"
)

// SessionConfig tunes one scraping session.
type SessionConfig struct {
	// Source labels the run and every record it writes. Default: "YC".
	Source string

	// ParseAttempts bounds per-block extraction retries. Default: 3.
	ParseAttempts int

	// ParseRetryDelay is the flat delay between extraction retries.
	// Default: 100ms.
	ParseRetryDelay time.Duration

	// StoreFailureThreshold is the number of consecutive store write
	// failures that fails the whole session. Default: 5.
	StoreFailureThreshold int

	// NavigateRetry wraps driver navigation. Zero value gets defaults
	// with transient-only retry.
	NavigateRetry resilience.RetryConfig
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Source == "" {
		c.Source = "YC"
	}
	if c.ParseAttempts <= 0 {
		c.ParseAttempts = 3
	}
	if c.ParseRetryDelay <= 0 {
		c.ParseRetryDelay = 100 * time.Millisecond
	}
	if c.StoreFailureThreshold <= 0 {
		c.StoreFailureThreshold = 5
	}
	return c
}

// Session wires a crawl driver, the knowledge base, and a store together
// for one or more runs.
type Session struct {
	store   store.Store
	driver  crawl.Driver
	geo     *geo.Index
	cfg     SessionConfig
	nowFunc func() time.Time
}

// NewSession builds a session. The geo index is shared between sessions;
// each Run refreshes it before reading.
func NewSession(st store.Store, driver crawl.Driver, idx *geo.Index, cfg SessionConfig) *Session {
	return &Session{
		store:   st,
		driver:  driver,
		geo:     idx,
		cfg:     cfg.withDefaults(),
		nowFunc: time.Now,
	}
}

// Run executes one scraping session for the given filter and returns the
// finished run record. Per-block failures are logged and counted in
// Stats.Total without aborting the session; a driver failure or a tripped
// store circuit breaker fails the run.
func (s *Session) Run(ctx context.Context, filter crawl.Filter) (*model.ScraperRun, error) {
	log := zap.L().With(
		zap.String("source", s.cfg.Source),
		zap.String("cohort", filter.Cohort),
	)
	log.Info("session: starting")

	// A refresh failure keeps the previous snapshot; the session still runs.
	if err := s.geo.Refresh(ctx, s.store); err != nil {
		log.Warn("session: knowledge base refresh failed, using previous snapshot", zap.Error(err))
	}

	run, err := s.store.CreateRun(ctx, s.cfg.Source)
	if err != nil {
		return nil, eris.Wrap(err, "session: create run")
	}

	var stats model.RunStats
	fail := func(cause error) (*model.ScraperRun, error) {
		if finishErr := s.store.FinishRun(ctx, run.ID, model.RunStatusFailed, stats, cause.Error()); finishErr != nil {
			log.Error("session: finish failed run", zap.Error(finishErr))
		}
		run.Status = model.RunStatusFailed
		run.Stats = stats
		run.ErrorMessage = cause.Error()
		return run, cause
	}

	if err := resilience.Do(ctx, s.cfg.NavigateRetry, func(ctx context.Context) error {
		return s.driver.Navigate(ctx, filter)
	}); err != nil {
		return fail(eris.Wrap(err, "session: navigate"))
	}

	blocks, err := s.driver.Blocks(ctx)
	if err != nil {
		return fail(eris.Wrap(err, "session: read blocks"))
	}
	log.Info("session: blocks collected", zap.Int("count", len(blocks)))

	parseRetry := resilience.FixedRetryConfig(s.cfg.ParseAttempts, s.cfg.ParseRetryDelay)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: s.cfg.StoreFailureThreshold,
	})

	for _, block := range blocks {
		stats.Total++

		cand, parseErr := resilience.DoVal(ctx, parseRetry, func(ctx context.Context) (extract.Candidate, error) {
			return extract.Parse(inputFromBlock(block), s.geo.Snapshot())
		})
		if parseErr != nil {
			if ctx.Err() != nil {
				return fail(eris.Wrap(ctx.Err(), "session: canceled"))
			}
			log.Warn("session: block failed extraction",
				zap.String("url", block.URL),
				zap.Error(parseErr),
			)
			continue
		}
		if cand.Cohort == "" {
			cand.Cohort = filter.Cohort
		}

		rec := startupFromCandidate(cand, s.cfg.Source, s.nowFunc())
		outcome, upErr := resilience.ExecuteVal(ctx, breaker, func(ctx context.Context) (store.UpsertOutcome, error) {
			return s.store.UpsertStartup(ctx, rec)
		})
		if upErr != nil {
			if errors.Is(upErr, resilience.ErrCircuitOpen) || breaker.State() == resilience.CircuitOpen {
				return fail(eris.Wrap(upErr, "session: store unavailable"))
			}
			log.Warn("session: store write failed",
				zap.String("name", rec.Name),
				zap.Error(upErr),
			)
			continue
		}

		switch {
		case outcome.Created:
			stats.Added++
		case outcome.Updated:
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	if err := s.store.FinishRun(ctx, run.ID, model.RunStatusSuccess, stats, ""); err != nil {
		return fail(eris.Wrap(err, "session: finish run"))
	}
	run.Status = model.RunStatusSuccess
	run.Stats = stats

	log.Info("session: complete",
		zap.String("run_id", run.ID),
		zap.Int("added", stats.Added),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("total", stats.Total),
	)
	return run, nil
}
