package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/startup-scraper/internal/crawl"
	"github.com/sells-group/startup-scraper/internal/geo"
	"github.com/sells-group/startup-scraper/internal/model"
	"github.com/sells-group/startup-scraper/internal/pipeline"
)

var (
	scrapeYear        int
	scrapeCohort      string
	scrapeLimit       int
	scrapeConcurrency int
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the startup directory",
	Long:  "Runs one scraping session per cohort. --cohort selects a single batch; --year expands to that year's batches; neither expands to the last five years.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		idx, err := geo.NewIndex()
		if err != nil {
			return err
		}

		var cohorts []string
		if scrapeCohort != "" {
			if !model.ValidCohort(scrapeCohort) {
				return eris.Errorf("invalid cohort code: %s", scrapeCohort)
			}
			cohorts = []string{scrapeCohort}
		} else {
			cohorts = crawl.ExpandCohorts(scrapeYear, time.Now())
		}

		var mu sync.Mutex
		runs := make([]*model.ScraperRun, 0, len(cohorts))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(scrapeConcurrency)

		for _, cohort := range cohorts {
			g.Go(func() error {
				driver, err := crawl.NewCollyDriver(cfg.Scraper.CollyConfig())
				if err != nil {
					return err
				}

				sess := pipeline.NewSession(st, driver, idx, cfg.Scraper.SessionConfig())
				run, runErr := sess.Run(gCtx, crawl.Filter{
					Cohort: cohort,
					Limit:  scrapeLimit,
					Settle: cfg.Scraper.Settle(),
				})
				if run != nil {
					mu.Lock()
					runs = append(runs, run)
					mu.Unlock()
				}
				if runErr != nil {
					zap.L().Error("scrape: session failed",
						zap.String("cohort", cohort),
						zap.Error(runErr),
					)
				}
				// One failed cohort does not stop the others.
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		formatScrapeSummary(os.Stdout, runs)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeYear, "year", 0, "expand to all cohorts of this year (0 = last five years)")
	scrapeCmd.Flags().StringVar(&scrapeCohort, "cohort", "", "scrape a single cohort code (e.g. W24)")
	scrapeCmd.Flags().IntVar(&scrapeLimit, "limit", 0, "max blocks per cohort (0 = no cap)")
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 2, "concurrent cohort sessions")
	rootCmd.AddCommand(scrapeCmd)
}

func formatScrapeSummary(out io.Writer, runs []*model.ScraperRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN\tSTATUS\tADDED\tUPDATED\tUNCHANGED\tTOTAL")

	var totals model.RunStats
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			truncateID(r.ID),
			r.Status,
			r.Stats.Added,
			r.Stats.Updated,
			r.Stats.Unchanged,
			r.Stats.Total,
		)
		totals.Added += r.Stats.Added
		totals.Updated += r.Stats.Updated
		totals.Unchanged += r.Stats.Unchanged
		totals.Total += r.Stats.Total
	}
	_, _ = fmt.Fprintf(w, "\t\t%d\t%d\t%d\t%d\n",
		totals.Added, totals.Updated, totals.Unchanged, totals.Total)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
