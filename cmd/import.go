package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/db"
	"github.com/sells-group/startup-scraper/internal/model"
	"github.com/sells-group/startup-scraper/internal/store"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import startups from a CSV file",
	Long:  "Imports a CSV export (name,cohort,location,description,url,status,source) directly into the startups table via COPY. Requires the postgres store driver.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.Store.Driver != "postgres" {
			return eris.New("import requires the postgres store driver")
		}

		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		rows, err := readStartupCSV(importCSVPath)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.New("import: no data rows in file")
		}

		// id and created_at stay out of the update set so a re-import never
		// rewrites record identity or breaks founder foreign keys.
		inserted, err := db.BulkUpsert(ctx, st.Pool(), db.BulkConfig{
			Table: "startups",
			Columns: []string{
				"id", "name", "description", "year_founded", "url",
				"source", "cohort", "status", "location", "created_at", "updated_at",
			},
			ConflictKeys: []string{"name", "cohort"},
			UpdateCols: []string{
				"description", "year_founded", "url", "source",
				"status", "location", "updated_at",
			},
		}, rows)
		if err != nil {
			return eris.Wrap(err, "import csv")
		}

		zap.L().Info("import complete",
			zap.Int64("rows", inserted),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}

// readStartupCSV parses the export format into bulk-upsert rows. The header
// row is required; columns beyond the known set are ignored.
func readStartupCSV(path string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "import: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "import: read header")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"name", "cohort"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("import: missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	now := time.Now().UTC()
	var rows [][]any
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "import: read row")
		}

		cohort := field(record, "cohort")
		year, _ := strconv.Atoi(field(record, "year_founded"))
		if year == 0 {
			year = model.CohortYear(cohort, now)
		}
		status := field(record, "status")
		if status == "" {
			status = model.StatusActive
		}

		rows = append(rows, []any{
			uuid.NewString(),
			field(record, "name"),
			field(record, "description"),
			year,
			field(record, "url"),
			field(record, "source"),
			cohort,
			status,
			field(record, "location"),
			now,
			now,
		})
	}
	return rows, nil
}
