package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/startup-scraper/internal/crawl"
	"github.com/sells-group/startup-scraper/internal/geo"
	"github.com/sells-group/startup-scraper/internal/model"
	"github.com/sells-group/startup-scraper/internal/pipeline"
	"github.com/sells-group/startup-scraper/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		api := &apiServer{store: st, geo: idx}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", api.handleHealth)
		r.Route("/api", func(r chi.Router) {
			r.Get("/startups", api.handleListStartups)
			r.Get("/startups/{id}", api.handleGetStartup)
			r.Get("/runs", api.handleListRuns)
			r.Post("/scrape", api.handleScrape)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type apiServer struct {
	store store.Store
	geo   *geo.Index
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) handleListStartups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := intParam(q.Get("page"), 1)
	perPage := intParam(q.Get("per_page"), 50)
	if perPage > 200 {
		perPage = 200
	}

	filter := store.StartupFilter{
		Cohort: q.Get("cohort"),
		Status: q.Get("status"),
		Source: q.Get("source"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}

	startups, err := a.store.ListStartups(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"startups": startups,
		"page":     page,
		"per_page": perPage,
		"count":    len(startups),
	})
}

func (a *apiServer) handleGetStartup(w http.ResponseWriter, r *http.Request) {
	s, err := a.store.GetStartup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (a *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	runs, err := a.store.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Source: q.Get("source"),
		Limit:  intParam(q.Get("limit"), 50),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleScrape triggers an async scraping session and returns 202 with the
// cohorts it will cover. Session outcomes land in the runs table.
func (a *apiServer) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year   int    `json:"year"`
		Cohort string `json:"cohort"`
		Limit  int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}

	var cohorts []string
	if req.Cohort != "" {
		if !model.ValidCohort(req.Cohort) {
			respondError(w, http.StatusBadRequest, eris.Errorf("invalid cohort code: %s", req.Cohort))
			return
		}
		cohorts = []string{req.Cohort}
	} else {
		cohorts = crawl.ExpandCohorts(req.Year, time.Now())
	}

	// Detached from the request context so the scrape survives the response.
	go func() {
		ctx := context.Background()
		for _, cohort := range cohorts {
			driver, err := crawl.NewCollyDriver(cfg.Scraper.CollyConfig())
			if err != nil {
				zap.L().Error("api scrape: driver init failed", zap.Error(err))
				return
			}
			sess := pipeline.NewSession(a.store, driver, a.geo, cfg.Scraper.SessionConfig())
			if _, err := sess.Run(ctx, crawl.Filter{
				Cohort: cohort,
				Limit:  req.Limit,
				Settle: cfg.Scraper.Settle(),
			}); err != nil {
				zap.L().Error("api scrape: session failed",
					zap.String("cohort", cohort),
					zap.Error(err),
				)
			}
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"cohorts": cohorts,
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
