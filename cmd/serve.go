package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contact-finder/internal/export"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/pipeline"
)

// maxDiscoverCompanies bounds a synchronous discover request.
const maxDiscoverCompanies = 100

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP discovery API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := pipeline.Preflight(ctx, cfg.RocketReach.Key, env.Gateway); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// discoverRequest is the POST /v1/discover body.
type discoverRequest struct {
	Companies []string `json:"companies"`
	Quota     int      `json:"quota,omitempty"`
	criteriaInput
}

// discoverResponse is the JSON reply: the run envelope plus a status tally.
type discoverResponse struct {
	export.Run
	Summary pipeline.Summary `json:"summary"`
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"breaker": env.Gateway.BreakerState().String(),
		})
	})

	r.Post("/v1/discover", func(w http.ResponseWriter, r *http.Request) {
		var req discoverRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if len(req.Companies) == 0 {
			writeError(w, http.StatusBadRequest, "companies is required")
			return
		}
		if len(req.Companies) > maxDiscoverCompanies {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d companies per request", maxDiscoverCompanies))
			return
		}

		format := export.FormatJSON
		if f := r.URL.Query().Get("format"); f != "" {
			parsed, err := export.ParseFormat(f)
			if err != nil || parsed == export.FormatXLSX {
				writeError(w, http.StatusBadRequest, "format must be json or csv")
				return
			}
			format = parsed
		}

		criteria, err := resolveCriteria(req.criteriaInput, env.Presets,
			model.Criteria{Departments: cfg.Discovery.Departments, Geography: cfg.Discovery.Geography})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		quota := req.Quota
		if quota <= 0 {
			quota = cfg.Discovery.Quota
		}

		results, err := env.Runner.Run(r.Context(), req.Companies, criteria, quota, nil)
		if err != nil {
			zap.L().Warn("discover: run interrupted", zap.Error(err), zap.Int("completed", len(results)))
			writeError(w, http.StatusServiceUnavailable, "discovery interrupted")
			return
		}

		run := export.NewRun(results, quota, time.Now())
		if format == export.FormatCSV {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			if err := export.WriteCSV(w, run.Results, run.Quota); err != nil {
				zap.L().Warn("discover: write csv", zap.Error(err))
			}
			return
		}
		writeJSON(w, http.StatusOK, discoverResponse{Run: run, Summary: pipeline.Summarize(results)})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("http: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
