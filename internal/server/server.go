// Package server exposes the dashboard pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/config"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/dashboard"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/log"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// RunLister is implemented by ledgers that can list recent forecast runs
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]models.ForecastRun, error)
}

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// Server serves dashboard views
type Server struct {
	pipeline  *dashboard.Pipeline
	runs      RunLister
	checks    map[string]Check
	http      config.HTTPConfig
	dashboard config.DashboardConfig
	logger    *zap.SugaredLogger
}

// New creates a server. runs may be nil, which disables /runs.
func New(p *dashboard.Pipeline, runs RunLister, httpCfg config.HTTPConfig, dashCfg config.DashboardConfig) *Server {
	return &Server{
		pipeline:  p,
		runs:      runs,
		checks:    make(map[string]Check),
		http:      httpCfg,
		dashboard: dashCfg,
		logger:    log.With("component", "http"),
	}
}

// AddCheck registers a dependency probed by /healthz
func (s *Server) AddCheck(name string, check Check) {
	s.checks[name] = check
}

// Router builds the route table
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.http.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.http.RequestTimeout))
	}

	r.Get("/healthz", s.apiHealth)
	r.Get("/zones", s.apiZones)
	r.Get("/history", s.apiHistory)
	r.Get("/view", s.apiView)
	r.Post("/view", s.apiViewUpload)
	r.Get("/forecast", s.apiForecast)
	if s.runs != nil {
		r.Get("/runs", s.apiRuns)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.http.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("http server listening", "addr", s.http.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Infow("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
