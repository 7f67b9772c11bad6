package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/config"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/health"
	middleware "github.com/mohammed-shakir/coverage-lookup/internal/core/middleware"
	"github.com/mohammed-shakir/coverage-lookup/internal/core/router"
)

type Deps struct {
	Lookup router.Lookuper

	// Ready lists the dependencies /readyz pings.
	Ready        map[string]health.Pinger
	ReadyTimeout time.Duration

	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
}

func NewHandler(logger *slog.Logger, d Deps) http.Handler {
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 2 * time.Second
	}
	if d.MetricsPath == "" {
		d.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.ReadyTimeout, d.Ready))
	if d.Metrics != nil {
		r.Handle(d.MetricsPath, d.Metrics)
	}
	r.Get(router.LookupRoute, router.HandleLookup(logger, d.Lookup))
	return r
}

// Run serves h on cfg.Addr until ctx is cancelled, then drains in-flight
// requests.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, h http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
