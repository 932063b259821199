package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthChecker is anything the admin surface should probe before reporting
// the process healthy.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthFunc adapts a bare function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Ping(ctx context.Context) error { return f(ctx) }

// AdminServer serves /health and /metrics on a side port. It is
// observability plumbing, not the application's API surface.
type AdminServer struct {
	srv    *http.Server
	checks map[string]HealthChecker
	log    *zerolog.Logger
}

func NewAdminServer(port int, checks map[string]HealthChecker, log *zerolog.Logger) *AdminServer {
	a := &AdminServer{checks: checks, log: log}

	r := chi.NewRouter()
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	a.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return a
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for name, check := range a.checks {
		if err := check.Ping(ctx); err != nil {
			a.log.Warn().Err(err).Str("check", name).Msg("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "%s: unavailable", name)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Start serves until Shutdown; it returns http.ErrServerClosed on a clean stop.
func (a *AdminServer) Start() error {
	a.log.Info().Str("addr", a.srv.Addr).Msg("admin server listening")
	return a.srv.ListenAndServe()
}

func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
