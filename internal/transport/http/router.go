// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and never embed business logic, keeping transport concerns
// isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentdesk/internal/platform/metrics"
	"consentdesk/internal/platform/middleware"
	"consentdesk/internal/transport/http/shared"
)

// Registrar is anything that mounts routes on the router. All handlers in
// this package implement it.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports backend connectivity for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a plain function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Health(ctx context.Context) error { return f(ctx) }

// NewRouter assembles the full middleware chain and mounts every handler.
// checkers are optional backend probes surfaced through /healthz.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, checkers map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	if m != nil {
		r.Use(middleware.Latency(m))
	}

	r.Get("/healthz", handleHealth(checkers))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func handleHealth(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		overall := "ok"
		backends := make(map[string]string, len(checkers))
		for name, c := range checkers {
			if err := c.Health(r.Context()); err != nil {
				backends[name] = err.Error()
				status = http.StatusServiceUnavailable
				overall = "degraded"
				continue
			}
			backends[name] = "ok"
		}
		resp := map[string]any{"status": overall}
		if len(backends) > 0 {
			resp["backends"] = backends
		}
		shared.WriteJSON(w, status, resp)
	}
}
