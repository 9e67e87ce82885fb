package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chronicle/internal/platform/middleware/auth"
)

// NewRouter wires the audit API. Everything under /v1/audit requires a
// valid bearer token; health and metrics stay open for probes and scrapes.
func NewRouter(h *Handler, validator auth.Validator) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/audit", func(r chi.Router) {
		r.Use(auth.Middleware(validator, h.logger))
		r.Post("/logs", h.handleLog)
		r.Get("/logs", h.handleQuery)
		r.Post("/reports", h.handleReport)
		r.Get("/dashboard", h.handleDashboard)
		r.Post("/alerts", h.handleAlerts)
		r.Post("/compliance", h.handleCompliance)
		r.Get("/quarantine", h.handleQuarantine)
		r.Post("/quarantine/requeue", h.handleRequeue)
	})

	return r
}
