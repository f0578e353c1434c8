package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clubdesk/clubdesk/internal/accounts"
	"github.com/clubdesk/clubdesk/internal/observability"
	"github.com/clubdesk/clubdesk/internal/platform/httpx"
	"github.com/clubdesk/clubdesk/internal/players"
	"github.com/clubdesk/clubdesk/internal/records"
	"github.com/clubdesk/clubdesk/jobs"
)

// HealthCheck probes one backing service for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Metrics         *observability.Metrics
	AccountsHandler *accounts.Handler
	RecordsHandler  *records.Handler
	PlayersHandler  *players.Handler
	// JobHandler is nil unless the queue mail driver is in use.
	JobHandler   *jobs.Handler
	HealthChecks []HealthCheck
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AccountsHandler != nil {
		r.Route("/user", params.AccountsHandler.MountRoutes)
	}
	if params.RecordsHandler != nil {
		r.Route("/record", params.RecordsHandler.MountRoutes)
	}
	if params.PlayersHandler != nil {
		r.Route("/clubPlayers", params.PlayersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		body := healthBody{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			body.Checks = make(map[string]string, len(checks))
		}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				body.Checks[c.Name] = "unavailable"
				body.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[c.Name] = "ok"
		}
		httpx.JSON(w, status, body)
	}
}
