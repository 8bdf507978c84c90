package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/compasshq/compass/internal/audit/http"
	"github.com/compasshq/compass/internal/auth"
	"github.com/compasshq/compass/internal/cycles"
	"github.com/compasshq/compass/internal/directory"
	"github.com/compasshq/compass/internal/observability"
	"github.com/compasshq/compass/internal/okr"
	"github.com/compasshq/compass/internal/roles"
	"github.com/compasshq/compass/internal/shared"
	"github.com/compasshq/compass/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	Principal        func(http.Handler) http.Handler
	AuthHandler      *auth.Handler
	DirectoryHandler *directory.Handler
	OKRHandler       *okr.Handler
	CyclesHandler    *cycles.Handler
	RolesHandler     *roles.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Principal:      params.Principal,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/v1", func(r chi.Router) {
		params.DirectoryHandler.Routes(r)
		params.OKRHandler.Routes(r)
		params.CyclesHandler.Routes(r)
		params.RolesHandler.Routes(r)
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
