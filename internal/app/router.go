package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/filehaven/filehaven/internal/auth"
	"github.com/filehaven/filehaven/internal/authz"
	"github.com/filehaven/filehaven/internal/files"
	"github.com/filehaven/filehaven/internal/folders"
	"github.com/filehaven/filehaven/internal/grants"
	"github.com/filehaven/filehaven/internal/instances"
	"github.com/filehaven/filehaven/internal/observability"
	"github.com/filehaven/filehaven/internal/shared"
	"github.com/filehaven/filehaven/internal/stats"
	"github.com/filehaven/filehaven/internal/users"
	"github.com/filehaven/filehaven/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	// PrincipalMiddleware resolves the session user into a request principal.
	PrincipalMiddleware func(http.Handler) http.Handler

	Authz authz.Middleware

	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	InstancesHandler *instances.Handler
	FoldersHandler   *folders.Handler
	FilesHandler     *files.Handler
	GrantsHandler    *grants.Handler
	StatsHandler     *stats.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Filehaven defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.PrincipalMiddleware != nil {
		r.Use(params.PrincipalMiddleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.InstancesHandler != nil {
		r.Route("/instances", params.InstancesHandler.MountRoutes)
	}
	if params.FoldersHandler != nil {
		r.Route("/folders", params.FoldersHandler.MountRoutes)
	}
	if params.FilesHandler != nil {
		r.Route("/files", params.FilesHandler.MountRoutes)
	}
	if params.GrantsHandler != nil {
		r.Route("/grants", params.GrantsHandler.MountRoutes)
	}
	if params.StatsHandler != nil {
		r.Route("/stats", params.StatsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			jr.Use(params.Authz.RequireSuperadmin)
			params.JobHandler.MountRoutes(jr)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
