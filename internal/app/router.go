package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/praxis-sec/praxis/internal/audit/http"
	"github.com/praxis-sec/praxis/internal/authz"
	"github.com/praxis-sec/praxis/internal/modules"
	"github.com/praxis-sec/praxis/internal/observability"
	"github.com/praxis-sec/praxis/internal/permissions"
	"github.com/praxis-sec/praxis/internal/platform/httpx"
	"github.com/praxis-sec/praxis/internal/principals"
	"github.com/praxis-sec/praxis/internal/roles"
	"github.com/praxis-sec/praxis/internal/shared"
	"github.com/praxis-sec/praxis/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthzHandler       *authz.Handler
	RolesHandler       *roles.Handler
	PrincipalsHandler  *principals.Handler
	ModulesHandler     *modules.Handler
	PermissionsHandler *permissions.Handler
	AuditHandler       *audithttp.Handler
	JobsHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Praxis defaults.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		body := map[string]any{
			"authenticated": sess.Authenticated(),
		}
		if sess.Authenticated() {
			body["principal_id"] = sess.Principal()
			if token, err := params.CSRFManager.EnsureToken(r.Context(), sess); err == nil {
				body["csrf_token"] = token
			}
		}
		httpx.JSON(w, http.StatusOK, body)
	})

	r.Post("/session/logout", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess != nil {
			params.SessionManager.Destroy(sess)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if params.AuthzHandler != nil {
		r.Route("/authz", params.AuthzHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.PrincipalsHandler != nil {
		r.Route("/principals", params.PrincipalsHandler.MountRoutes)
	}
	if params.ModulesHandler != nil {
		r.Route("/modules", params.ModulesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
