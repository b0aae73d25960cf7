package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/facelessdevhack/plati-rail-admin/internal/auth"
	"github.com/facelessdevhack/plati-rail-admin/internal/ledger"
	"github.com/facelessdevhack/plati-rail-admin/internal/observability"
	"github.com/facelessdevhack/plati-rail-admin/internal/platform/httpx"
	"github.com/facelessdevhack/plati-rail-admin/internal/production"
	"github.com/facelessdevhack/plati-rail-admin/internal/rbac"
	"github.com/facelessdevhack/plati-rail-admin/internal/shared"
	"github.com/facelessdevhack/plati-rail-admin/internal/view"
	"github.com/facelessdevhack/plati-rail-admin/internal/warranty"
	"github.com/facelessdevhack/plati-rail-admin/jobs"
	"github.com/facelessdevhack/plati-rail-admin/web"
)

// HealthCheck probes one dependency for /healthz. Optional checks report but never fail
// the endpoint.
type HealthCheck struct {
	Name     string
	Optional bool
	Check    func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Pages             *view.Pages
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	RBACMiddleware    rbac.Middleware
	AuthHandler       *auth.Handler
	LedgerHandler     *ledger.Handler
	ProductionHandler *production.Handler
	WarrantyHandler   *warranty.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	HealthChecks      []HealthCheck
}

// NewRouter constructs the chi.Router with the dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// Static assets skip sessions, CSRF and rate limiting.
	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(web.Static)))
	r.Handle("/static/*", staticCacheHandler(fileServer))
	r.Get("/healthz", healthHandler(params.Logger, params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Pages:          params.Pages,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if !principal.Authenticated() {
				http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, auth.HomePath(principal), http.StatusSeeOther)
		})

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/dealers", params.LedgerHandler.MountRoutes)
		r.Route("/production", params.ProductionHandler.MountRoutes)
		r.Route("/warranty", params.WarrantyHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.RequireRole(shared.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			params.Pages.RenderStatus(w, r, http.StatusNotFound, "pages/error.html", "Page not found", "The page you asked for does not exist.")
		})
	})

	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check concurrently under a short deadline.
func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				results[i] = c.Check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		report := healthReport{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for i, c := range checks {
			if results[i] == nil {
				report.Checks[c.Name] = "ok"
				continue
			}
			report.Checks[c.Name] = results[i].Error()
			logger.Warn("health check failed", slog.String("check", c.Name), slog.Any("error", results[i]))
			if !c.Optional {
				report.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		httpx.JSON(w, status, report)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
