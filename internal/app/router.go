package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/brightpath-care/brightpath/internal/auth"
	"github.com/brightpath-care/brightpath/internal/authz"
	"github.com/brightpath-care/brightpath/internal/counselees"
	"github.com/brightpath-care/brightpath/internal/counselors"
	"github.com/brightpath-care/brightpath/internal/intake"
	"github.com/brightpath-care/brightpath/internal/observability"
	"github.com/brightpath-care/brightpath/internal/portal"
	"github.com/brightpath-care/brightpath/internal/shared"
	"github.com/brightpath-care/brightpath/internal/users"
	"github.com/brightpath-care/brightpath/jobs"
	"github.com/brightpath-care/brightpath/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	Metrics           *observability.Metrics
	Authz             authz.Middleware
	AuthHandler       *auth.Handler
	PortalHandler     *portal.Handler
	UsersHandler      *users.Handler
	CounselorsHandler *counselors.Handler
	CounseleesHandler *counselees.Handler
	IntakeHandler     *intake.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Brightpath defaults.
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

	params.PortalHandler.MountRoutes(r)
	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Webhook endpoints authenticate with their own shared secret and
	// bypass sessions entirely.
	r.Route("/hooks", params.IntakeHandler.MountWebhookRoutes)

	r.Route("/admin", func(r chi.Router) {
		params.UsersHandler.MountRoutes(r)
		params.CounselorsHandler.MountAdminRoutes(r)
		params.CounseleesHandler.MountAdminRoutes(r)
		params.IntakeHandler.MountAdminRoutes(r)
		if params.JobHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(params.Authz.RequireAnyAPI(authz.RoleAdmin))
				r.Route("/jobs", params.JobHandler.MountRoutes)
			})
		}
	})

	r.Route("/counselor", func(r chi.Router) {
		params.CounselorsHandler.MountPortalRoutes(r)
		params.CounseleesHandler.MountCounselorRoutes(r)
		params.IntakeHandler.MountCounselorRoutes(r)
	})

	r.Route("/counselee", params.CounseleesHandler.MountPortalRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static files are served without session or CSRF handling.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
