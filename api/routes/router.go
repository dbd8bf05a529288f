package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/priyamehta/platetrack-backend/api/controllers"
	"github.com/priyamehta/platetrack-backend/api/middleware"
	"github.com/priyamehta/platetrack-backend/internal/audit"
	"github.com/priyamehta/platetrack-backend/internal/directory"
	"github.com/priyamehta/platetrack-backend/internal/ledger"
	"github.com/priyamehta/platetrack-backend/internal/reconcile"
	"github.com/priyamehta/platetrack-backend/internal/sessions"
	"github.com/priyamehta/platetrack-backend/pkg/config"
	"github.com/priyamehta/platetrack-backend/pkg/logger"
	pkgredis "github.com/priyamehta/platetrack-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Redis     pkgredis.IdempotencyStore
	Registry  *prometheus.Registry
	Pingers   []controllers.Pinger
	Directory directory.Service
	Ledger    ledger.Service
	Sessions  sessions.Service
	Audit     audit.Service
	Reconcile reconcile.Service
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.Pingers...))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ActorContext(deps.Logger))
		r.Use(middleware.Idempotency(deps.Redis, deps.Logger))

		r.Get("/families/search", controllers.SearchFamilies(deps.Directory, deps.Logger))

		r.Route("/ledger", func(r chi.Router) {
			r.Post("/check-in", controllers.CheckIn(deps.Ledger, deps.Logger))
			r.Post("/serve", controllers.Serve(deps.Ledger, deps.Logger))
			r.Post("/undo-check-in", controllers.UndoCheckIn(deps.Ledger, deps.Logger))
			r.With(middleware.RequireAdmin(deps.Logger)).Post("/adjust", controllers.Adjust(deps.Ledger, deps.Logger))
			r.With(middleware.RequireAdmin(deps.Logger)).Post("/status", controllers.SetRecordStatus(deps.Ledger, deps.Logger))
		})

		r.Get("/audit", controllers.ListAudit(deps.Audit, deps.Logger))

		r.Get("/sessions/current", controllers.CurrentSession(deps.Sessions, deps.Logger))
		r.With(middleware.RequireAdmin(deps.Logger)).Post("/sessions", controllers.StartSession(deps.Sessions, deps.Logger))

		r.With(middleware.RequireAdmin(deps.Logger)).Post("/reconcile", controllers.Reconcile(deps.Reconcile, deps.Logger))
	})

	return r
}
