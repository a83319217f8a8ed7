package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siva27neelam/story-telling/api/controllers"
	"github.com/siva27neelam/story-telling/api/middleware"
	"github.com/siva27neelam/story-telling/pkg/config"
	"github.com/siva27neelam/story-telling/pkg/enums"
	"github.com/siva27neelam/story-telling/pkg/logger"
	"github.com/siva27neelam/story-telling/pkg/redis"
)

type rateLimiter interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (redis.Window, error)
}

// Params carries the dependencies of the HTTP surface. RateLimiter and
// Gatherer are optional.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Pipeline    controllers.ImagePipeline
	Readiness   map[string]controllers.Pinger
	RateLimiter rateLimiter
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Admin.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin, enums.OperatorRoleViewer))

		r.Get("/ping", controllers.AdminPing())
		r.Get("/images/status", controllers.AdminImageStatus(p.Pipeline, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.OperatorRoleAdmin))
			if p.RateLimiter != nil {
				r.Use(middleware.TriggerRateLimit(p.RateLimiter, cfg.Admin.TriggerRateLimit, cfg.Admin.TriggerRateWindow, logg))
			}

			r.Post("/images/migrations", controllers.AdminStartMigration(p.Pipeline, cfg.Migration, logg))
			r.Post("/images/migrations/records", controllers.AdminMigrateRecord(p.Pipeline, logg))
			r.Post("/images/compression/local", controllers.AdminStartLocalCompression(p.Pipeline, logg))
			r.Post("/images/compression/remote", controllers.AdminStartRemoteOptimization(p.Pipeline, logg))
		})
	})

	return r
}
