package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thieenjdev03/ecom-client-sub002/api/controllers"
	checkoutcontrollers "github.com/thieenjdev03/ecom-client-sub002/api/controllers/checkout"
	"github.com/thieenjdev03/ecom-client-sub002/api/middleware"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/config"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/redis"
)

// NewRouter wires the checkout API. redisClient may be nil, which disables
// idempotent replays; gatherer may be nil, which hides /metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	sessions *checkoutcontrollers.Registry,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
) http.Handler {
	var (
		idempotencyStore redis.IdempotencyStore
		pinger           redis.Pinger
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		pinger = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pinger))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/checkout/sessions", func(r chi.Router) {
		r.Use(middleware.Credentials(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Post("/", checkoutcontrollers.CreateSession(sessions, logg))
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", checkoutcontrollers.GetSession(sessions, logg))
			r.Delete("/", checkoutcontrollers.AbortSession(sessions, logg))
			r.Post("/approve", checkoutcontrollers.ApproveSession(sessions, logg))
			r.Post("/cancel", checkoutcontrollers.CancelSession(sessions, logg))
			r.Post("/error", checkoutcontrollers.FailSession(sessions, logg))
			r.Post("/recheck", checkoutcontrollers.RecheckSession(sessions, logg))
		})
	})

	return r
}
