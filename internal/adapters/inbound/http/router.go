package http

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/handlers"
	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/internal/usecases"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	baseURL = "/v1"

	msgChatRejected        = "Too many chat requests. Please slow down."
	msgSearchRejected      = "Too many search requests. Please slow down."
	msgSuggestionsRejected = "Too many suggestion requests. Please slow down."
	msgDiscoverRejected    = "Too many discover requests. Please try again later."
)

type RouterConfig struct {
	App            *usecases.WebApplication
	Limiter        middleware.Admitter
	InFlight       ports.InFlightGuard
	Logger         logger.Logger
	MetricsClient  metrics.Client
	TracerProvider otelTrace.TracerProvider
	Config         *config.ServiceConfig
}

func NewRouter(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	// Core middlewares - always applied
	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.SecurityHeaders(cfg.Config.App.APIVersion))
	router.Use(middleware.CORS(cfg.Config.CORS))

	if cfg.Config.Telemetry.Traces.Enabled && cfg.TracerProvider != nil {
		router.Use(middleware.Tracer(cfg.TracerProvider))
		cfg.Logger.Info().Msg("distributed tracing enabled")
	}

	if cfg.Config.Telemetry.Metrics.Enabled {
		metricsMiddleware := middleware.NewMetricsMiddleware(cfg.MetricsClient)
		router.Use(metricsMiddleware.Middleware)
		cfg.Logger.Info().Msg("HTTP metrics collection enabled")
	}

	// Access logging with health check filtering
	if cfg.Config.Logging.AccessLog.Enabled {
		router.Use(middleware.HealthCheckFilter(cfg.Config.Logging.AccessLog.LogHealthChecks))
		router.Use(middleware.AccessLogger(cfg.Logger, cfg.Config.Logging.AccessLog.IncludeQueryParams))
		cfg.Logger.Info().
			Bool("log_health_checks", cfg.Config.Logging.AccessLog.LogHealthChecks).
			Msg("structured access logging enabled")
	}

	router.Use(middleware.Authentication(&cfg.Config.Auth, cfg.Logger))

	if cfg.Config.Auth.Enabled {
		cfg.Logger.Info().Msg("authentication is enabled")
	}

	if cfg.Config.Compression.Enabled {
		router.Use(middleware.Compression(cfg.Config.Compression, cfg.MetricsClient))
	}

	h := handlers.NewHandler(cfg.App, cfg.Config.PublicHTTPServer, cfg.Logger)
	limits := cfg.Config.RateLimiting
	serverSettings := cfg.Config.PublicHTTPServer

	router.Route(baseURL, func(r chi.Router) {
		r.Get("/liveness", h.Liveness)
		r.Get("/readiness", h.Readiness)
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(rateLimited(cfg, limits.Chat, msgChatRejected))
			r.Use(middleware.InFlightGuard(cfg.InFlight, serverSettings.StreamTimeout, cfg.Logger))
			r.Post("/chat", h.Chat)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimited(cfg, limits.Search, msgSearchRejected))
			r.Use(middleware.InFlightGuard(cfg.InFlight, serverSettings.StreamTimeout, cfg.Logger))
			r.Post("/search", h.Search)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimited(cfg, limits.Suggestions, msgSuggestionsRejected))
			r.Use(chimiddleware.Timeout(serverSettings.RequestTimeout))
			r.Post("/suggestions", h.Suggestions)
		})

		r.Group(func(r chi.Router) {
			r.Use(rateLimited(cfg, limits.Discover, msgDiscoverRejected))
			r.Use(chimiddleware.Timeout(serverSettings.RequestTimeout))
			r.Get("/discover", h.Discover)
		})
	})

	return router
}

// rateLimited is a pass through when rate limiting is switched off.
func rateLimited(cfg RouterConfig, limit config.EndpointLimit, rejection string) func(http.Handler) http.Handler {
	if !cfg.Config.RateLimiting.Enabled || cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return middleware.RateLimit(cfg.Limiter, limit, rejection, cfg.Logger)
}
