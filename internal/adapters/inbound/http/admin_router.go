package http

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/handlers/admin"
	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// AdminRouterConfig holds dependencies for the admin router.
type AdminRouterConfig struct {
	Cache          admin.Cache
	MetricsHandler http.Handler
	Logger         logger.Logger
}

// NewAdminRouter creates a router for internal admin endpoints.
// These endpoints are intended to run on a separate internal port.
func NewAdminRouter(cfg AdminRouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestTracking())
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(cfg.Logger))

	if cfg.Cache == nil {
		cfg.Logger.Warn().Msg("admin router: cache not available, cache endpoints will return 503")
	}

	adminHandler := admin.NewHandler(cfg.Cache, cfg.Logger)

	router.Route("/admin", func(r chi.Router) {
		r.Get("/cache", adminHandler.ListCache)
		r.Delete("/cache", adminHandler.ClearCache)
		r.Delete("/cache/{key}", adminHandler.DeleteCacheKey)

		if cfg.MetricsHandler != nil {
			r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
		}
	})

	return router
}
