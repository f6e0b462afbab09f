package runtime

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"

	inboundhttp "github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http"
	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/agent"
	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/searxng"
	"github.com/RG-Partners/soraai-chat/internal/adapters/repos"
	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/internal/ratelimit"
	"github.com/RG-Partners/soraai-chat/internal/services"
	"github.com/RG-Partners/soraai-chat/internal/usecases"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics/noop"
	"github.com/RG-Partners/soraai-chat/pkg/metrics/prometheus"
	"github.com/hashicorp/vault/api"
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfig(),
		WithLogger(),
		WithSecretsRepository(),
		WithConfigLoader(ctx),
		WithMetrics(),
		WithTracing(ctx),
		WithCacheClient(),
		WithResilientCache(),
		WithRateLimiter(ctx),
		WithDatabase(ctx),
		WithOutboundClients(),
		WithHealthChecker(),
		WithApplication(),
		WithHTTPServer(),
		WithAdminHTTPServer(),
	}
}

func WithConfig() DependencyOption {
	return func(d *dependencies) error {
		cfg, err := config.Init()
		if err != nil {
			return fmt.Errorf("initializing configuration: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}

		d.config = cfg

		return nil
	}
}

func WithLogger() DependencyOption {
	return func(d *dependencies) error {
		d.infra.logger = logger.New(d.config.Logging.Level, d.config.Logging.Format)

		return nil
	}
}

func WithSecretsRepository() DependencyOption {
	return func(d *dependencies) error {
		storage := d.config.SecretsStorage
		if !storage.Enabled {
			return nil
		}

		vaultConfig := api.DefaultConfig()
		vaultConfig.Address = storage.Address
		vaultConfig.Timeout = storage.Timeout
		vaultConfig.MaxRetries = int(storage.MaxRetries)

		if storage.TLSSkipVerify {
			vaultConfig.HttpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}

		client, err := api.NewClient(vaultConfig)
		if err != nil {
			return fmt.Errorf("creating Vault client: %w", err)
		}

		if storage.Namespace != "" {
			client.SetNamespace(storage.Namespace)
		}

		d.repos.secretsRepo = repos.NewVaultRepository(client)

		return nil
	}
}

// WithConfigLoader applies the Vault secrets once at start up; later
// versions are picked up by the loader's watch loop.
func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.SecretsStorage.Enabled || d.repos.secretsRepo == nil {
			return nil
		}

		loader := config.NewLoader(d.config, d.repos.secretsRepo, 0)

		version, err := loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading secrets from Vault: %w", err)
		}

		d.infra.logger.Info().Uint("version", version).Msg("secrets loaded from Vault")

		d.configLoader = loader

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Telemetry.Metrics.Enabled {
			d.infra.metricsClient = noop.NewMetricsClient()

			return nil
		}

		client := prometheus.NewClient(d.config.App.ServiceName)

		d.infra.metricsClient = client
		d.cleanupFuncs["metrics"] = client.Shutdown

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		telemetry := d.config.Telemetry
		if !telemetry.Enabled || !telemetry.Traces.Enabled {
			d.infra.tracerProvider = infrastructure.NewNoopTracerProvider()

			return nil
		}

		tp, shutdown, err := infrastructure.NewTracerProvider(ctx, d.config.App, telemetry)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}

		d.infra.tracerProvider = tp
		d.cleanupFuncs["tracer"] = shutdown

		return nil
	}
}

func WithCacheClient() DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Cache.Enabled {
			d.infra.logger.Warn().Msg("shared cache disabled, running on the local store only")

			return nil
		}

		client := infrastructure.NewKeyDBClient(d.config.Cache, d.infra.logger)

		d.infra.cacheClient = client
		d.repos.inFlight = repos.NewInFlightRepository(client)
		d.cleanupFuncs["keydb"] = func(context.Context) error {
			return client.Close()
		}

		return nil
	}
}

// WithResilientCache puts the KeyDB store in front of a local store. KeyDB
// being down at start up only marks the primary unavailable.
func WithResilientCache() DependencyOption {
	return func(d *dependencies) error {
		settings := d.config.ResilientCache

		local := cache.NewLocalStore(settings.SweepInterval)

		var primary cache.Store
		if d.infra.cacheClient != nil {
			primary = repos.NewCacheStore(d.infra.cacheClient, settings.KeyPrefix)
		}

		d.repos.cache = cache.NewResilient(primary, local,
			cache.Options{
				DefaultTTL:    settings.DefaultTTL,
				RetryCooldown: settings.RetryCooldown,
				MaxRetries:    settings.MaxRetries,
				OpTimeout:     settings.OpTimeout,
			},
			cache.WithLogger(d.infra.logger),
			cache.WithMetrics(d.infra.metricsClient),
		)

		d.cleanupFuncs["local_cache"] = func(context.Context) error {
			local.Close()

			return nil
		}

		return nil
	}
}

func WithRateLimiter(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.RateLimiting.Enabled {
			return nil
		}

		opts := []ratelimit.RegistryOption{
			ratelimit.WithLogger(d.infra.logger),
			ratelimit.WithCheckTimeout(d.config.RateLimiting.CheckTimeout),
		}

		if d.infra.cacheClient == nil {
			d.services.rateLimiter = ratelimit.NewRegistry(ctx, nil, nil, opts...)

			return nil
		}

		d.services.rateLimiter = ratelimit.NewRegistry(ctx,
			d.infra.cacheClient,
			repos.NewGCRAStore(d.infra.cacheClient),
			opts...,
		)

		return nil
	}
}

// WithDatabase falls back to repositories that drop writes when no database
// is configured.
func WithDatabase(ctx context.Context) DependencyOption {
	return func(d *dependencies) error {
		if !d.config.Database.Enabled {
			d.infra.logger.Warn().Msg("database disabled, chat history and usage events are not persisted")
			d.repos.history = repos.DisabledHistory{}
			d.repos.usage = repos.DisabledUsage{}

			return nil
		}

		pool, err := infrastructure.NewPostgresPool(ctx, d.config.Database)
		if err != nil {
			return fmt.Errorf("connecting to the database: %w", err)
		}

		d.infra.dbPool = pool
		d.repos.history = repos.NewHistoryRepository(pool, d.infra.logger)
		d.repos.usage = repos.NewUsageRepository(pool, d.infra.logger)
		d.cleanupFuncs["database"] = func(context.Context) error {
			pool.Close()

			return nil
		}

		return nil
	}
}

func WithOutboundClients() DependencyOption {
	return func(d *dependencies) error {
		d.services.agent = agent.NewClient(d.config.Agent, d.config.Backoff, d.infra.logger)
		d.services.search = searxng.NewClient(d.config.Searxng, d.config.Backoff, d.infra.logger)

		return nil
	}
}

// WithHealthChecker reports the agent as the only critical dependency: the
// service degrades without the cache or the database but cannot answer
// without the agent.
func WithHealthChecker() DependencyOption {
	return func(d *dependencies) error {
		var cachePinger, databasePinger ports.Pinger

		if d.infra.cacheClient != nil {
			cachePinger = d.infra.cacheClient
		}

		if d.infra.dbPool != nil {
			databasePinger = d.infra.dbPool
		}

		d.services.healthChecker = services.NewHealthChecker(d.config.App,
			[]services.Dependency{
				{Name: "cache", Pinger: cachePinger},
				{Name: "database", Pinger: databasePinger},
				{Name: "agent", Pinger: d.services.agent},
			},
			services.WithCritical("agent"),
		)

		return nil
	}
}

func WithApplication() DependencyOption {
	return func(d *dependencies) error {
		d.apps.webApp = usecases.NewWebApplication(
			usecases.Dependencies{
				History:          d.repos.history,
				Usage:            d.repos.usage,
				Agent:            d.services.agent,
				Search:           d.services.search,
				HealthChecker:    d.services.healthChecker,
				SuggestionsCache: repos.NewSuggestionsCacheAdapter(d.repos.cache),
				DiscoverCache:    repos.NewDiscoverCacheAdapter(d.repos.cache, d.config.Discover),
			},
			d.config,
			d.infra.logger,
			d.infra.metricsClient,
			d.infra.tracerProvider,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		routerConfig := inboundhttp.RouterConfig{
			App:            d.apps.webApp,
			InFlight:       d.repos.inFlight,
			Logger:         d.infra.logger,
			MetricsClient:  d.infra.metricsClient,
			TracerProvider: d.infra.tracerProvider,
			Config:         d.config,
		}

		if d.services.rateLimiter != nil {
			routerConfig.Limiter = d.services.rateLimiter
		}

		settings := d.config.PublicHTTPServer

		server := &http.Server{
			Addr:              net.JoinHostPort(settings.Host, strconv.FormatUint(uint64(settings.Port), 10)),
			Handler:           inboundhttp.NewRouter(routerConfig),
			ReadTimeout:       settings.ReadTimeout,
			ReadHeaderTimeout: settings.ReadHeaderTimeout,
			WriteTimeout:      settings.WriteTimeout,
			IdleTimeout:       settings.IdleTimeout,
		}

		d.infra.publicHttpServer = server
		d.cleanupFuncs["public_http_server"] = server.Shutdown

		return nil
	}
}

func WithAdminHTTPServer() DependencyOption {
	return func(d *dependencies) error {
		settings := d.config.AdminHTTPServer
		if !settings.Enabled {
			return nil
		}

		adminConfig := inboundhttp.AdminRouterConfig{
			Cache:  d.repos.cache,
			Logger: d.infra.logger,
		}

		if d.config.Telemetry.Metrics.Enabled {
			adminConfig.MetricsHandler = d.infra.metricsClient.Handler()
		}

		server := &http.Server{
			Addr:         net.JoinHostPort(settings.Host, strconv.FormatUint(uint64(settings.Port), 10)),
			Handler:      inboundhttp.NewAdminRouter(adminConfig),
			ReadTimeout:  settings.ReadTimeout,
			WriteTimeout: settings.WriteTimeout,
			IdleTimeout:  settings.IdleTimeout,
		}

		d.infra.adminHttpServer = server
		d.cleanupFuncs["admin_http_server"] = server.Shutdown

		return nil
	}
}
