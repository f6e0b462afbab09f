package runtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/agent"
	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/searxng"
	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/infrastructure"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/internal/ratelimit"
	"github.com/RG-Partners/soraai-chat/internal/usecases"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	infrastructureDep struct {
		publicHttpServer *http.Server
		adminHttpServer  *http.Server
		cacheClient      *infrastructure.KeydbClient
		dbPool           *pgxpool.Pool
		logger           logger.Logger
		metricsClient    metrics.Client
		tracerProvider   otelTrace.TracerProvider
	}

	repositories struct {
		secretsRepo ports.SecretsRepository
		history     ports.HistoryRepository
		usage       ports.UsageRecorder
		inFlight    ports.InFlightGuard
		cache       *cache.Resilient
	}

	servicesDep struct {
		agent         *agent.Client
		search        *searxng.Client
		rateLimiter   *ratelimit.Registry
		healthChecker ports.HealthChecker
	}

	applications struct {
		webApp *usecases.WebApplication
	}

	dependencies struct {
		config       *config.ServiceConfig
		configLoader *config.Loader

		infra infrastructureDep

		repos repositories

		services servicesDep

		apps applications

		cleanupFuncs map[string]func(ctx context.Context) error
	}

	DependencyOption func(*dependencies) error
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*dependencies, error) {
	deps := &dependencies{
		cleanupFuncs: make(map[string]func(ctx context.Context) error),
	}

	allOpts := append(defaultOptions(ctx), opts...)

	for _, opt := range allOpts {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return deps, nil
}
