package queries

import (
	"context"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	FetchLivenessQuery     struct{}
	FetchReadinessQuery    struct{}
	FetchHealthReportQuery struct{}

	FetchLivenessQueryHandler     = decorator.QueryHandler[FetchLivenessQuery, *model.LivenessReport]
	FetchReadinessQueryHandler    = decorator.QueryHandler[FetchReadinessQuery, *model.ReadinessReport]
	FetchHealthReportQueryHandler = decorator.QueryHandler[FetchHealthReportQuery, *model.HealthReport]

	// probeHandler answers one of the three health probes from the checker.
	// Each probe embeds it in its own named type so decorators report it
	// under a distinct action.
	probeHandler[Q any, R any] struct {
		probe func(ctx context.Context) (R, error)
	}

	fetchLivenessQueryHandler struct {
		probeHandler[FetchLivenessQuery, *model.LivenessReport]
	}

	fetchReadinessQueryHandler struct {
		probeHandler[FetchReadinessQuery, *model.ReadinessReport]
	}

	fetchHealthReportQueryHandler struct {
		probeHandler[FetchHealthReportQuery, *model.HealthReport]
	}
)

func (h probeHandler[Q, R]) Execute(ctx context.Context, _ Q) (R, error) {
	return h.probe(ctx)
}

func NewFetchLivenessQueryHandler(
	healthChecker ports.HealthChecker,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchLivenessQueryHandler {
	return decorator.ApplyQueryDecorators[FetchLivenessQuery, *model.LivenessReport](
		fetchLivenessQueryHandler{probeHandler[FetchLivenessQuery, *model.LivenessReport]{probe: healthChecker.Liveness}},
		log, metricsClient, tracerProvider,
	)
}

// NewFetchReadinessQueryHandler pings every dependency on each call; the
// result is never cached so a recovered dependency shows up immediately.
func NewFetchReadinessQueryHandler(
	healthChecker ports.HealthChecker,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchReadinessQueryHandler {
	return decorator.ApplyQueryDecorators[FetchReadinessQuery, *model.ReadinessReport](
		fetchReadinessQueryHandler{probeHandler[FetchReadinessQuery, *model.ReadinessReport]{probe: healthChecker.Readiness}},
		log, metricsClient, tracerProvider,
	)
}

func NewFetchHealthReportQueryHandler(
	healthChecker ports.HealthChecker,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) FetchHealthReportQueryHandler {
	return decorator.ApplyQueryDecorators[FetchHealthReportQuery, *model.HealthReport](
		fetchHealthReportQueryHandler{probeHandler[FetchHealthReportQuery, *model.HealthReport]{probe: healthChecker.Health}},
		log, metricsClient, tracerProvider,
	)
}
