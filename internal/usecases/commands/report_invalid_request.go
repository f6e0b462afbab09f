package commands

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
	// ReportInvalidRequestCommand records a request body that failed
	// validation before any use case could run.
	ReportInvalidRequestCommand struct {
		Identity  model.Identity
		EventType model.UsageEventType
		Issues    []model.ValidationError
	}

	ReportInvalidRequestCommandHandler = decorator.CommandHandler[ReportInvalidRequestCommand, struct{}]

	reportInvalidRequestCommandHandler struct {
		usage  ports.UsageRecorder
		logger logger.Logger
	}
)

func NewReportInvalidRequestCommandHandler(
	usage ports.UsageRecorder,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) ReportInvalidRequestCommandHandler {
	return decorator.ApplyCommandDecorators[ReportInvalidRequestCommand, struct{}](
		reportInvalidRequestCommandHandler{
			usage:  usage,
			logger: log.Component("report_invalid_request"),
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h reportInvalidRequestCommandHandler) Handle(ctx context.Context, cmd ReportInvalidRequestCommand) (struct{}, error) {
	recordUsage(ctx, h.usage, h.logger, model.UsageEvent{
		EventType: cmd.EventType,
		UserID:    cmd.Identity.UserID,
		IsError:   true,
		Metadata: map[string]any{
			"reason": "invalid_request_body",
			"issues": cmd.Issues,
		},
	})

	return struct{}{}, nil
}
