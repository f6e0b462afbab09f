package commands

import (
	"context"
	"errors"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

// recordUsage never fails the request; analytics are best effort.
func recordUsage(ctx context.Context, usage ports.UsageRecorder, log logger.Logger, event model.UsageEvent) {
	if usage == nil {
		return
	}

	if err := usage.Record(ctx, event); err != nil {
		ctxLogger := log.WithContext(ctx)
		ctxLogger.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("recording usage event failed")
	}
}

// failureDetail extracts what the agent reported for a failed generation.
func failureDetail(err error) map[string]any {
	var genErr *bridge.GenerationError
	if errors.As(err, &genErr) {
		return model.SerializeError(genErr.Detail)
	}

	return model.SerializeError(err)
}
