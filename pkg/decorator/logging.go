package decorator

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
)

func logExecution(ctx context.Context, log logger.Logger, kind, action string, fn func() error) error {
	reqLogger := log.WithContext(ctx).
		With().
		Str(kind, action).
		Logger()

	start := time.Now()

	reqLogger.Debug().Msgf("executing %s", kind)

	err := fn()

	duration := time.Since(start)

	if err != nil {
		reqLogger.Error().
			Err(err).
			Int64("duration_ms", duration.Milliseconds()).
			Msgf("failed to execute %s", kind)

		return err
	}

	reqLogger.Debug().
		Int64("duration_ms", duration.Milliseconds()).
		Msgf("%s executed successfully", kind)

	return nil
}
