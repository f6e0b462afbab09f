package decorator

import (
	"context"
	"fmt"
	"strings"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Command any

	CommandHandler[C Command, R any] interface {
		Handle(context.Context, C) (R, error)
	}

	commandHandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)
)

func (f commandHandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// ApplyCommandDecorators wraps handler with logging, metrics and tracing, outermost first.
func ApplyCommandDecorators[C Command, R any](
	handler CommandHandler[C, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) CommandHandler[C, R] {
	action := generateActionName(handler)

	traced := commandHandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		var result R

		err := trace(ctx, tracerProvider, action, func(ctx context.Context) error {
			var err error
			result, err = handler.Handle(ctx, cmd)

			return err
		})

		return result, err
	})

	measured := commandHandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		var result R

		err := measure(ctx, metricsClient, "command", action, func() error {
			var err error
			result, err = traced.Handle(ctx, cmd)

			return err
		})

		return result, err
	})

	return commandHandlerFunc[C, R](func(ctx context.Context, cmd C) (R, error) {
		var result R

		err := logExecution(ctx, log, "command", action, func() error {
			var err error
			result, err = measured.Handle(ctx, cmd)

			return err
		})

		return result, err
	})
}

func generateActionName(handler any) string {
	name := fmt.Sprintf("%T", handler)
	name = strings.TrimPrefix(name, "*")

	if idx := strings.Index(name, "["); idx != -1 {
		name = name[:idx]
	}

	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}

	return name
}
