package decorator

import (
	"context"

	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Query  any
	Result any

	QueryHandler[Q Query, R Result] interface {
		Execute(ctx context.Context, query Q) (R, error)
	}

	queryHandlerFunc[Q Query, R Result] func(ctx context.Context, query Q) (R, error)
)

func (f queryHandlerFunc[Q, R]) Execute(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

// ApplyQueryDecorators wraps handler with logging, metrics and tracing, outermost first.
func ApplyQueryDecorators[Q Query, R Result](
	handler QueryHandler[Q, R],
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) QueryHandler[Q, R] {
	action := generateActionName(handler)

	traced := queryHandlerFunc[Q, R](func(ctx context.Context, query Q) (R, error) {
		var result R

		err := trace(ctx, tracerProvider, action, func(ctx context.Context) error {
			var err error
			result, err = handler.Execute(ctx, query)

			return err
		})

		return result, err
	})

	measured := queryHandlerFunc[Q, R](func(ctx context.Context, query Q) (R, error) {
		var result R

		err := measure(ctx, metricsClient, "query", action, func() error {
			var err error
			result, err = traced.Execute(ctx, query)

			return err
		})

		return result, err
	})

	return queryHandlerFunc[Q, R](func(ctx context.Context, query Q) (R, error) {
		var result R

		err := logExecution(ctx, log, "query", action, func() error {
			var err error
			result, err = measured.Execute(ctx, query)

			return err
		})

		return result, err
	})
}
