package decorator

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/RG-Partners/soraai-chat/usecases"

func trace(ctx context.Context, tp otelTrace.TracerProvider, action string, fn func(ctx context.Context) error) error {
	ctx, span := tp.Tracer(tracerName).Start(ctx, action)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	span.SetStatus(codes.Ok, "")

	return nil
}
