package decorator

import (
	"context"
	"time"

	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

const (
	actionKey = "action"
	kindKey   = "kind"
	statusKey = "status"

	usecaseExecutionsTotal   = "usecase_executions_total"
	usecaseExecutionDuration = "usecase_execution_duration_seconds"
)

func measure(ctx context.Context, client metrics.Client, kind, action string, fn func() error) error {
	start := time.Now()

	err := fn()

	status := "success"
	if err != nil {
		status = "failure"
	}

	attrs := []attribute.KeyValue{
		attribute.String(actionKey, action),
		attribute.String(kindKey, kind),
		attribute.String(statusKey, status),
	}

	client.Inc(ctx, usecaseExecutionsTotal, int64(1), attrs...)
	client.Inc(ctx, usecaseExecutionDuration, time.Since(start).Seconds(), attrs...)

	return err
}
