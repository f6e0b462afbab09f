// Package noop provides a metrics client that discards every observation,
// used by tests and when metrics collection is disabled.
package noop

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
)

type MetricsClient struct{}

func NewMetricsClient() MetricsClient {
	return MetricsClient{}
}

func (MetricsClient) Inc(context.Context, string, any, ...attribute.KeyValue) {}

func (MetricsClient) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (MetricsClient) Shutdown(context.Context) error {
	return nil
}
