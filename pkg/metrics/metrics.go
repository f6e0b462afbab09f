package metrics

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

type (
	// Client records a named observation. Integer values are added to a
	// counter, floating point values are observed on a histogram.
	Client interface {
		Inc(ctx context.Context, key string, value any, attributes ...attribute.KeyValue)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}
)

// SanitizeName turns an attribute or metric key into a Prometheus compatible name.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// SplitAttributes returns the sanitized label names and their values in input order.
func SplitAttributes(attrs []attribute.KeyValue) ([]string, []string) {
	names := make([]string, 0, len(attrs))
	values := make([]string, 0, len(attrs))

	for _, attr := range attrs {
		names = append(names, SanitizeName(string(attr.Key)))
		values = append(values, attr.Value.Emit())
	}

	return names, values
}
