package prometheus_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RG-Partners/soraai-chat/pkg/metrics/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func scrape(t *testing.T, client *prometheus.Client) string {
	t.Helper()

	rec := httptest.NewRecorder()
	client.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	return string(body)
}

func TestClient_Counter(t *testing.T) {
	t.Parallel()

	client := prometheus.NewClient("chat-gateway")
	ctx := context.Background()

	client.Inc(ctx, "http_requests_total", int64(1), attribute.String("http.method", "GET"))
	client.Inc(ctx, "http_requests_total", int64(2), attribute.String("http.method", "GET"))

	body := scrape(t, client)
	require.Contains(t, body, `chat_gateway_http_requests_total{http_method="GET"} 3`)
}

func TestClient_Histogram(t *testing.T) {
	t.Parallel()

	client := prometheus.NewClient("gw")

	client.Inc(context.Background(), "http_request_duration_seconds", 0.25, attribute.String("path", "/v1/chat"))

	body := scrape(t, client)
	require.Contains(t, body, `gw_http_request_duration_seconds_count{path="/v1/chat"} 1`)
}

func TestClient_IgnoresMismatchedLabels(t *testing.T) {
	t.Parallel()

	client := prometheus.NewClient("gw")
	ctx := context.Background()

	client.Inc(ctx, "events_total", 1, attribute.String("type", "a"))
	client.Inc(ctx, "events_total", 1, attribute.String("other", "b"))

	body := scrape(t, client)
	require.Contains(t, body, `gw_events_total{type="a"} 1`)
	require.NotContains(t, body, `other="b"`)
	require.NoError(t, client.Shutdown(ctx))
}
