// Package prometheus implements metrics.Client on top of a private
// Prometheus registry. Instruments are created lazily on first use.
package prometheus

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

type (
	Client struct {
		namespace  string
		registry   *prometheus.Registry
		mu         sync.Mutex
		counters   map[string]*counter
		histograms map[string]*histogram
	}

	counter struct {
		labels []string
		vec    *prometheus.CounterVec
	}

	histogram struct {
		labels []string
		vec    *prometheus.HistogramVec
	}
)

// NewClient creates a client whose metrics are prefixed with namespace.
func NewClient(namespace string) *Client {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Client{
		namespace:  metrics.SanitizeName(namespace),
		registry:   registry,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

func (c *Client) Inc(_ context.Context, key string, value any, attributes ...attribute.KeyValue) {
	attrs := slices.Clone(attributes)
	slices.SortFunc(attrs, func(a, b attribute.KeyValue) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})

	labels, values := metrics.SplitAttributes(attrs)
	name := metrics.SanitizeName(key)

	switch v := value.(type) {
	case int:
		c.add(name, labels, values, float64(v))
	case int64:
		c.add(name, labels, values, float64(v))
	case uint64:
		c.add(name, labels, values, float64(v))
	case float64:
		c.observe(name, labels, values, v)
	case float32:
		c.observe(name, labels, values, float64(v))
	}
}

func (c *Client) add(name string, labels, values []string, value float64) {
	c.mu.Lock()
	ctr, ok := c.counters[name]
	if !ok {
		ctr = &counter{
			labels: labels,
			vec: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: c.namespace,
				Name:      name,
				Help:      name,
			}, labels),
		}

		if err := c.registry.Register(ctr.vec); err != nil {
			c.mu.Unlock()

			return
		}

		c.counters[name] = ctr
	}
	c.mu.Unlock()

	if !slices.Equal(ctr.labels, labels) || value < 0 {
		return
	}

	ctr.vec.WithLabelValues(values...).Add(value)
}

func (c *Client) observe(name string, labels, values []string, value float64) {
	c.mu.Lock()
	hist, ok := c.histograms[name]
	if !ok {
		hist = &histogram{
			labels: labels,
			vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: c.namespace,
				Name:      name,
				Help:      name,
				Buckets:   prometheus.DefBuckets,
			}, labels),
		}

		if err := c.registry.Register(hist.vec); err != nil {
			c.mu.Unlock()

			return
		}

		c.histograms[name] = hist
	}
	c.mu.Unlock()

	if !slices.Equal(hist.labels, labels) {
		return
	}

	hist.vec.WithLabelValues(values...).Observe(value)
}

// Handler exposes the registry in the Prometheus text format.
func (c *Client) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Client) Shutdown(_ context.Context) error {
	return nil
}
