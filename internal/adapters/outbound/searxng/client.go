package searxng

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/httpretry"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/circuitbreaker"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/goccy/go-json"
)

const userAgent = "SoraAI/1.0 (+https://github.com/RGPartners/soraai-chat)"

type (
	Client struct {
		baseURL    string
		httpClient *http.Client
		cb         *circuitbreaker.CircuitBreaker[*http.Response]
		backoff    config.Backoff
		maxRetries uint
		logger     logger.Logger
	}

	Option func(*Client)

	searchResponse struct {
		Results     []model.Article `json:"results"`
		Suggestions []string        `json:"suggestions"`
	}
)

var _ ports.SearchEngine = (*Client)(nil)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func NewClient(cfg config.Searxng, backoffCfg config.Backoff, log logger.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		backoff:    backoffCfg,
		maxRetries: cfg.MaxRetries,
		logger:     log.Component("searxng_client"),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client.cb = circuitbreaker.New[*http.Response](circuitbreaker.Config{
		Name:             "searxng",
		Enabled:          cfg.CircuitBreaker.Enabled,
		MaxRequests:      cfg.CircuitBreaker.MaxRequests,
		Interval:         cfg.CircuitBreaker.Interval,
		Timeout:          cfg.CircuitBreaker.Timeout,
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
	},
		circuitbreaker.WithFailurePredicate(func(err error) bool { return !httpretry.IsUpstreamFault(err) }),
		circuitbreaker.WithStateChange(func(name, from, to string) {
			client.logger.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("circuit breaker state changed")
		}),
	)

	return client
}

// Search runs one query against the JSON API.
func (c *Client) Search(ctx context.Context, query string, opts ports.SearchOptions) ([]model.Article, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)

	if len(opts.Engines) > 0 {
		params.Set("engines", strings.Join(opts.Engines, ","))
	}

	if opts.Language != "" {
		params.Set("language", opts.Language)
	}

	if opts.PageNo > 0 {
		params.Set("pageno", strconv.Itoa(opts.PageNo))
	}

	endpoint := c.baseURL + "/search?" + params.Encode()

	resp, err := httpretry.Do(ctx, c.httpClient, c.cb, c.maxRetries, c.backoff, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Forwarded-For", "127.0.0.1")

		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	defer resp.Body.Close()

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding search results: %w", err)
	}

	c.logger.Debug().Str("query", query).Int("results", len(decoded.Results)).Msg("searxng search")

	if decoded.Results == nil {
		return []model.Article{}, nil
	}

	return decoded.Results, nil
}
