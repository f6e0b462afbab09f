package agent

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/outbound/httpretry"
	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/circuitbreaker"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/goccy/go-json"
)

const (
	answerPath      = "/v1/answer"
	suggestionsPath = "/v1/suggestions"
	healthPath      = "/healthz"

	ndjsonContentType = "application/x-ndjson"
)

// Client talks to the generation agent. Generations are NDJSON streams;
// only establishing the stream is retried.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	cb           *circuitbreaker.CircuitBreaker[*http.Response]
	backoff      config.Backoff
	maxRetries   uint
	eventBuffer  int
	maxLineBytes int
	logger       logger.Logger
}

var _ ports.AnswerAgent = (*Client)(nil)

func NewClient(cfg config.Agent, backoffCfg config.Backoff, log logger.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		backoff:      backoffCfg,
		maxRetries:   cfg.MaxRetries,
		eventBuffer:  int(cfg.EventBuffer),
		maxLineBytes: int(cfg.MaxLineBytes),
		logger:       log.Component("agent_client"),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.ConnectTimeout,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConnsPerHost:   16,
			},
		}
	}

	if client.cb == nil {
		client.cb = circuitbreaker.New[*http.Response](circuitbreaker.Config{
			Name:             "agent",
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
	}

	return client
}

func (c *Client) Answer(ctx context.Context, req model.GenerationRequest) (bridge.Source, error) {
	if req.History == nil {
		req.History = [][2]string{}
	}

	return c.openStream(ctx, answerPath, req)
}

type (
	suggestionTurn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	suggestionsRequest struct {
		ChatHistory []suggestionTurn `json:"chatHistory"`
		ChatModel   model.ModelRef   `json:"chatModel"`
	}
)

func (c *Client) Suggest(ctx context.Context, history [][2]string, chatModel model.ModelRef) (bridge.Source, error) {
	turns := make([]suggestionTurn, 0, len(history))
	for _, pair := range history {
		turns = append(turns, suggestionTurn{Role: pair[0], Content: pair[1]})
	}

	return c.openStream(ctx, suggestionsPath, suggestionsRequest{ChatHistory: turns, ChatModel: chatModel})
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent health: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return httpretry.ReadStatusError(resp)
	}

	return resp.Body.Close()
}

// openStream keeps the upstream request alive past ctx: while connecting a
// cancelled ctx aborts it, afterwards only Detach does.
func (c *Client) openStream(ctx context.Context, path string, payload any) (bridge.Source, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding agent request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopConnectWatch := context.AfterFunc(ctx, cancel)

	resp, err := httpretry.Do(streamCtx, c.httpClient, c.cb, c.maxRetries, c.backoff, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", ndjsonContentType)

		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		return req, nil
	})

	if !stopConnectWatch() || err != nil {
		cancel()

		if resp != nil {
			_ = resp.Body.Close()
		}

		if err == nil {
			err = ctx.Err()
		}

		return nil, fmt.Errorf("opening agent stream: %w", err)
	}

	src := &stream{Emitter: bridge.NewEmitter(c.eventBuffer), cancel: cancel}

	go c.pump(resp, src)

	return src, nil
}

// stream cancels the upstream request when the consumer detaches.
type stream struct {
	*bridge.Emitter
	cancel context.CancelFunc
}

func (s *stream) Detach() {
	s.Emitter.Detach()
	s.cancel()
}
