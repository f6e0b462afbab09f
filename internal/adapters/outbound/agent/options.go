package agent

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/pkg/circuitbreaker"
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker[*http.Response]) Option {
	return func(c *Client) {
		c.cb = cb
	}
}
