package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// GetJSON decodes a cached value into T. Undecodable entries read as misses.
func GetJSON[T any](ctx context.Context, c *Resilient, key string) (T, bool) {
	var value T

	raw, ok := c.Get(ctx, key)
	if !ok {
		return value, false
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false
	}

	return value, true
}

// SetJSON encodes value and stores it; values that cannot be encoded are
// skipped.
func SetJSON(ctx context.Context, c *Resilient, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	c.Set(ctx, key, raw, ttl)
}
