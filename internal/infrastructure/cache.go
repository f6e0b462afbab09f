package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 200

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("key not found")

var (
	unlockScript = redis.NewScript(`
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`)

	compareAndSwapScript = redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false or tonumber(current) ~= tonumber(ARGV[1]) then
			return 0
		end
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
		return 1
	`)
)

type KeydbClient struct {
	client *redis.Client
	logger logger.Logger
}

func NewKeyDBClient(cfg config.Cache, log logger.Logger) *KeydbClient {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           int(cfg.DB),
		PoolSize:     int(cfg.PoolSize),
		MinIdleConns: int(cfg.MinIdleConns),
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
		MaxRetries:   int(cfg.MaxRetries),
	}

	return &KeydbClient{
		client: redis.NewClient(opts),
		logger: log.Component("keydb"),
	}
}

func (c *KeydbClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *KeydbClient) Close() error {
	return c.client.Close()
}

func (c *KeydbClient) Get(ctx context.Context, key string) ([]byte, error) {
	startTime := time.Now()

	result, err := c.client.Get(ctx, key).Bytes()

	c.logger.Debug().
		Str("key", key).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("hit", err == nil).
		Msg("keydb get operation")

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting %s: %w", key, err)
	}

	return result, nil
}

// Set stores value under key. A non positive ttl stores it without expiry.
func (c *KeydbClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	startTime := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()

	c.logger.Debug().
		Str("key", key).
		Str("expiry", ttl.String()).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb set operation")

	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	return nil
}

func (c *KeydbClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", key, err)
	}

	return n > 0, nil
}

func (c *KeydbClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	startTime := time.Now()
	err := c.client.Del(ctx, keys...).Err()

	c.logger.Debug().
		Int("keys", len(keys)).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb delete operation")

	if err != nil {
		return fmt.Errorf("deleting keys: %w", err)
	}

	return nil
}

// MGet returns the values of the keys that exist.
func (c *KeydbClient) MGet(ctx context.Context, keys ...string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}

	for i, result := range results {
		if s, ok := result.(string); ok {
			values[keys[i]] = []byte(s)
		}
	}

	return values, nil
}

// ScanPrefix walks the keyspace and returns every key starting with prefix.
func (c *KeydbClient) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)

	for {
		batch, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning keys: %w", err)
		}

		keys = append(keys, batch...)

		if next == 0 {
			return keys, nil
		}

		cursor = next
	}
}

// Lock sets key to value unless it already exists.
func (c *KeydbClient) Lock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	acquired, err := c.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock: %w", err)
	}

	c.logger.Debug().Str("key", key).Bool("acquired", acquired).Msg("keydb lock operation")

	return acquired, nil
}

// Unlock removes key only while it still holds value.
func (c *KeydbClient) Unlock(ctx context.Context, key, value string) error {
	if err := unlockScript.Run(ctx, c.client, []string{key}, value).Err(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}

	return nil
}

// RunScript evaluates script, loading it on first use.
func (c *KeydbClient) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error) {
	startTime := time.Now()

	result, err := script.Run(ctx, c.client, keys, args...).Result()

	c.logger.Debug().
		Strs("keys", keys).
		Int64("duration_ms", time.Since(startTime).Milliseconds()).
		Bool("success", err == nil).
		Msg("keydb script")

	return result, err
}

// GetInt64WithTime reads an integer along with the server clock. An absent
// key reads as -1.
func (c *KeydbClient) GetInt64WithTime(ctx context.Context, key string) (int64, time.Time, error) {
	var (
		getCmd  *redis.StringCmd
		timeCmd *redis.TimeCmd
	)

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		timeCmd = pipe.Time(ctx)

		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, fmt.Errorf("reading %s: %w", key, err)
	}

	now, err := timeCmd.Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reading server time: %w", err)
	}

	value, err := getCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return -1, now, nil
	}

	if err != nil {
		return 0, time.Time{}, fmt.Errorf("reading %s: %w", key, err)
	}

	return value, now, nil
}

func (c *KeydbClient) SetInt64NX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// CompareAndSwapInt64 replaces the value of key with next only while it holds old.
func (c *KeydbClient) CompareAndSwapInt64(ctx context.Context, key string, old, next int64, ttl time.Duration) (bool, error) {
	result, err := compareAndSwapScript.Run(ctx, c.client, []string{key}, old, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (c *KeydbClient) GetStats(ctx context.Context) (map[string]any, error) {
	info, err := c.client.Info(ctx, "memory", "stats", "clients").Result()
	if err != nil {
		return nil, err
	}

	poolStats := c.client.PoolStats()

	return map[string]any{
		"redis_info": info,
		"pool_stats": map[string]any{
			"hits":        poolStats.Hits,
			"misses":      poolStats.Misses,
			"timeouts":    poolStats.Timeouts,
			"total_conns": poolStats.TotalConns,
			"idle_conns":  poolStats.IdleConns,
			"stale_conns": poolStats.StaleConns,
		},
	}, nil
}
