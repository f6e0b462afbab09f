package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/throttled/throttled/v2"
)

type (
	Limiter interface {
		Admit(ctx context.Context, identity string) (Decision, error)
	}

	// ScriptRunner evaluates Lua atomically on the shared counter store.
	ScriptRunner interface {
		RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) (any, error)
	}
)

// slidingLogScript keeps one sorted set member per admitted request scored
// by its admission time in ms. It returns {allowed, count, oldestScore}.
var slidingLogScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end

redis.call('PEXPIRE', key, window)

local oldest = now
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
  oldest = tonumber(head[2])
end

return {allowed, count, oldest}
`)

// fixedWindowScript counts hits in the current window bucket.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

type slidingLimiter struct {
	runner ScriptRunner
	policy Policy
	now    func() time.Time
}

func (l *slidingLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := l.policy.Window.Milliseconds()
	key := l.policy.KeyPrefix + ":" + identity

	reply, err := l.runner.RunScript(ctx, slidingLogScript, []string{key},
		nowMs, windowMs, l.policy.Requests, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString())
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	values, err := int64s(reply, 3)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	allowed, count, oldest := values[0] == 1, values[1], values[2]
	resetAt := time.UnixMilli(oldest + windowMs)

	decision := Decision{
		Allowed:   allowed,
		Limit:     int(l.policy.Requests),
		Remaining: max(int(l.policy.Requests)-int(count), 0),
		ResetAt:   resetAt,
	}

	if !allowed {
		decision.RetryAfter = max(resetAt.Sub(now), 0)
	}

	return decision, nil
}

type fixedLimiter struct {
	runner ScriptRunner
	policy Policy
	now    func() time.Time
}

func (l *fixedLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	windowMs := l.policy.Window.Milliseconds()
	bucket := now.UnixMilli() / windowMs
	key := l.policy.KeyPrefix + ":" + identity + ":" + strconv.FormatInt(bucket, 10)

	reply, err := l.runner.RunScript(ctx, fixedWindowScript, []string{key}, windowMs)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	count, ok := reply.(int64)
	if !ok {
		return Decision{}, fmt.Errorf("%w: unexpected reply %T", ErrEvaluation, reply)
	}

	limit := int64(l.policy.Requests)
	resetAt := time.UnixMilli((bucket + 1) * windowMs)

	decision := Decision{
		Allowed:   count <= limit,
		Limit:     int(limit),
		Remaining: int(max(limit-count, 0)),
		ResetAt:   resetAt,
	}

	if !decision.Allowed {
		decision.RetryAfter = resetAt.Sub(now)
	}

	return decision, nil
}

type tokenBucketLimiter struct {
	limiter *throttled.GCRARateLimiterCtx
	policy  Policy
	now     func() time.Time
}

// newTokenBucketLimiter maps the bucket onto GCRA: one token is emitted every
// Interval/RefillRate and a full bucket admits MaxTokens in a burst.
func newTokenBucketLimiter(store throttled.GCRAStoreCtx, policy Policy, now func() time.Time) (*tokenBucketLimiter, error) {
	period := policy.Interval / time.Duration(policy.RefillRate)
	if period <= 0 {
		period = time.Nanosecond
	}

	quota := throttled.RateQuota{
		MaxRate:  throttled.PerDuration(1, period),
		MaxBurst: int(policy.MaxTokens) - 1,
	}

	limiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		return nil, fmt.Errorf("creating token bucket limiter: %w", err)
	}

	return &tokenBucketLimiter{limiter: limiter, policy: policy, now: now}, nil
}

func (l *tokenBucketLimiter) Admit(ctx context.Context, identity string) (Decision, error) {
	limited, result, err := l.limiter.RateLimitCtx(ctx, l.policy.KeyPrefix+":"+identity, 1)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	now := l.now()

	decision := Decision{
		Allowed:   !limited,
		Limit:     result.Limit,
		Remaining: max(result.Remaining, 0),
		ResetAt:   now.Add(result.ResetAfter),
	}

	if limited {
		decision.RetryAfter = max(result.RetryAfter, 0)
	}

	return decision, nil
}

type unboundedLimiter struct{}

func (unboundedLimiter) Admit(context.Context, string) (Decision, error) {
	return unboundedDecision(), nil
}

func int64s(reply any, n int) ([]int64, error) {
	items, ok := reply.([]any)
	if !ok || len(items) != n {
		return nil, fmt.Errorf("unexpected reply %v", reply)
	}

	values := make([]int64, n)
	for i, item := range items {
		v, ok := item.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected reply element %T", item)
		}

		values[i] = v
	}

	return values, nil
}
