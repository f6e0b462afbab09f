// Package ratelimit admits or rejects work per caller identity against
// quotas whose state lives in a shared counter store.
package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/config"
)

type Mode string

const (
	ModeSliding Mode = "sliding"
	ModeFixed   Mode = "fixed"
	ModeToken   Mode = "token"
)

// ErrEvaluation means the limiter could not reach a decision. It is never
// returned for a request that is merely over quota.
var ErrEvaluation = errors.New("rate limit evaluation failed")

// Policy is a quota. Sliding and fixed windows admit Requests per Window;
// token buckets refill RefillRate tokens every Interval up to MaxTokens.
type Policy struct {
	KeyPrefix  string
	Mode       Mode
	Requests   uint
	Window     time.Duration
	RefillRate uint
	Interval   time.Duration
	MaxTokens  uint
}

func FromConfig(cfg config.EndpointLimit) Policy {
	return Policy{
		KeyPrefix:  cfg.KeyPrefix,
		Mode:       Mode(cfg.Mode),
		Requests:   cfg.Requests,
		Window:     cfg.Window,
		RefillRate: cfg.RefillRate,
		Interval:   cfg.Interval,
		MaxTokens:  cfg.MaxTokens,
	}
}

// Fingerprint identifies the limiter instance serving this policy.
func (p Policy) Fingerprint() string {
	if p.Mode == ModeToken {
		return fmt.Sprintf("%s::token::%d::%s::%d", p.KeyPrefix, p.RefillRate, p.Interval, p.MaxTokens)
	}

	return fmt.Sprintf("%s::%s::%d::%s", p.KeyPrefix, p.Mode, p.Requests, p.Window)
}

func (p Policy) Validate() error {
	switch p.Mode {
	case ModeSliding, ModeFixed:
		if p.Requests == 0 || p.Window < time.Millisecond {
			return fmt.Errorf("%s policy %q needs requests and a window of at least 1ms", p.Mode, p.KeyPrefix)
		}
	case ModeToken:
		if p.RefillRate == 0 || p.Interval <= 0 || p.MaxTokens == 0 {
			return fmt.Errorf("token policy %q needs refill rate, interval and max tokens", p.KeyPrefix)
		}
	default:
		return fmt.Errorf("unknown rate limit mode %q", p.Mode)
	}

	return nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Unbounded is set by the always allow limiter; Limit and Remaining are
	// meaningless then.
	Unbounded bool
}

// RetryAfterSeconds rounds the retry hint up to whole seconds, never below 1.
func (d Decision) RetryAfterSeconds() int {
	seconds := int(math.Ceil(d.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}

	return seconds
}

func unboundedDecision() Decision {
	return Decision{
		Allowed:   true,
		Limit:     math.MaxInt,
		Remaining: math.MaxInt,
		Unbounded: true,
	}
}
