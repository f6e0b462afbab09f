// Package idempotency validates client supplied submission keys and derives
// the storage key used to guard a submission while it is in flight.
package idempotency

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const (
	MinKeyLength = 16
	MaxKeyLength = 128
	KeyPrefix    = "inflight"
)

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

// Validate checks if the idempotency key is valid.
func Validate(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case !validKeyPattern.MatchString(key):
		return ErrKeyInvalid
	}

	return nil
}

// BuildLockKey scopes a submission key to the caller and the route it was sent to.
func BuildLockKey(identity, path, key string) string {
	digest := xxhash.New()
	_, _ = digest.WriteString(identity)
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(path)
	_, _ = digest.WriteString("\x00")
	_, _ = digest.WriteString(key)

	return KeyPrefix + ":" + strconv.FormatUint(digest.Sum64(), 16)
}
