package cache_test

import (
	"testing"

	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	history := [][2]string{{"user", "hi"}, {"assistant", "hello"}}

	require.Equal(t, cache.Fingerprint(history), cache.Fingerprint(history))
	require.NotEqual(t, cache.Fingerprint(history), cache.Fingerprint(history[:1]))
	require.Equal(t, cache.Fingerprint(nil), cache.Fingerprint([][2]string{}))
	require.NotEqual(t, cache.Fingerprint(nil), cache.Fingerprint([][2]string{{"user", ""}}))
}

func TestKeys(t *testing.T) {
	require.Equal(t, "suggestions:chat-1:abc", cache.SuggestionsKey("chat-1", "abc"))
	require.Equal(t, "discover:preview:policy-legislation", cache.DiscoverKey("preview", "policy-legislation"))
}
