package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes role:content pairs joined by "|", or "empty" when there
// are no pairs.
func Fingerprint(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, pair[0]+":"+pair[1])
	}

	normalized := strings.Join(parts, "|")
	if normalized == "" {
		normalized = "empty"
	}

	return strconv.FormatUint(xxhash.Sum64String(normalized), 16)
}

func SuggestionsKey(chatID, fingerprint string) string {
	return "suggestions:" + chatID + ":" + fingerprint
}

func DiscoverKey(mode, topic string) string {
	return "discover:" + mode + ":" + topic
}
