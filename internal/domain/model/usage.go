package model

import "time"

type UsageEventType string

const (
	UsageChatResponse    UsageEventType = "chat_response"
	UsageChatError       UsageEventType = "chat_error"
	UsageChatRateLimited UsageEventType = "chat_rate_limited"
	UsageSearchResponse  UsageEventType = "search_response"
	UsageSearchError     UsageEventType = "search_error"
)

// UsageEvent is one analytics record. Empty strings are stored as NULL.
type UsageEvent struct {
	EventType           UsageEventType
	UserID              string
	ChatID              string
	FocusMode           string
	ProviderID          string
	ModelKey            string
	EmbeddingProviderID string
	EmbeddingModelKey   string
	OptimizationMode    string
	ResponseTimeMs      *int64
	MessageCount        int
	MessageChars        int
	SourceCount         int
	FileCount           int
	IsError             bool
	Metadata            map[string]any
	CreatedAt           time.Time
}

const maxErrorDetailLen = 500

// SerializeError turns an arbitrary failure detail into metadata that is
// safe to store as JSON.
func SerializeError(detail any) map[string]any {
	switch v := detail.(type) {
	case nil:
		return map[string]any{}
	case error:
		return map[string]any{"message": truncate(v.Error(), maxErrorDetailLen)}
	case string:
		return map[string]any{"message": truncate(v, maxErrorDetailLen)}
	case map[string]any:
		return v
	default:
		return map[string]any{"detail": v}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
