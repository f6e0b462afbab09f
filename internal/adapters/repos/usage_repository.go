package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/goccy/go-json"
)

const usageEventsTable = "usage_events"

// UsageRepository appends analytics events.
type UsageRepository struct {
	pool   PoolOps
	logger logger.Logger
	now    func() time.Time
}

func NewUsageRepository(pool PoolOps, log logger.Logger) *UsageRepository {
	return &UsageRepository{
		pool:   pool,
		logger: log.Component("usage_repository"),
		now:    time.Now,
	}
}

func (r *UsageRepository) Record(ctx context.Context, event model.UsageEvent) error {
	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			r.logger.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("usage metadata is not serializable, storing an empty object")
		} else {
			metadata = encoded
		}
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}

	query, args, err := psql.Insert(usageEventsTable).
		Columns(
			"event_type", "user_id", "chat_id", "focus_mode",
			"provider_id", "model_key", "embedding_provider_id", "embedding_model_key",
			"optimization_mode", "response_time_ms", "message_count", "message_chars",
			"source_count", "file_count", "is_error", "metadata", "created_at",
		).
		Values(
			string(event.EventType), nullable(event.UserID), nullable(event.ChatID), nullable(event.FocusMode),
			nullable(event.ProviderID), nullable(event.ModelKey), nullable(event.EmbeddingProviderID), nullable(event.EmbeddingModelKey),
			nullable(event.OptimizationMode), event.ResponseTimeMs, event.MessageCount, event.MessageChars,
			event.SourceCount, event.FileCount, event.IsError, metadata, createdAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("recording %s event: %w", event.EventType, err)
	}

	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
