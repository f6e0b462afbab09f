package queries

import (
	"context"
	"fmt"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/cache"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	GetSuggestionsQuery struct {
		UserID    string
		ChatID    string
		History   []model.HistoryTurn
		ChatModel model.ModelRef
	}

	GetSuggestionsQueryHandler = decorator.QueryHandler[GetSuggestionsQuery, *model.Suggestions]

	getSuggestionsQueryHandler struct {
		agent  ports.AnswerAgent
		logger logger.Logger
	}
)

// Pairs keeps the user and assistant turns as role:content pairs.
func (q GetSuggestionsQuery) Pairs() [][2]string {
	pairs := make([][2]string, 0, len(q.History))

	for _, turn := range q.History {
		role := model.NormalizeRole(string(turn.Role))
		if role != model.RoleUser && role != model.RoleAssistant {
			continue
		}

		pairs = append(pairs, [2]string{string(role), turn.Content})
	}

	return pairs
}

// CacheKey scopes suggestions to the chat, or to the user when the chat is
// unknown, and to the exact conversation so far.
func (q GetSuggestionsQuery) CacheKey() string {
	scope := q.ChatID
	if scope == "" {
		scope = q.UserID
	}

	return cache.SuggestionsKey(scope, cache.Fingerprint(q.Pairs()))
}

func NewGetSuggestionsQueryHandler(
	agent ports.AnswerAgent,
	queryCache decorator.Cache[GetSuggestionsQuery, *model.Suggestions],
	cacheConfig decorator.CacheConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) GetSuggestionsQueryHandler {
	handler := decorator.ApplyQueryDecorators[GetSuggestionsQuery, *model.Suggestions](
		getSuggestionsQueryHandler{agent: agent, logger: log.Component("suggestions")},
		log,
		metricsClient,
		tracerProvider,
	)

	return decorator.NewQueryCachingDecorator[GetSuggestionsQuery, *model.Suggestions](handler, queryCache, cacheConfig)
}

func (h getSuggestionsQueryHandler) Execute(ctx context.Context, query GetSuggestionsQuery) (*model.Suggestions, error) {
	source, err := h.agent.Suggest(ctx, query.Pairs(), query.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("starting suggestions: %w", err)
	}

	result, _, err := bridge.Collect(ctx, source, bridge.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("generating suggestions: %w", err)
	}

	return &model.Suggestions{Suggestions: model.ParseSuggestions(result.Message)}, nil
}
