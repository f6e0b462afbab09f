package usecases

import (
	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/internal/usecases/commands"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	Commands struct {
		AnswerChat           commands.AnswerChatCommandHandler
		RunSearch            commands.RunSearchCommandHandler
		ReportInvalidRequest commands.ReportInvalidRequestCommandHandler
	}

	Queries struct {
		GetSuggestions    queries.GetSuggestionsQueryHandler
		GetDiscoverFeed   queries.GetDiscoverFeedQueryHandler
		FetchLiveness     queries.FetchLivenessQueryHandler
		FetchReadiness    queries.FetchReadinessQueryHandler
		FetchHealthReport queries.FetchHealthReportQueryHandler
	}

	// Dependencies are the collaborators the use cases run against.
	Dependencies struct {
		History          ports.HistoryRepository
		Usage            ports.UsageRecorder
		Agent            ports.AnswerAgent
		Search           ports.SearchEngine
		HealthChecker    ports.HealthChecker
		SuggestionsCache decorator.Cache[queries.GetSuggestionsQuery, *model.Suggestions]
		DiscoverCache    decorator.Cache[queries.GetDiscoverFeedQuery, *model.DiscoverFeed]
	}

	WebApplication struct {
		Commands Commands
		Queries  Queries
	}
)

func NewWebApplication(
	deps Dependencies,
	cfg *config.ServiceConfig,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) *WebApplication {
	accounting := bridge.Incremental
	if cfg.Agent.CumulativeSource {
		accounting = bridge.Cumulative
	}

	return &WebApplication{
		Commands: Commands{
			AnswerChat: commands.NewAnswerChatCommandHandler(
				deps.History, deps.Usage, deps.Agent, cfg.Chat, accounting, log, metricsClient, tracerProvider,
			),
			RunSearch: commands.NewRunSearchCommandHandler(
				deps.Usage, deps.Agent, cfg.Chat, accounting, log, metricsClient, tracerProvider,
			),
			ReportInvalidRequest: commands.NewReportInvalidRequestCommandHandler(
				deps.Usage, log, metricsClient, tracerProvider,
			),
		},
		Queries: Queries{
			GetSuggestions: queries.NewGetSuggestionsQueryHandler(
				deps.Agent,
				deps.SuggestionsCache,
				decorator.CacheConfig{Enabled: cfg.Suggestions.CacheEnabled, TTL: cfg.Suggestions.CacheTTL},
				log, metricsClient, tracerProvider,
			),
			GetDiscoverFeed: queries.NewGetDiscoverFeedQueryHandler(
				deps.Search, cfg.Discover, deps.DiscoverCache, log, metricsClient, tracerProvider,
			),
			FetchLiveness:     queries.NewFetchLivenessQueryHandler(deps.HealthChecker, log, metricsClient, tracerProvider),
			FetchReadiness:    queries.NewFetchReadinessQueryHandler(deps.HealthChecker, log, metricsClient, tracerProvider),
			FetchHealthReport: queries.NewFetchHealthReportQueryHandler(deps.HealthChecker, log, metricsClient, tracerProvider),
		},
	}
}
