package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/ports"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/RG-Partners/soraai-chat/pkg/metrics"
	"github.com/google/uuid"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	RunSearchCommand struct {
		Identity           model.Identity
		Query              string
		FocusMode          string
		OptimizationMode   model.OptimizationMode
		History            [][2]string
		ChatModel          model.ModelRef
		EmbeddingModel     model.ModelRef
		SystemInstructions string
		Stream             bool
		ReceivedAt         time.Time
	}

	RunSearchCommandHandler = decorator.CommandHandler[RunSearchCommand, *Generation]

	runSearchCommandHandler struct {
		usage      ports.UsageRecorder
		agent      ports.AnswerAgent
		focusModes model.FocusModes
		accounting bridge.SourceAccounting
		logger     logger.Logger
		now        func() time.Time
	}
)

func NewRunSearchCommandHandler(
	usage ports.UsageRecorder,
	agent ports.AnswerAgent,
	settings config.Chat,
	accounting bridge.SourceAccounting,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) RunSearchCommandHandler {
	return decorator.ApplyCommandDecorators[RunSearchCommand, *Generation](
		runSearchCommandHandler{
			usage:      usage,
			agent:      agent,
			focusModes: settings.FocusModes,
			accounting: accounting,
			logger:     log.Component("run_search"),
			now:        time.Now,
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h runSearchCommandHandler) Handle(ctx context.Context, cmd RunSearchCommand) (*Generation, error) {
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = h.now()
	}

	if cmd.OptimizationMode == "" {
		cmd.OptimizationMode = model.OptimizationBalanced
	}

	if strings.TrimSpace(cmd.Query) == "" || cmd.FocusMode == "" {
		h.record(ctx, h.errorEvent(cmd, map[string]any{"reason": "missing_focus_or_query"}))

		return nil, model.ErrMissingQuery
	}

	if !h.focusModes.Has(cmd.FocusMode) {
		h.record(ctx, h.errorEvent(cmd, map[string]any{"reason": "invalid_focus_mode"}))

		return nil, model.ErrInvalidFocusMode
	}

	source, err := h.agent.Answer(ctx, model.GenerationRequest{
		Query:              cmd.Query,
		FocusMode:          cmd.FocusMode,
		OptimizationMode:   cmd.OptimizationMode,
		History:            cmd.History,
		ChatModel:          cmd.ChatModel,
		EmbeddingModel:     cmd.EmbeddingModel,
		SystemInstructions: cmd.SystemInstructions,
	})
	if err != nil {
		h.onError(ctx, cmd, err)

		return nil, fmt.Errorf("starting search: %w", err)
	}

	id := uuid.NewString()

	return newGeneration(id, source,
		bridge.WithSessionID(id),
		bridge.WithAccounting(h.accounting),
		bridge.WithLogger(h.logger),
		bridge.WithCallbacks(bridge.Callbacks{
			OnComplete: func(ctx context.Context, summary bridge.Summary) {
				h.onComplete(ctx, cmd, summary)
			},
			OnError: func(ctx context.Context, err error, _ bridge.Summary) {
				h.onError(ctx, cmd, err)
			},
		}),
	), nil
}

func (h runSearchCommandHandler) onComplete(ctx context.Context, cmd RunSearchCommand, summary bridge.Summary) {
	event := h.baseEvent(cmd, model.UsageSearchResponse)
	event.ResponseTimeMs = h.elapsedMs(cmd.ReceivedAt)
	event.MessageChars = summary.MessageChars
	event.SourceCount = summary.SourceCount
	event.Metadata = map[string]any{"stream": cmd.Stream}

	if summary.HasContent {
		event.MessageCount++
	}

	h.record(ctx, event)
}

func (h runSearchCommandHandler) onError(ctx context.Context, cmd RunSearchCommand, err error) {
	event := h.errorEvent(cmd, map[string]any{"reason": failureDetail(err)})
	event.ResponseTimeMs = h.elapsedMs(cmd.ReceivedAt)

	h.record(ctx, event)
}

func (h runSearchCommandHandler) baseEvent(cmd RunSearchCommand, eventType model.UsageEventType) model.UsageEvent {
	return model.UsageEvent{
		EventType:           eventType,
		UserID:              cmd.Identity.UserID,
		FocusMode:           cmd.FocusMode,
		ProviderID:          cmd.ChatModel.ProviderID,
		ModelKey:            cmd.ChatModel.Key,
		EmbeddingProviderID: cmd.EmbeddingModel.ProviderID,
		EmbeddingModelKey:   cmd.EmbeddingModel.Key,
		OptimizationMode:    string(cmd.OptimizationMode),
		MessageCount:        len(cmd.History) + 1,
	}
}

func (h runSearchCommandHandler) errorEvent(cmd RunSearchCommand, metadata map[string]any) model.UsageEvent {
	event := h.baseEvent(cmd, model.UsageSearchError)
	event.IsError = true
	event.Metadata = metadata

	return event
}

func (h runSearchCommandHandler) elapsedMs(since time.Time) *int64 {
	ms := h.now().Sub(since).Milliseconds()

	return &ms
}

func (h runSearchCommandHandler) record(ctx context.Context, event model.UsageEvent) {
	recordUsage(ctx, h.usage, h.logger, event)
}
