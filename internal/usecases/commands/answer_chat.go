package commands

import (
	"context"
	"errors"
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
	ChatMessage struct {
		MessageID string
		ChatID    string
		Content   string
	}

	AnswerChatCommand struct {
		Identity           model.Identity
		Message            ChatMessage
		OptimizationMode   model.OptimizationMode
		FocusMode          string
		History            [][2]string
		Files              []string
		ChatModel          model.ModelRef
		EmbeddingModel     model.ModelRef
		SystemInstructions string
		ReceivedAt         time.Time
	}

	AnswerChatCommandHandler = decorator.CommandHandler[AnswerChatCommand, *Generation]

	answerChatCommandHandler struct {
		history    ports.HistoryRepository
		usage      ports.UsageRecorder
		agent      ports.AnswerAgent
		settings   config.Chat
		accounting bridge.SourceAccounting
		logger     logger.Logger
		now        func() time.Time
	}
)

func NewAnswerChatCommandHandler(
	history ports.HistoryRepository,
	usage ports.UsageRecorder,
	agent ports.AnswerAgent,
	settings config.Chat,
	accounting bridge.SourceAccounting,
	log logger.Logger,
	metricsClient metrics.Client,
	tracerProvider otelTrace.TracerProvider,
) AnswerChatCommandHandler {
	return decorator.ApplyCommandDecorators[AnswerChatCommand, *Generation](
		answerChatCommandHandler{
			history:    history,
			usage:      usage,
			agent:      agent,
			settings:   settings,
			accounting: accounting,
			logger:     log.Component("answer_chat"),
			now:        time.Now,
		},
		log,
		metricsClient,
		tracerProvider,
	)
}

func (h answerChatCommandHandler) Handle(ctx context.Context, cmd AnswerChatCommand) (*Generation, error) {
	if cmd.ReceivedAt.IsZero() {
		cmd.ReceivedAt = h.now()
	}

	if err := h.checkGuestAllowance(ctx, cmd.Identity); err != nil {
		return nil, err
	}

	existing, err := h.history.FindChat(ctx, cmd.Message.ChatID)
	if err != nil && !errors.Is(err, model.ErrChatNotFound) {
		return nil, fmt.Errorf("looking up chat: %w", err)
	}

	if existing != nil && existing.UserID != "" && existing.UserID != cmd.Identity.UserID {
		return nil, model.ErrChatNotFound
	}

	if strings.TrimSpace(cmd.Message.Content) == "" {
		h.record(ctx, h.errorEvent(cmd, map[string]any{"reason": "empty_message"}))

		return nil, model.ErrEmptyMessage
	}

	if !model.FocusModes(h.settings.FocusModes).Has(cmd.FocusMode) {
		h.record(ctx, h.errorEvent(cmd, map[string]any{"reason": "invalid_focus_mode"}))

		return nil, model.ErrInvalidFocusMode
	}

	h.saveUserTurn(ctx, cmd)

	source, err := h.agent.Answer(ctx, model.GenerationRequest{
		Query:              cmd.Message.Content,
		FocusMode:          cmd.FocusMode,
		OptimizationMode:   cmd.OptimizationMode,
		History:            cmd.History,
		Files:              cmd.Files,
		ChatModel:          cmd.ChatModel,
		EmbeddingModel:     cmd.EmbeddingModel,
		SystemInstructions: cmd.SystemInstructions,
	})
	if err != nil {
		event := h.errorEvent(cmd, map[string]any{"reason": failureDetail(err)})
		event.ResponseTimeMs = h.elapsedMs(cmd.ReceivedAt)
		h.record(ctx, event)

		return nil, fmt.Errorf("starting generation: %w", err)
	}

	messageID := uuid.NewString()

	return newGeneration(messageID, source,
		bridge.WithSessionID(messageID),
		bridge.WithAccounting(h.accounting),
		bridge.WithLogger(h.logger),
		bridge.WithCallbacks(bridge.Callbacks{
			OnComplete: func(ctx context.Context, summary bridge.Summary) {
				h.onComplete(ctx, cmd, messageID, summary)
			},
			OnError: func(ctx context.Context, err error, _ bridge.Summary) {
				h.onError(ctx, cmd, err)
			},
		}),
	), nil
}

func (h answerChatCommandHandler) checkGuestAllowance(ctx context.Context, identity model.Identity) error {
	limit := h.settings.GuestMaxMessagesPerDay
	if !identity.Guest || limit == 0 || identity.UserID == "" {
		return nil
	}

	sent, err := h.history.CountUserMessagesSince(ctx, identity.UserID, h.now().Add(-h.settings.GuestWindow))
	if err != nil {
		return fmt.Errorf("counting guest messages: %w", err)
	}

	if sent < int(limit) {
		return nil
	}

	h.record(ctx, model.UsageEvent{
		EventType: model.UsageChatRateLimited,
		UserID:    identity.UserID,
		IsError:   true,
		Metadata:  map[string]any{"limit": limit, "sentMessages": sent},
	})

	return &model.GuestLimitError{Limit: limit, Sent: sent}
}

// saveUserTurn failures are logged; the answer is still generated.
func (h answerChatCommandHandler) saveUserTurn(ctx context.Context, cmd AnswerChatCommand) {
	now := h.now().UTC()

	chat := model.Chat{
		ID:        cmd.Message.ChatID,
		UserID:    cmd.Identity.UserID,
		Title:     cmd.Message.Content,
		FocusMode: cmd.FocusMode,
		Files:     cmd.Files,
		CreatedAt: now,
	}

	message := model.Message{
		ChatID:    cmd.Message.ChatID,
		MessageID: cmd.Message.MessageID,
		Role:      model.RoleUser,
		Content:   cmd.Message.Content,
		CreatedAt: now,
	}

	if err := h.history.SaveUserTurn(ctx, chat, message); err != nil {
		log := h.logger.WithContext(ctx)
		log.Error().Err(err).Str("chat_id", chat.ID).Msg("saving user turn failed")
	}
}

func (h answerChatCommandHandler) onComplete(ctx context.Context, cmd AnswerChatCommand, messageID string, summary bridge.Summary) {
	log := h.logger.WithContext(ctx)
	now := h.now().UTC()

	if len(summary.AllSources) > 0 {
		err := h.history.SaveMessage(ctx, model.Message{
			ChatID:    cmd.Message.ChatID,
			MessageID: uuid.NewString(),
			Role:      model.RoleSource,
			Sources:   summary.AllSources,
			CreatedAt: now,
		})
		if err != nil {
			log.Error().Err(err).Str("chat_id", cmd.Message.ChatID).Msg("saving sources failed")
		}
	}

	if strings.TrimSpace(summary.Text) != "" {
		err := h.history.SaveMessage(ctx, model.Message{
			ChatID:    cmd.Message.ChatID,
			MessageID: messageID,
			Role:      model.RoleAssistant,
			Content:   summary.Text,
			CreatedAt: now,
		})
		if err != nil {
			log.Error().Err(err).Str("chat_id", cmd.Message.ChatID).Msg("saving assistant message failed")
		}
	}

	messageCount := len(cmd.History) + 1
	if summary.HasContent {
		messageCount++
	}

	event := h.baseEvent(cmd, model.UsageChatResponse)
	event.ResponseTimeMs = h.elapsedMs(cmd.ReceivedAt)
	event.MessageCount = messageCount
	event.MessageChars = summary.MessageChars
	event.SourceCount = summary.SourceCount
	event.Metadata = map[string]any{"systemInstructionsIncluded": cmd.SystemInstructions != ""}

	h.record(ctx, event)
}

func (h answerChatCommandHandler) onError(ctx context.Context, cmd AnswerChatCommand, err error) {
	event := h.errorEvent(cmd, map[string]any{"reason": failureDetail(err)})
	event.ResponseTimeMs = h.elapsedMs(cmd.ReceivedAt)

	h.record(ctx, event)
}

func (h answerChatCommandHandler) baseEvent(cmd AnswerChatCommand, eventType model.UsageEventType) model.UsageEvent {
	return model.UsageEvent{
		EventType:           eventType,
		UserID:              cmd.Identity.UserID,
		ChatID:              cmd.Message.ChatID,
		FocusMode:           cmd.FocusMode,
		ProviderID:          cmd.ChatModel.ProviderID,
		ModelKey:            cmd.ChatModel.Key,
		EmbeddingProviderID: cmd.EmbeddingModel.ProviderID,
		EmbeddingModelKey:   cmd.EmbeddingModel.Key,
		OptimizationMode:    string(cmd.OptimizationMode),
		MessageCount:        len(cmd.History) + 1,
		FileCount:           len(cmd.Files),
	}
}

func (h answerChatCommandHandler) errorEvent(cmd AnswerChatCommand, metadata map[string]any) model.UsageEvent {
	event := h.baseEvent(cmd, model.UsageChatError)
	event.IsError = true
	event.Metadata = metadata

	return event
}

func (h answerChatCommandHandler) elapsedMs(since time.Time) *int64 {
	ms := h.now().Sub(since).Milliseconds()

	return &ms
}

func (h answerChatCommandHandler) record(ctx context.Context, event model.UsageEvent) {
	recordUsage(ctx, h.usage, h.logger, event)
}
