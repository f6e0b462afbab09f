package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/commands"
)

type (
	chatMessage struct {
		MessageID string `json:"messageId" validate:"required"`
		ChatID    string `json:"chatId" validate:"required"`
		Content   string `json:"content"`
	}

	chatRequest struct {
		Message            chatMessage    `json:"message"`
		OptimizationMode   string         `json:"optimizationMode" validate:"required,oneof=speed balanced quality"`
		FocusMode          string         `json:"focusMode" validate:"required"`
		History            [][2]string    `json:"history"`
		Files              []string       `json:"files"`
		ChatModel          model.ModelRef `json:"chatModel"`
		EmbeddingModel     model.ModelRef `json:"embeddingModel"`
		SystemInstructions string         `json:"systemInstructions"`
	}
)

// Chat answers a chat message as a stream of message and sources frames
// closed by messageEnd, or by an error frame when the generation fails.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()
	identity := middleware.GetIdentity(r.Context())

	var req chatRequest
	if issues := h.decodeBody(w, r, &req); issues != nil {
		h.reportInvalidBody(r.Context(), identity, model.UsageChatError, issues)
		writeErrorResponse(w, http.StatusBadRequest, codeInvalidRequest, msgInvalidRequestBody, issues)

		return
	}

	if req.History == nil {
		req.History = [][2]string{}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.settings.StreamTimeout)
	defer cancel()

	generation, err := h.app.Commands.AnswerChat.Handle(ctx, commands.AnswerChatCommand{
		Identity: identity,
		Message: commands.ChatMessage{
			MessageID: req.Message.MessageID,
			ChatID:    req.Message.ChatID,
			Content:   req.Message.Content,
		},
		OptimizationMode:   model.OptimizationMode(req.OptimizationMode),
		FocusMode:          req.FocusMode,
		History:            req.History,
		Files:              req.Files,
		ChatModel:          req.ChatModel,
		EmbeddingModel:     req.EmbeddingModel,
		SystemInstructions: req.SystemInstructions,
		ReceivedAt:         receivedAt,
	})
	if err != nil {
		h.logFailure(ctx, err, "chat request failed")
		writeUseCaseError(w, err, "An error occurred while processing chat request")

		return
	}

	sink := bridge.NewStreamWriter(w, bridge.ChatFraming(generation.MessageID), h.settings.FrameWriteTimeout)

	if _, err := generation.Stream(ctx, sink); err != nil {
		h.logFailure(ctx, err, "chat stream ended with an error")
	}
}

func (h *Handler) reportInvalidBody(ctx context.Context, identity model.Identity, eventType model.UsageEventType, issues []model.ValidationError) {
	_, _ = h.app.Commands.ReportInvalidRequest.Handle(ctx, commands.ReportInvalidRequestCommand{
		Identity:  identity,
		EventType: eventType,
		Issues:    issues,
	})
}

func (h *Handler) logFailure(ctx context.Context, err error, msg string) {
	reqLogger := h.logger.WithContext(ctx)
	reqLogger.Warn().Err(err).Msg(msg)
}
