package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/bridge"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/commands"
)

const msgSearchError = "Search error"

type searchRequest struct {
	Query              string         `json:"query"`
	FocusMode          string         `json:"focusMode"`
	OptimizationMode   string         `json:"optimizationMode" validate:"omitempty,oneof=speed balanced quality"`
	History            [][2]string    `json:"history"`
	ChatModel          model.ModelRef `json:"chatModel"`
	EmbeddingModel     model.ModelRef `json:"embeddingModel"`
	SystemInstructions string         `json:"systemInstructions"`
	Stream             bool           `json:"stream"`
}

// Search answers a one off query, buffered by default or streamed between
// init and done frames when the body asks for it.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()
	identity := middleware.GetIdentity(r.Context())

	var req searchRequest
	if issues := h.decodeBody(w, r, &req); issues != nil {
		h.reportInvalidBody(r.Context(), identity, model.UsageSearchError, issues)
		writeErrorResponse(w, http.StatusBadRequest, codeInvalidRequest, msgInvalidRequestBody, issues)

		return
	}

	timeout := h.settings.RequestTimeout
	if req.Stream {
		timeout = h.settings.StreamTimeout
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	generation, err := h.app.Commands.RunSearch.Handle(ctx, commands.RunSearchCommand{
		Identity:           identity,
		Query:              req.Query,
		FocusMode:          req.FocusMode,
		OptimizationMode:   model.OptimizationMode(req.OptimizationMode),
		History:            req.History,
		ChatModel:          req.ChatModel,
		EmbeddingModel:     req.EmbeddingModel,
		SystemInstructions: req.SystemInstructions,
		Stream:             req.Stream,
		ReceivedAt:         receivedAt,
	})
	if err != nil {
		h.logFailure(ctx, err, "search request failed")
		writeUseCaseError(w, err, msgSearchError)

		return
	}

	if req.Stream {
		if _, err := generation.Stream(ctx, bridge.NewStreamWriter(w, bridge.SearchFraming(), h.settings.FrameWriteTimeout)); err != nil {
			h.logFailure(ctx, err, "search stream ended with an error")
		}

		return
	}

	result, err := generation.Collect(ctx)
	if err != nil {
		h.logFailure(ctx, err, "search generation failed")

		if errors.Is(err, bridge.ErrDeadline) || errors.Is(err, context.DeadlineExceeded) {
			writeErrorResponse(w, http.StatusGatewayTimeout, codeTimeout, msgTimeout, nil)

			return
		}

		writeErrorResponse(w, http.StatusInternalServerError, codeInternalError, msgSearchError, generationDetail(err))

		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// generationDetail is what a client may see about a failed generation.
func generationDetail(err error) any {
	var genErr *bridge.GenerationError
	if errors.As(err, &genErr) {
		return model.SerializeError(genErr.Detail)
	}

	return model.SerializeError(err)
}
