package handlers

import (
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/adapters/inbound/http/middleware"
	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/internal/usecases/queries"
	"github.com/RG-Partners/soraai-chat/pkg/decorator"
)

const msgSuggestionsError = "An error occurred while generating suggestions"

type (
	historyItem struct {
		Role    string `json:"role" validate:"required"`
		Content string `json:"content"`
		ChatID  string `json:"chatId"`
	}

	suggestionsRequest struct {
		ChatID      string         `json:"chatId"`
		History     []historyItem  `json:"history" validate:"dive"`
		ChatHistory []historyItem  `json:"chatHistory" validate:"dive"`
		ChatModel   model.ModelRef `json:"chatModel"`
	}
)

// turns prefers history and accepts chatHistory from older clients.
func (r suggestionsRequest) turns() []historyItem {
	if len(r.History) > 0 {
		return r.History
	}

	return r.ChatHistory
}

// chatID falls back to the chat named by the latest history item.
func (r suggestionsRequest) chatID() string {
	if r.ChatID != "" {
		return r.ChatID
	}

	turns := r.turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].ChatID != "" {
			return turns[i].ChatID
		}
	}

	return ""
}

// Suggestions proposes follow up questions for the conversation so far.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req suggestionsRequest
	if issues := h.decodeBody(w, r, &req); issues != nil {
		writeErrorResponse(w, http.StatusBadRequest, codeInvalidRequest, msgInvalidRequestBody, issues)

		return
	}

	turns := req.turns()
	history := make([]model.HistoryTurn, 0, len(turns))

	for _, turn := range turns {
		history = append(history, model.HistoryTurn{Role: model.NormalizeRole(turn.Role), Content: turn.Content})
	}

	ctx, cacheStatus := decorator.TrackCacheStatus(r.Context())

	suggestions, err := h.app.Queries.GetSuggestions.Execute(ctx, queries.GetSuggestionsQuery{
		UserID:    identity.UserID,
		ChatID:    req.chatID(),
		History:   history,
		ChatModel: req.ChatModel,
	})
	if err != nil {
		h.logFailure(ctx, err, "suggestions request failed")
		writeUseCaseError(w, err, msgSuggestionsError)

		return
	}

	w.Header().Set(middleware.CacheHeader, string(cacheStatus()))
	writeJSONResponse(w, http.StatusOK, suggestions)
}
