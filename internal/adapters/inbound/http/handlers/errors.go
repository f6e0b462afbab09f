package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/RG-Partners/soraai-chat/pkg/circuitbreaker"
)

const (
	codeGuestLimit         = "guest_limit_reached"
	codeNotFound           = "NOT_FOUND"
	codeInvalidRequest     = "INVALID_REQUEST"
	codeInvalidFocusMode   = "INVALID_FOCUS_MODE"
	codeEmptyMessage       = "EMPTY_MESSAGE"
	codeMissingQuery       = "MISSING_QUERY"
	codeUnknownTopic       = "UNKNOWN_TOPIC"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeTimeout            = "TIMEOUT"
	codeInternalError      = "INTERNAL_ERROR"

	msgGuestLimit         = "You have reached the free conversation limit for today. Sign in to continue chatting."
	msgChatNotFound       = "Chat not found"
	msgInvalidRequestBody = "Invalid request body"
	msgInvalidFocusMode   = "Invalid focus mode"
	msgEmptyMessage       = "Please provide a message to process"
	msgMissingQuery       = "Missing focus mode or query"
	msgUnknownTopic       = "Unknown discover topic"
	msgServiceUnavailable = "The answer service is temporarily unavailable"
	msgTimeout            = "The request timed out"
)

// writeUseCaseError maps use case failures onto statuses. Unrecognised
// errors answer 500 with fallback as the message.
func writeUseCaseError(w http.ResponseWriter, err error, fallback string) {
	var guestErr *model.GuestLimitError

	switch {
	case errors.As(err, &guestErr):
		writeErrorResponse(w, http.StatusTooManyRequests, codeGuestLimit, msgGuestLimit, nil)
	case errors.Is(err, model.ErrChatNotFound):
		writeErrorResponse(w, http.StatusNotFound, codeNotFound, msgChatNotFound, nil)
	case errors.Is(err, model.ErrInvalidFocusMode):
		writeErrorResponse(w, http.StatusBadRequest, codeInvalidFocusMode, msgInvalidFocusMode, nil)
	case errors.Is(err, model.ErrEmptyMessage):
		writeErrorResponse(w, http.StatusBadRequest, codeEmptyMessage, msgEmptyMessage, nil)
	case errors.Is(err, model.ErrMissingQuery):
		writeErrorResponse(w, http.StatusBadRequest, codeMissingQuery, msgMissingQuery, nil)
	case errors.Is(err, model.ErrUnknownTopic):
		writeErrorResponse(w, http.StatusBadRequest, codeUnknownTopic, msgUnknownTopic, nil)
	case circuitbreaker.IsRejection(err), errors.Is(err, model.ErrServiceUnavailable):
		writeErrorResponse(w, http.StatusServiceUnavailable, codeServiceUnavailable, msgServiceUnavailable, nil)
	case errors.Is(err, context.DeadlineExceeded):
		writeErrorResponse(w, http.StatusGatewayTimeout, codeTimeout, msgTimeout, nil)
	default:
		writeErrorResponse(w, http.StatusInternalServerError, codeInternalError, fallback, nil)
	}
}
