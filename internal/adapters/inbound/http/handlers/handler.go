package handlers

import (
	"net/http"
	"time"

	"github.com/RG-Partners/soraai-chat/internal/config"
	"github.com/RG-Partners/soraai-chat/internal/usecases"
	"github.com/RG-Partners/soraai-chat/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const (
	contentTypeHeader = "Content-Type"
	applicationJSON   = "application/json"
)

// Handler serves the public API on top of the use cases.
type Handler struct {
	app      *usecases.WebApplication
	settings config.PublicHTTPServer
	validate *validator.Validate
	logger   logger.Logger
}

func NewHandler(app *usecases.WebApplication, settings config.PublicHTTPServer, log logger.Logger) *Handler {
	return &Handler{
		app:      app,
		settings: settings,
		validate: newValidator(),
		logger:   log.Component("http_handler"),
	}
}

// errorResponse is the body of every failed request. Error carries details
// such as validation issues or the agent's failure report.
type errorResponse struct {
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Error     any       `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set(contentTypeHeader, applicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string, detail any) {
	writeJSONResponse(w, status, errorResponse{
		Code:      code,
		Message:   message,
		Error:     detail,
		Timestamp: time.Now().UTC(),
	})
}
