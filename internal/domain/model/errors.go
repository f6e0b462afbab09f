package model

import "errors"

var (
	ErrChatNotFound       = errors.New("chat not found")
	ErrInvalidFocusMode   = errors.New("invalid focus mode")
	ErrEmptyMessage       = errors.New("please provide a message to process")
	ErrMissingQuery       = errors.New("missing focus mode or query")
	ErrGuestLimitReached  = errors.New("guest daily message limit reached")
	ErrUnknownTopic       = errors.New("unknown discover topic")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("request timeout")
)

type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}

	return v.Errors[0].Message
}

func (v *ValidationErrors) Add(path, message string) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: message})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// GuestLimitError reports how far past the daily allowance a guest is.
type GuestLimitError struct {
	Limit uint
	Sent  int
}

func (e *GuestLimitError) Error() string {
	return ErrGuestLimitReached.Error()
}

func (e *GuestLimitError) Unwrap() error {
	return ErrGuestLimitReached
}
