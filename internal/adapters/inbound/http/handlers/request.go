package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/RG-Partners/soraai-chat/internal/domain/model"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return validate
}

// decodeBody reads a JSON body into dst and validates it. Every problem is
// reported as a path and message pair.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) []model.ValidationError {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return []model.ValidationError{{Path: "", Message: decodeMessage(err)}}
	}

	err := h.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []model.ValidationError{{Path: "", Message: err.Error()}}
	}

	issues := make([]model.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		issues = append(issues, model.ValidationError{
			Path:    fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}

	return issues
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	_, path, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return path
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "len":
		return fmt.Sprintf("%s must have %s items", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func decodeMessage(err error) string {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.As(err, &maxBytesErr):
		return fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit)
	default:
		return "request body is not valid JSON"
	}
}
