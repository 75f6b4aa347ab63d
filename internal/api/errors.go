package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/throttleq/internal/service/auth"
	"github.com/phrazzld/throttleq/internal/store"
	"github.com/phrazzld/throttleq/internal/task"
)

// errJournalDisabled is returned when the queue runs without a journal.
var errJournalDisabled = errors.New("journal disabled")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing the error types themselves.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongIssuer),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case store.IsNotFoundError(err),
		errors.Is(err, errJournalDisabled):
		return http.StatusNotFound

	case errors.Is(err, task.ErrNotBlocked):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrInvalidConfig):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongIssuer),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, errJournalDisabled):
		return "Journal is not enabled"

	case store.IsNotFoundError(err):
		return "Not found"

	case errors.Is(err, task.ErrNotBlocked):
		return "Queue is not blocked"

	case errors.Is(err, task.ErrQueueClosed):
		return "Queue is closed"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into "Invalid <field>: <reason>".
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example: "Key: 'BlockRequest.DurationMS' Error:Field validation for 'DurationMS' failed on the 'gte' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gte", "min":
		return "too small"
	case "lte", "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
