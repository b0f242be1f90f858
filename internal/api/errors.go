package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the response classes the sync engine treats specially.
// Everything else surfaces as a StatusError or a transport error.
var (
	// ErrRateLimited maps HTTP 429. Never shown to the user; pollers back off.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized maps HTTP 401. The session credential is invalid.
	ErrUnauthorized = errors.New("session invalid")
	// ErrNotFound maps HTTP 404. Deletes treat it as already-deleted.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-2xx response outside the sentinel cases.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("http %d", e.Code)
}

func classify(code int, serverMsg string) error {
	switch code {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return &StatusError{Code: code, Message: serverMsg}
}

// ErrorMessage converts an API error into a human-readable message for the
// notifier. Server-provided messages win over generic fallbacks.
func ErrorMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please log in again."
	default:
		return "Something went wrong. Please try again."
	}
}
