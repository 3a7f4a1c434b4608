package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any response that rejected the credential (401).
// Callers use errors.Is(err, ErrUnauthorized).
var ErrUnauthorized = errors.New("apiclient: credential rejected")

// TransportError means no HTTP response was received: connection refused,
// DNS failure, timeout, or context cancellation.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response. Message is the backend-provided text, kept
// verbatim so it can be shown to the user as is.
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap exposes ErrUnauthorized for 401 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// IsUnauthorized reports whether err is an authentication rejection.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// Message returns the user-visible text for err. fallback is used when the
// backend gave no message of its own.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return "cannot reach server: " + transportErr.Err.Error()
	}
	return fallback
}

// maxErrorBodyText caps how much of a non-JSON error body is echoed back.
const maxErrorBodyText = 200

// errorMessage extracts the message from an error body. The backend uses
// either {"message": "..."} or {"error": "..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
		return ""
	}

	text := strings.TrimSpace(string(body))
	if text == "" || strings.HasPrefix(text, "<") || len(text) > maxErrorBodyText {
		return ""
	}
	return text
}
