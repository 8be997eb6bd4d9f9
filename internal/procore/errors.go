// Package procore provides an HTTP client for the Procore REST API with
// transparent rate-limit handling, retry, and error classification, plus the
// OAuth2 authorization-code flow that produces its bearer credential.
package procore

import (
	"errors"
	"fmt"
	"net/http"
)

// Authorization errors. All of them are fatal: without a credential nothing
// else can run.
var (
	ErrAuthExchangeFailed  = errors.New("procore: authorization code exchange failed")
	ErrCallbackTimeout     = errors.New("procore: timed out waiting for authorization callback")
	ErrStateMismatch       = errors.New("procore: OAuth2 state mismatch (possible CSRF)")
	ErrAuthorizationDenied = errors.New("procore: authorization denied")
)

// Request errors. Use errors.Is(err, procore.ErrNotFound) to check.
// Every *APIError also matches ErrAPI.
var (
	ErrRateLimitExceeded = errors.New("procore: rate limit exceeded")
	ErrAPI               = errors.New("procore: API error")
	ErrBadRequest        = errors.New("procore: bad request")
	ErrUnauthorized      = errors.New("procore: unauthorized (credential expired or revoked, log in again)")
	ErrForbidden         = errors.New("procore: forbidden")
	ErrNotFound          = errors.New("procore: not found")
	ErrServerError       = errors.New("procore: server error")
)

// APIError is a non-retryable (or retry-exhausted) HTTP failure. It carries
// the status code, the request ID if the server sent one, and the response
// body for debugging.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // status sentinel, may be nil for unclassified 4xx
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("procore: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("procore: HTTP %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes both ErrAPI and the status sentinel to errors.Is.
func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAPI}
	}

	return []error{ErrAPI, e.Err}
}

// AuthExchangeError reports a rejected token request.
type AuthExchangeError struct {
	StatusCode int
	Body       string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("procore: token endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *AuthExchangeError) Unwrap() error {
	return ErrAuthExchangeFailed
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isServerError reports whether the status should be retried with
// exponential backoff. 429 has its own budget and is handled separately.
func isServerError(code int) bool {
	return code >= http.StatusInternalServerError && code <= 599
}
