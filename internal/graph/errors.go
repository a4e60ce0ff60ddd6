package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for Microsoft Graph API responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("graph: unauthorised")

	// ErrForbidden indicates the principal lacks permission for the resource.
	ErrForbidden = errors.New("graph: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("graph: not found")

	// ErrDeltaTokenExpired indicates the delta cursor has expired.
	// A full resync is required when this error occurs.
	ErrDeltaTokenExpired = errors.New("graph: delta token expired, full sync required")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("graph: bad request")

	// ErrServerError indicates a server-side error from Microsoft Graph.
	ErrServerError = errors.New("graph: server error")
)

// APIError is a non-2xx Graph response. Message carries the provider's
// structured error text when the body contained one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph: request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the sentinel taxonomy so callers can use
// errors.Is without inspecting status codes.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusGone:
		return ErrDeltaTokenExpired
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsDeltaTokenExpired checks for an expired delta cursor. Microsoft Graph
// returns 410 Gone when the delta token can no longer be resumed.
func IsDeltaTokenExpired(err error) bool {
	return errors.Is(err, ErrDeltaTokenExpired)
}

// IsUnauthorised checks for an authentication failure.
func IsUnauthorised(err error) bool {
	return errors.Is(err, ErrUnauthorised)
}
