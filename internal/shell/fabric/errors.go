package fabric

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrUnauthorized is matched by 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is matched by 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrConflict is matched by 409 responses.
	ErrConflict = errors.New("conflict")

	// ErrPagingLoop means a list endpoint handed back a page link it had
	// already returned.
	ErrPagingLoop = errors.New("continuation repeats an earlier page")
)

// APIError is a non-success response from the platform.
type APIError struct {
	Op         string // Operation that failed (e.g., "ListItems")
	StatusCode int
	Code       string // errorCode from the response body, if any
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: unexpected status %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
}

// Is maps status codes onto the sentinel errors above.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// errorBody is the platform's error payload.
type errorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
