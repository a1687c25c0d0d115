package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an account or role lookup misses.
	ErrNotFound = errors.New("account not found")
	// ErrPrincipalNotFound is returned when no account exists for a login email.
	// It must never reach a client as-is; the auth layer collapses it into
	// ErrInvalidCredentials so email existence cannot be probed.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrInvalidCredentials is the only authentication failure a client sees,
	// regardless of whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports every violated field of a request together, not just
// the first one encountered.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a violation for a field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

// Empty reports whether no violations were recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError is a uniqueness violation on username, email or role name.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("duplicate %s", e.Field)
	}
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Validation and conflict
// outcomes keep their detail; credential failures are collapsed into one
// generic message.
func MapErrorToHTTP(err error) *HTTPError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		httpErr := NewHTTPError(http.StatusBadRequest, "validation failed", "VALIDATION_FAILED")
		httpErr.Fields = validationErr.Fields
		return httpErr
	}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return NewHTTPError(http.StatusConflict, conflictErr.Error(), "CONFLICT")
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrPrincipalNotFound):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
