package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for callers that branch on the kind
// of failure rather than the specific code.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "unavailable"
)

// AppError is the error shape services return across package
// boundaries. The REST layer serializes it straight into the error
// response body, so Code and Message are written for API consumers.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause attaches the underlying error for logs and errors.Is
// chains. The cause never reaches API responses.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    resource + " not found",
		StatusCode: http.StatusNotFound,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewUnavailableError marks a failed read or write against a backing
// store. Callers treat it as degradable: the operation that saw it
// completes with whatever signal it already has.
func NewUnavailableError(store, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       "STORE_UNAVAILABLE",
		Message:    fmt.Sprintf("%s store: %s", store, message),
		Details:    map[string]interface{}{"store": store},
		Retryable:  true,
		StatusCode: http.StatusServiceUnavailable,
	}
}

var (
	ErrInvalidInput       = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrAssessmentNotFound = NewNotFoundError("assessment")
)

// IsType reports whether err carries an AppError of the given type
// anywhere in its chain.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errorType
}
