package common

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration for configuration-related errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeValidation for request validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuth for authentication/authorization errors
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeJira for Jira API errors
	ErrorTypeJira ErrorType = "jira"
	// ErrorTypeConfluence for Confluence API errors
	ErrorTypeConfluence ErrorType = "confluence"
	// ErrorTypeAggregation for issue aggregation errors
	ErrorTypeAggregation ErrorType = "aggregation"
	// ErrorTypeStorage for session storage errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeInternal for internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// PipelineError represents a structured error with upstream diagnostics.
// StatusCode and Body carry the upstream HTTP status and response payload
// for tracker API failures.
type PipelineError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Body       string                 `json:"body,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("[%s:%s] %s (status %d): %s", e.Type, e.Code, e.Message, e.StatusCode, e.Body)
	}
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *PipelineError) WithContext(key string, value interface{}) *PipelineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *PipelineError) WithCause(cause error) *PipelineError {
	e.Cause = cause
	return e
}

// WithUpstream records the upstream HTTP status and response body
func (e *PipelineError) WithUpstream(statusCode int, body string) *PipelineError {
	e.StatusCode = statusCode
	e.Body = body
	return e
}

// NewError creates a new PipelineError
func NewError(errorType ErrorType, code, message string) *PipelineError {
	return &PipelineError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *PipelineError {
	return NewError(ErrorTypeConfiguration, code, message)
}

// NewValidationError creates a request validation error
func NewValidationError(code, message string) *PipelineError {
	return NewError(ErrorTypeValidation, code, message)
}

// NewAuthError creates an authentication error
func NewAuthError(code, message string) *PipelineError {
	return NewError(ErrorTypeAuth, code, message)
}

// NewJiraError creates a Jira API error
func NewJiraError(code, message string) *PipelineError {
	return NewError(ErrorTypeJira, code, message)
}

// NewConfluenceError creates a Confluence API error
func NewConfluenceError(code, message string) *PipelineError {
	return NewError(ErrorTypeConfluence, code, message)
}

// NewAggregationError creates an aggregation error
func NewAggregationError(code, message string) *PipelineError {
	return NewError(ErrorTypeAggregation, code, message)
}

// NewStorageError creates a session storage error
func NewStorageError(code, message string) *PipelineError {
	return NewError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal system error
func NewInternalError(code, message string) *PipelineError {
	return NewError(ErrorTypeInternal, code, message)
}

// WrapError wraps an existing error with PipelineError context
func WrapError(err error, errorType ErrorType, code, message string) *PipelineError {
	return &PipelineError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}
