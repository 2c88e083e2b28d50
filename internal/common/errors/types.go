// Package errors defines the structured error types used across the cache engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeBackend represents durable-store failures (open, read, write)
	ErrTypeBackend ErrorType = "backend"
	// ErrTypeCapacity represents inserts that cannot be satisfied by eviction
	ErrTypeCapacity ErrorType = "capacity"
	// ErrTypeValidation represents invalid input or configuration values
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeSerialization represents value encode/decode failures
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeNotFound represents missing keys
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// BackendError creates a new durable-store error
func BackendError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeBackend, Message: msg, Cause: cause}
}

// CapacityError creates a new capacity error
func CapacityError(msg string) *AppError {
	return &AppError{Type: ErrTypeCapacity, Message: msg}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// SerializationError creates a new serialization error
func SerializationError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeSerialization, Message: msg, Cause: cause}
}

// NotFoundError creates a new not-found error
func NotFoundError(msg string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: msg}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}
