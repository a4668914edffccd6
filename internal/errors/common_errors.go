package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeLoad        ErrorType = "LOAD"
	ErrTypeDateParse   ErrorType = "DATE_PARSE"
	ErrTypeAggregation ErrorType = "AGGREGATION"
	ErrTypeNetwork     ErrorType = "NETWORK"
	ErrTypeStorage     ErrorType = "STORAGE"
	ErrTypeValidation  ErrorType = "VALIDATION"
	ErrTypeNotFound    ErrorType = "NOT_FOUND"
	ErrTypeConfig      ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
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

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewLoadError reports that a dataset could not be fetched or decoded.
func NewLoadError(source, message string, cause error) *AppError {
	return NewAppError(ErrTypeLoad, message, cause).WithContext("source", source)
}

// NewDateParseError reports an InvoiceDate cell that could not be coerced.
// row is the 1-based worksheet row number.
func NewDateParseError(row int, value string, cause error) *AppError {
	return NewAppError(ErrTypeDateParse, fmt.Sprintf("invalid InvoiceDate %q at row %d", value, row), cause).
		WithContext("row", row).
		WithContext("value", value)
}

// NewAggregationError reports a failed group-by or formatting step.
func NewAggregationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeAggregation, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsLoadError reports whether err is, or wraps, a load error.
func IsLoadError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeLoad
}

// IsDateParseError reports whether err is, or wraps, a date parse error.
func IsDateParseError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeDateParse
}

// IsAggregationError reports whether err is, or wraps, an aggregation error.
func IsAggregationError(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeAggregation
}
