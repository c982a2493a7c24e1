// Package errors provides standardized error types for the quarry engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes used across the query pipeline.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidTemplate  = "INVALID_TEMPLATE"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeStoreFailed      = "STORE_FAILED"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "UNAVAILABLE"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeCanceled         = "CANCELED"
)

// QuarryError represents an engine error with code, message, and optional details.
type QuarryError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface.
func (e *QuarryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *QuarryError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *QuarryError) Is(target error) bool {
	t, ok := target.(*QuarryError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail to the error.
func (e *QuarryError) WithDetail(key string, value interface{}) *QuarryError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Common errors
var (
	ErrInvalidTemplate  = &QuarryError{Code: CodeInvalidTemplate, Message: "invalid query template"}
	ErrQueryNotFound    = &QuarryError{Code: CodeNotFound, Message: "saved query not found"}
	ErrConnectionFailed = &QuarryError{Code: CodeUnavailable, Message: "database connection failed"}
	ErrQueryTimeout     = &QuarryError{Code: CodeDeadlineExceeded, Message: "query execution timeout"}
)

// New creates a new QuarryError with the given code and message.
func New(code, message string) *QuarryError {
	return &QuarryError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with a QuarryError.
func Wrap(err error, code, message string) *QuarryError {
	if err == nil {
		return nil
	}
	return &QuarryError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *QuarryError {
	if err == nil {
		return nil
	}
	return &QuarryError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var qerr *QuarryError
	if errors.As(err, &qerr) {
		return qerr.Code == CodeNotFound
	}
	return false
}

// IsQueryFailed checks if an error is a query execution error.
func IsQueryFailed(err error) bool {
	var qerr *QuarryError
	if errors.As(err, &qerr) {
		return qerr.Code == CodeQueryFailed
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var qerr *QuarryError
	if errors.As(err, &qerr) {
		return qerr.Code
	}
	return CodeInternal
}

// GetMessage extracts the error message from an error.
func GetMessage(err error) string {
	var qerr *QuarryError
	if errors.As(err, &qerr) {
		return qerr.Message
	}
	return err.Error()
}
