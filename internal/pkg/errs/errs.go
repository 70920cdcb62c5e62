/*
Package errs provides custom error types and application-level error code constants.

A CustomError pairs a business code and the message shown to the player with the HTTP
status to send. It can carry the underlying cause, which is logged but never shown.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"speechquest/internal/pkg/logx"
)

// CustomError is the error structure returned to clients.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Message is the user-facing description.
	Message string

	// Status is the HTTP status code for this error. Business rejections use 200.
	Status int

	cause error
}

// Error implements the error interface.
func (e CustomError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e CustomError) Unwrap() error { return e.cause }

// Cause returns the underlying error, if any.
func (e *CustomError) Cause() error { return e.cause }

// WithCause returns a copy of e carrying cause.
func (e *CustomError) WithCause(cause error) *CustomError {
	c := *e
	c.cause = cause
	return &c
}

// NewError builds a *CustomError from a predefined code.
// details fill the printf placeholders of the message template. For ErrUnknown the first
// detail may be the underlying error, which becomes the cause.
func NewError(code int, details ...any) *CustomError {
	customErr, ok := errorMap[code]
	if !ok {
		logx.Error(fmt.Errorf("code %d is not in errorMap", code), "Unknown error code requested")
		customErr = errorMap[ErrUnknown]
	}

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	switch {
	case len(details) == 0 || !ok:
	case code == ErrUnknown:
		if cause, isErr := details[0].(error); isErr {
			customErr.cause = cause
		}
	case strings.Contains(customErr.Message, "%"):
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	default:
		logx.Warn("Error details ignored, message has no placeholders", "code", code)
	}

	return &customErr
}

// AsCustom extracts a *CustomError from err's chain.
func AsCustom(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}
