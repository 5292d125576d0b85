// Package errors defines the typed application error shared by the
// repositories, the services and the REST layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "not_found"
	ErrCodeConflict     ErrorCode = "conflict"
	ErrCodeValidation   ErrorCode = "validation"
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	ErrCodeForbidden    ErrorCode = "forbidden"
	ErrCodeInternal     ErrorCode = "internal"
	ErrCodeTimeout      ErrorCode = "timeout"
	ErrCodeCanceled     ErrorCode = "canceled"
)

var codeInfo = map[ErrorCode]struct {
	status int
	rest   string
}{
	ErrCodeNotFound:     {http.StatusNotFound, "rest_not_found"},
	ErrCodeConflict:     {http.StatusConflict, "rest_conflict"},
	ErrCodeValidation:   {http.StatusBadRequest, "rest_invalid_param"},
	ErrCodeUnauthorized: {http.StatusUnauthorized, "rest_not_logged_in"},
	ErrCodeForbidden:    {http.StatusForbidden, "rest_forbidden"},
	ErrCodeTimeout:      {http.StatusGatewayTimeout, "rest_timeout"},
	ErrCodeCanceled:     {499, "rest_canceled"},
}

// HTTPStatus is the response status for the code; unknown codes are 500.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codeInfo[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// RESTCode is the machine-readable "code" of a REST error body.
func (c ErrorCode) RESTCode() string {
	if info, ok := codeInfo[c]; ok {
		return info.rest
	}
	return "rest_internal"
}

// AppError carries a code, a client-safe message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation and conflict errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// ErrorClass feeds the metrics error label.
func (e *AppError) ErrorClass() string { return string(e.Code) }

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func NotFound(message string) *AppError     { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError     { return New(ErrCodeConflict, message) }
func Validation(message string) *AppError   { return New(ErrCodeValidation, message) }
func Unauthorized(message string) *AppError { return New(ErrCodeUnauthorized, message) }
func Forbidden(message string) *AppError    { return New(ErrCodeForbidden, message) }

// ValidationField is a validation error tied to one input field.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func as(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if e, ok := as(err); ok {
		return e.Code
	}
	return ""
}

// GetField returns the Field of the first AppError in err's chain, or "".
func GetField(err error) string {
	if e, ok := as(err); ok {
		return e.Field
	}
	return ""
}

func IsNotFound(err error) bool   { return GetCode(err) == ErrCodeNotFound }
func IsConflict(err error) bool   { return GetCode(err) == ErrCodeConflict }
func IsValidation(err error) bool { return GetCode(err) == ErrCodeValidation }
func IsForbidden(err error) bool  { return GetCode(err) == ErrCodeForbidden }
