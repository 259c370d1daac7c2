package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation         = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal           = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict           = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrUnauthorized       = NewError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrTimeout            = NewError("TIMEOUT", "operation timed out", http.StatusGatewayTimeout)
	ErrRateLimited        = NewError("RATE_LIMITED", "upstream rate limit exceeded", http.StatusTooManyRequests)
	ErrUpstream           = NewError("UPSTREAM_ERROR", "upstream request failed", http.StatusBadGateway)
	ErrServiceUnavailable = NewError("SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable)
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is a coded application error. Values are copied on every With* call,
// so the package-level sentinels are never mutated.
type Error struct {
	Code      string
	Message   string
	Status    int
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if detail, ok := e.Details["message"].(string); ok && detail != "" {
		msg = detail
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var retryableErr RetryableError
		if errors.As(e.Cause, &retryableErr) {
			return retryableErr.IsRetryable()
		}
	}
	switch e.Code {
	case ErrServiceUnavailable.Code, ErrTimeout.Code, ErrRateLimited.Code, ErrUpstream.Code:
		return true
	}
	return false
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) clone() *Error {
	err := *e
	if e.Details != nil {
		err.Details = make(map[string]interface{}, len(e.Details))
		for k, v := range e.Details {
			err.Details[k] = v
		}
	}
	return &err
}

func (e *Error) WithCause(cause error) *Error {
	err := e.clone()
	err.Cause = cause
	return err
}

func (e *Error) WithMessage(message string) *Error {
	err := e.clone()
	err.Message = message
	return err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := e.clone()
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	}
	err.Details[key] = value
	return err
}

func (e *Error) AsFatal() *Error {
	err := e.clone()
	retryable := false
	err.retryable = &retryable
	return err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// HasCode reports whether err is an *Error with the same code as kind.
func HasCode(err error, kind *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == kind.Code
	}
	return false
}

func IsNotFound(err error) bool     { return HasCode(err, ErrNotFound) }
func IsValidation(err error) bool   { return HasCode(err, ErrValidation) }
func IsConflict(err error) bool     { return HasCode(err, ErrConflict) }
func IsUnauthorized(err error) bool { return HasCode(err, ErrUnauthorized) }

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// ErrorResponse documents the error body returned by the HTTP API.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	ErrorCode string                 `json:"error_code"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}

// PublicMessage is the text sent back to RPC callers.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return ErrInternal.Message
	}
	if appErr.Cause != nil && (appErr.Code == ErrValidation.Code || appErr.Code == ErrNotFound.Code) {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
	}
	return appErr.Message
}
