// Package errors defines the error taxonomy shared by services, stores and
// HTTP handlers. Callers branch on Kind instead of matching messages.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindUnavailable  Kind = "unavailable"
	KindBadGateway   Kind = "bad_gateway"
	KindInternal     Kind = "internal_error"
)

var kindStatus = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindRateLimited:  http.StatusTooManyRequests,
	KindUnavailable:  http.StatusInternalServerError,
	KindBadGateway:   http.StatusBadGateway,
	KindInternal:     http.StatusInternalServerError,
}

// ServiceError is the concrete error returned across package boundaries.
type ServiceError struct {
	Kind       Kind           `json:"code"`
	Message    string         `json:"error"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetail attaches a detail key and returns the same error.
func (e *ServiceError) WithDetail(key string, value any) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a ServiceError of the given kind.
func New(kind Kind, format string, args ...any) *ServiceError {
	return &ServiceError{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: statusFor(kind),
	}
}

// Wrap creates a ServiceError that keeps err as its cause.
func Wrap(kind Kind, err error, message string) *ServiceError {
	return &ServiceError{
		Kind:       kind,
		Message:    message,
		HTTPStatus: statusFor(kind),
		Err:        err,
	}
}

func Validation(format string, args ...any) *ServiceError {
	return New(KindValidation, format, args...)
}

func Unauthorized(format string, args ...any) *ServiceError {
	return New(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *ServiceError {
	return New(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *ServiceError {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *ServiceError {
	return New(KindConflict, format, args...)
}

func Unavailable(format string, args ...any) *ServiceError {
	return New(KindUnavailable, format, args...)
}

func BadGateway(err error, message string) *ServiceError {
	return Wrap(KindBadGateway, err, message)
}

func Internal(err error, message string) *ServiceError {
	return Wrap(KindInternal, err, message)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(KindRateLimited, "rate limit exceeded").
		WithDetail("limit", limit).
		WithDetail("window", window)
}

// KindOf returns the kind of the first ServiceError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	var se *ServiceError
	if stderrors.As(err, &se) && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// As exposes the first ServiceError in err's chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	ok := stderrors.As(err, &se)
	return se, ok
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

func statusFor(kind Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
