// Package errors defines the sentinel errors shared by the indexer, the
// storage backends and the HTTP layer, plus an AppError that carries an
// explicit HTTP status.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return Newf(ErrNotFound, http.StatusNotFound, format, args...)
}

// Invalidf wraps ErrInvalidInput with a formatted message.
func Invalidf(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

// Unavailable wraps a transport or service error so that callers can match
// it with errors.Is(err, ErrStorageUnavailable) and still reach the cause.
func Unavailable(op, key string, cause error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorageUnavailable, op, key, cause)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
