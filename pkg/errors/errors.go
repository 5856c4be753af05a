package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable error class carried over both the REST and
// the websocket surface.
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyExists    Code = "ALREADY_EXISTS"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeIdentityConflict Code = "IDENTITY_CONFLICT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
	CodeTooManyRequests  Code = "TOO_MANY_REQUESTS"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error { return New(CodeInvalidArgument, msg) }

func NotFound(msg string) error { return New(CodeNotFound, msg) }

func AlreadyExists(msg string) error { return New(CodeAlreadyExists, msg) }

func Unauthenticated(msg string) error { return New(CodeUnauthenticated, msg) }

func IdentityConflict(msg string) error { return New(CodeIdentityConflict, msg) }

func Forbidden(msg string) error { return New(CodePermissionDenied, msg) }

func Internal(msg string) error { return New(CodeInternal, msg) }

func TooManyRequests(msg string) error { return New(CodeTooManyRequests, msg) }

// Persistence wraps a storage I/O failure. Callers treat it as retryable by
// the client, never by this layer.
func Persistence(cause error) error {
	return Wrap(CodeUnavailable, "storage unavailable", cause)
}

// CodeOf extracts the error class, defaulting to UNKNOWN for plain errors.
func CodeOf(err error) Code {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return CodeUnknown
}

// HTTPStatus maps an error to the REST status the gin error middleware writes.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated, CodeIdentityConflict:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
