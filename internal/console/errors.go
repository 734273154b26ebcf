package console

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrSessionClosed ErrorCode = "SESSION_CLOSED"
	ErrUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
)

type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// PublicMessage is the text safe to show to the console user.
func (e *Error) PublicMessage() string {
	return e.Message
}

func newError(code ErrorCode, message string, status int, cause error) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Cause: cause}
}

func ValidationError(message string, cause error) *Error {
	return newError(ErrValidation, message, http.StatusBadRequest, cause)
}

func NotFoundError(message string) *Error {
	return newError(ErrNotFound, message, http.StatusNotFound, nil)
}

func UpstreamError(message string, cause error) *Error {
	return newError(ErrUpstream, message, http.StatusBadGateway, cause)
}

func UnauthorizedError(message string) *Error {
	return newError(ErrUnauthorized, message, http.StatusUnauthorized, nil)
}

var errClosed = newError(ErrSessionClosed, "Console session has been closed", http.StatusGone, nil)

func IsCode(err error, code ErrorCode) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == code
}
