package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/broadcaster/internal/broadcast"
	"github.com/dmitrymomot/broadcaster/pkg/mailer"
)

// Error codes of the response envelope.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeBroadcastInvalidStatus = "BROADCAST_INVALID_STATUS"
	CodeBroadcastNotFound      = "BROADCAST_NOT_FOUND"
	CodeContactNotFound        = "CONTACT_NOT_FOUND"
	CodeEmailSendFailed        = "EMAIL_SEND_FAILED"
	CodeInternalError          = "INTERNAL_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeTokenInvalid           = "TOKEN_INVALID"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeValidationError        = "VALIDATION_ERROR"
)

// Error is an error rendered as an envelope. Err is logged, never exposed.
type Error struct {
	Err     error
	Fields  map[string]string
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func errBadRequest(message string) *Error {
	return newError(http.StatusBadRequest, CodeBadRequest, message)
}

func errUnauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, CodeUnauthorized, message)
}

func errValidation(message string) *Error {
	return newError(http.StatusBadRequest, CodeValidationError, message)
}

func errInternal() *Error {
	return newError(http.StatusInternalServerError, CodeInternalError, "Internal Server Error")
}

// toError maps domain errors onto envelope errors. Anything unknown is an
// internal error.
func toError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *broadcast.ValidationError
	switch {
	case errors.As(err, &verr):
		e := errValidation(verr.Error())
		e.Fields = verr.Fields
		return e
	case errors.Is(err, broadcast.ErrBroadcastNotFound):
		return newError(http.StatusNotFound, CodeBroadcastNotFound, "Broadcast not found")
	case errors.Is(err, broadcast.ErrInvalidStatus):
		return newError(http.StatusBadRequest, CodeBroadcastInvalidStatus, "Broadcast must be in draft status to send")
	case errors.Is(err, broadcast.ErrInvalidAddress):
		return errValidation("A valid testEmail is required")
	case errors.Is(err, broadcast.ErrTokenRequired):
		return errValidation("Token is required")
	case errors.Is(err, broadcast.ErrTokenExpired):
		return newError(http.StatusBadRequest, CodeTokenExpired, "Token has expired")
	case errors.Is(err, broadcast.ErrTokenInvalid):
		return newError(http.StatusBadRequest, CodeTokenInvalid, "Invalid token")
	case errors.Is(err, broadcast.ErrEmailNotFound):
		return newError(http.StatusNotFound, CodeNotFound, "Associated email not found")
	case errors.Is(err, broadcast.ErrContactNotFound):
		return newError(http.StatusNotFound, CodeContactNotFound, "Associated contact not found")
	case errors.Is(err, mailer.ErrSendFailed), errors.Is(err, mailer.ErrRejected):
		return newError(http.StatusInternalServerError, CodeEmailSendFailed, "Error sending email")
	default:
		return errInternal()
	}
}
