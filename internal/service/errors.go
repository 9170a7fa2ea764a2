package service

import "errors"

// Failure kinds returned by the service layer. Callers match them with
// errors.Is and map them onto transport status codes.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Error is a typed failure with a message that is safe to show to clients.
// The underlying store or crypto error is logged, never carried here.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func badRequest(message string) error   { return newError(ErrBadRequest, message) }
func unauthorized(message string) error { return newError(ErrUnauthorized, message) }
func notFound(message string) error     { return newError(ErrNotFound, message) }
func conflict(message string) error     { return newError(ErrConflict, message) }

var errInternal = newError(ErrInternal, "something went wrong")
