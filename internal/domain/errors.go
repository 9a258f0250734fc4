package domain

import "errors"

// ValidationError is a business-rule failure whose message is safe to show.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidTransition = errors.New("only pending requests can be changed")
)

// kindError carries a user-facing message while matching one of the sentinels above.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

// NotFound reports a missing entity, e.g. NotFound("Leave request not found").
func NotFound(msg string) error { return &kindError{kind: ErrNotFound, msg: msg} }

func Forbidden(msg string) error { return &kindError{kind: ErrForbidden, msg: msg} }

func Unauthenticated(msg string) error { return &kindError{kind: ErrUnauthenticated, msg: msg} }
