package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so the boundary layer can map it to a response
// without string matching.
type Kind string

const (
	KindUnknown      Kind = "UNKNOWN"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindValidation   Kind = "VALIDATION_FAILURE"
	KindPrecondition Kind = "PRECONDITION_FAILURE"
	KindTransport    Kind = "TRANSPORT_FAILURE"
)

// Error is a classified application error carrying the entity it refers to.
type Error struct {
	Kind   Kind
	Entity string // "request", "destination", "template", "letter", "document"
	ID     string // entity id or access code, empty when not applicable
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Entity != "" && e.ID != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Msg)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s", e.Entity, e.Msg)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports that the identified entity does not exist.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

// Conflict reports a uniqueness or exhaustion conflict.
func Conflict(entity, msg string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, Msg: msg}
}

// Validation reports rejected input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Validationf formats a validation error.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Precondition reports an operation attempted against entities in the wrong
// relationship or state.
func Precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Msg: msg}
}

// Preconditionf formats a precondition error.
func Preconditionf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Transport wraps a delivery failure, preserving the underlying message.
func Transport(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
