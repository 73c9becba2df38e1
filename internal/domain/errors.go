package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for missing entities. Errors of kind
// KindNotFound match it via errors.Is.
var ErrNotFound = errors.New("not found")

// ErrorKind classifies a failure so callers can decide whether to skip a
// row, surface a conflict for review, or stop the batch.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindCollaborator ErrorKind = "collaborator"
	KindFatal        ErrorKind = "fatal"
)

// Error is the typed error carried across service boundaries.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match NotFound errors without the
// caller having to wrap the sentinel.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// ValidationError reports input that can never succeed as given.
func ValidationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity.
func NotFoundError(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports a state clash (unique violation, already merged, ...).
func ConflictError(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// CollaboratorError wraps a failure of an external collaborator (mail
// provider, text classifier).
func CollaboratorError(op string, err error) error {
	return &Error{Kind: KindCollaborator, Op: op, Err: err}
}

// FatalError wraps a failure that must stop the whole batch, such as a lost
// store connection.
func FatalError(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return ""
}

// IsFatal reports whether err must stop the current batch.
func IsFatal(err error) bool { return KindOf(err) == KindFatal }

// IsNotFound reports whether err means "no such entity".
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
