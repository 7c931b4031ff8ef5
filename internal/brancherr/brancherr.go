// Package brancherr defines the error kinds the branch service surfaces to
// callers, per the error handling design: NotFound, AlreadyExists,
// InvalidArgument, ConflictLocked, InvariantViolation, and ListenerAborted.
// Lookups and store I/O never recover internally; every error reaches the
// caller. Errors the service raises itself carry one of these kinds; store
// I/O errors are passed up wrapped with fmt.Errorf context and carry no
// kind.
package brancherr

import (
	"errors"
	"fmt"
)

// Kind classifies the reason an operation failed.
type Kind int

const (
	// NotFound means a branch is absent where the caller required one.
	NotFound Kind = iota
	// AlreadyExists means create was attempted on a path with a current
	// timespan.
	AlreadyExists
	// InvalidArgument means a precondition on input was violated: empty
	// path, '_' in path, missing sourcePath on promotion, sourcePath not a
	// descendant.
	InvalidArgument
	// ConflictLocked means open was attempted while the branch was locked.
	ConflictLocked
	// InvariantViolation means a data-model invariant broke: more than one
	// current timespan, more than one timespan at a timepoint, a missing
	// parent on a non-root lookup.
	InvariantViolation
	// ListenerAborted means a pre-completion listener returned an error;
	// the commit does not complete and the caller must roll it back.
	ListenerAborted
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case InvalidArgument:
		return "invalid_argument"
	case ConflictLocked:
		return "conflict_locked"
	case InvariantViolation:
		return "invariant_violation"
	case ListenerAborted:
		return "listener_aborted"
	default:
		return "unknown"
	}
}

// Error is a branch-service error tagged with a Kind, wrapping an optional
// underlying cause.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.err
}

// New builds a *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error of the given kind, carrying err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return New(kind, format, args...)
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// Is reports whether err (or any error it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == k
	}
	return false
}
