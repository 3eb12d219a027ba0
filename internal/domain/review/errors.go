package review

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a dispatch error for retry and surfacing policy.
type ErrorKind string

const (
	// KindValidation marks bad input; surfaced to the caller, never retried.
	KindValidation ErrorKind = "validation"

	// KindNotOwner marks an action on a task the caller does not hold.
	KindNotOwner ErrorKind = "not_owner"

	// KindIllegalTransition marks a state change the lifecycle forbids.
	KindIllegalTransition ErrorKind = "illegal_transition"

	// KindTransient marks timeouts and lock contention; retried with
	// backoff before surfacing.
	KindTransient ErrorKind = "transient"

	// KindSuspended marks any action by a reviewer with active=false.
	KindSuspended ErrorKind = "suspended"

	// KindFatal marks schema drift or a detected invariant violation; the
	// component halts.
	KindFatal ErrorKind = "fatal"
)

// Error is the typed error surfaced by store and gateway operations. Code is
// a stable machine-readable slug for API responses.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed error with a formatted message.
func NewError(kind ErrorKind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a kind and code.
func WrapError(kind ErrorKind, code string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, defaulting to fatal for untyped errors so
// unknown failures are never silently retried as transient.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// IsTransient reports whether the error should be retried with backoff.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// ===========================================================================
// Claim outcomes
// ===========================================================================

// ErrNoQueuedTask is returned by a claim when no queued task exists.
var ErrNoQueuedTask = errors.New("no queued task")

// ErrNoCandidateReviewer is returned by a claim when no eligible reviewer exists.
var ErrNoCandidateReviewer = errors.New("no candidate reviewer")

// ===========================================================================
// Lookup errors
// ===========================================================================

// ErrTaskNotFound is returned when a task id matches no row.
var ErrTaskNotFound = errors.New("task not found")

// ErrReviewerNotFound is returned when a reviewer id matches no row.
var ErrReviewerNotFound = errors.New("reviewer not found")

// ErrApplicationNotFound is returned when a (candidate, job) pair matches no application.
var ErrApplicationNotFound = errors.New("application not found")
