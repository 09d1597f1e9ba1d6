// Package errkind classifies the failures of a drive transfer so callers can tell
// a retryable hiccup from a failure that has to be surfaced.
package errkind

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidInput is returned for parameters that can never succeed, e.g. a zero sized chunk plan.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTransientIO is a network or server side (5xx, throttling) failure that is worth retrying.
	ErrTransientIO = errors.New("transient i/o error")

	// ErrProtocol is a violation of the multipart contract: missing or unordered parts,
	// an unknown or already finalized upload session.
	ErrProtocol = errors.New("protocol error")

	// ErrAuth is a rejected credential, token or session.
	ErrAuth = errors.New("authentication error")

	// ErrJobFailed is reported when the server side job of an operation ended in error state.
	ErrJobFailed = errors.New("job failed")
)

// Error attaches the failed operation and its kind to an underlying error.
type Error struct {
	// Op is the operation that failed (e.g. "uploadPart", "completeMultipartUpload").
	Op string

	// Kind is one of the sentinel kinds of this package.
	Kind error

	// Err is the underlying error, can be nil.
	Err error
}

// New creates a new Error.
func New(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Error ...
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsTransient reports whether err may go away when the same call is repeated.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO)
}

// IsPermanent reports whether repeating the call that produced err is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrJobFailed)
}
