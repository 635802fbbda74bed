package shared

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrAuthenticationFailed = errors.New("invalid username or password")
	ErrAllocationExhausted  = errors.New("account number allocation exhausted")
)

// ValidationError reports a malformed input field
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Reason
}

// Is implements the errors.Is interface for ValidationError
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	// An empty target field matches any ValidationError
	if t.Field == "" {
		return true
	}
	return e.Field == t.Field
}

// ValidationErrors collects per-field validation failures
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes every field error to errors.Is and errors.As
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(e))
	for _, v := range e {
		errs = append(errs, v)
	}
	return errs
}

// StorageError reports a transactional or I/O failure. The enclosing
// transaction is always rolled back; Retryable marks contention failures
// (serialization, deadlock, lock timeout) that may succeed on a new attempt.
type StorageError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e StorageError) Error() string {
	if e.Err == nil {
		return "storage failure during " + e.Op
	}
	return "storage failure during " + e.Op + ": " + e.Err.Error()
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// Is matches any StorageError target
func (e StorageError) Is(target error) bool {
	_, ok := target.(StorageError)
	return ok
}

// IsRetryable reports whether err carries a retryable StorageError
func IsRetryable(err error) bool {
	var se StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
