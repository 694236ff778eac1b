package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks caller input the gateway refuses before touching the index.
	ErrValidation = errors.New("validation failed")
	// ErrIndexOperation matches every *IndexError.
	ErrIndexOperation = errors.New("index operation failed")
)

// IndexError wraps a failed call to the vector index.
type IndexError struct {
	Op        string
	IDs       []string
	Err       error
	Retryable bool
}

func (e *IndexError) Error() string {
	msg := "index " + e.Op + " failed"
	if len(e.IDs) > 0 {
		msg += " (ids: " + strings.Join(e.IDs, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Is reports ErrIndexOperation so callers can classify without errors.As.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOperation
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// temporary is implemented by backend errors that may succeed on retry,
// such as rate limiting or a 5xx from a hosted index.
type temporary interface {
	Temporary() bool
}

func newIndexError(op string, ids []string, err error) *IndexError {
	retryable := errors.Is(err, context.DeadlineExceeded)
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		retryable = true
	}
	return &IndexError{
		Op:        op,
		IDs:       ids,
		Err:       err,
		Retryable: retryable,
	}
}
