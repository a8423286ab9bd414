package lane

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every InputError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoOpenEntry is returned by an exit when no vehicle is waiting in the lane.
	ErrNoOpenEntry = errors.New("no open entry")
	// ErrStoreUnavailable wraps backend failures reported by a Store implementation.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// InputError reports a malformed parameter. It is raised before any store access.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *InputError) Unwrap() error { return ErrInvalidInput }

// InvalidInput builds an InputError for field.
func InvalidInput(field, format string, args ...any) error {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a backend error so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
