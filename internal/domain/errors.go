package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery marks client faults: missing fields, too few evidence
	// channels, malformed priority orders.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEncoding is returned when a backend cannot embed its input.
	ErrEncoding = errors.New("encoding failed")

	// ErrIndexUnavailable is returned when a backend index cannot be queried.
	ErrIndexUnavailable = errors.New("index unavailable")

	ErrNoEvidenceLists = Invalid("no evidence lists to fuse")
)

// ValidationError carries the message shown to the caller for a rejected
// request. It unwraps to ErrInvalidQuery.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidQuery }

// Invalid builds a client-fault error.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsClientFault reports whether err was caused by the request itself.
func IsClientFault(err error) bool {
	return errors.Is(err, ErrInvalidQuery)
}
