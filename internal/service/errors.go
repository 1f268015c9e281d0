package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation means the request is missing a required field or a field
	// is malformed. The concrete error is a *ValidationError.
	ErrValidation = errors.New("invalid request")
	// ErrRateLimited means the HWID exhausted its attempts for the window.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrStoreUnavailable wraps any storage or limiter failure, including
	// timeouts.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError lists the offending request fields by their JSON names.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
