// Package ratelimit bounds how many issuance attempts a single HWID may make
// inside a trailing time window.
//
// A Limiter answers two questions: may this HWID make another attempt now
// (Admit), and note that it made one (Record). Callers that need the pair to
// be atomic for one HWID serialize around it; the Issuer does so with its
// per-HWID lock.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Default policy: 5 attempts per rolling hour.
const (
	DefaultMax    = 5
	DefaultWindow = time.Hour
)

// Limiter is a per-HWID sliding window counter.
type Limiter interface {
	// Admit reports whether fewer than Max attempts fall inside the trailing
	// window ending now. It prunes stale timestamps as a side effect.
	Admit(ctx context.Context, hwid string) (bool, error)
	// Record notes an attempt at the current instant.
	Record(ctx context.Context, hwid string) error
}

// Policy is the shared limit configuration.
type Policy struct {
	Max    int
	Window time.Duration
}

// DefaultPolicy returns 5 attempts per hour.
func DefaultPolicy() Policy {
	return Policy{Max: DefaultMax, Window: DefaultWindow}
}

// Validate rejects non-positive limits.
func (p Policy) Validate() error {
	if p.Max <= 0 {
		return fmt.Errorf("rate limit max must be positive, got %d", p.Max)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive, got %s", p.Window)
	}
	return nil
}
