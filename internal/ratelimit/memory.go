package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/keygate/keygate/internal/clock"
)

// Memory keeps windows in process memory. Windows reset when the process
// restarts and are not shared between instances.
type Memory struct {
	policy Policy
	clock  clock.Clock

	mu      sync.Mutex
	windows map[string][]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemory creates an in-memory limiter.
func NewMemory(policy Policy, clk clock.Clock) (*Memory, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Memory{
		policy:  policy,
		clock:   clk,
		windows: make(map[string][]time.Time),
	}, nil
}

func (m *Memory) Admit(_ context.Context, hwid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempts := m.pruneLocked(hwid, m.clock.Now())
	return len(attempts) < m.policy.Max, nil
}

func (m *Memory) Record(_ context.Context, hwid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windows[hwid] = append(m.windows[hwid], m.clock.Now())
	return nil
}

// Count returns the number of attempts inside the current window.
func (m *Memory) Count(hwid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pruneLocked(hwid, m.clock.Now()))
}

// Sweep prunes every window and drops the ones left empty. It returns the
// number of HWIDs still tracked.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for hwid := range m.windows {
		m.pruneLocked(hwid, now)
	}
	return len(m.windows)
}

// StartJanitor runs Sweep every interval until Shutdown. Non-blocking.
func (m *Memory) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the janitor, if running.
func (m *Memory) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// pruneLocked keeps only attempts strictly after now-window.
func (m *Memory) pruneLocked(hwid string, now time.Time) []time.Time {
	attempts, ok := m.windows[hwid]
	if !ok {
		return nil
	}

	cutoff := now.Add(-m.policy.Window)
	valid := attempts[:0]
	for _, at := range attempts {
		if at.After(cutoff) {
			valid = append(valid, at)
		}
	}
	if len(valid) == 0 {
		delete(m.windows, hwid)
		return nil
	}
	m.windows[hwid] = valid
	return valid
}
