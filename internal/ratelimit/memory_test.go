package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/clock"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMemory(t *testing.T, max int, window time.Duration) (*Memory, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	m, err := NewMemory(Policy{Max: max, Window: window}, clk)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m, clk
}

// attempt mirrors how the Issuer drives a limiter.
func attempt(t *testing.T, l Limiter, hwid string) bool {
	t.Helper()
	ctx := context.Background()
	ok, err := l.Admit(ctx, hwid)
	require.NoError(t, err)
	if ok {
		require.NoError(t, l.Record(ctx, hwid))
	}
	return ok
}

func TestMemoryAdmitsUpToMax(t *testing.T) {
	m, _ := newMemory(t, 5, time.Hour)

	for i := 0; i < 5; i++ {
		assert.True(t, attempt(t, m, "hw-1"), "attempt %d should be admitted", i+1)
	}
	assert.False(t, attempt(t, m, "hw-1"), "sixth attempt should be rejected")
	assert.Equal(t, 5, m.Count("hw-1"), "rejected attempts are not recorded")
}

func TestMemoryUnknownHWIDAdmitted(t *testing.T) {
	m, _ := newMemory(t, 1, time.Hour)

	ok, err := m.Admit(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryHWIDsIndependent(t *testing.T) {
	m, _ := newMemory(t, 1, time.Hour)

	assert.True(t, attempt(t, m, "hw-a"))
	assert.False(t, attempt(t, m, "hw-a"))
	assert.True(t, attempt(t, m, "hw-b"))
}

func TestMemoryWindowSlides(t *testing.T) {
	m, clk := newMemory(t, 2, time.Hour)

	assert.True(t, attempt(t, m, "hw-1"))
	clk.Advance(30 * time.Minute)
	assert.True(t, attempt(t, m, "hw-1"))
	assert.False(t, attempt(t, m, "hw-1"))

	// Exactly one window after the first attempt it falls out.
	clk.Advance(30 * time.Minute)
	assert.True(t, attempt(t, m, "hw-1"))
	assert.False(t, attempt(t, m, "hw-1"))

	clk.Advance(2 * time.Hour)
	assert.Equal(t, 0, m.Count("hw-1"))
}

func TestMemorySweepDropsEmptyWindows(t *testing.T) {
	m, clk := newMemory(t, 5, time.Minute)

	attempt(t, m, "hw-1")
	attempt(t, m, "hw-2")
	assert.Equal(t, 2, m.Sweep())

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 0, m.Sweep())
}

func TestMemoryJanitorStops(t *testing.T) {
	m, _ := newMemory(t, 5, time.Minute)
	m.StartJanitor(time.Millisecond)
	attempt(t, m, "hw-1")
	time.Sleep(5 * time.Millisecond)
	m.Shutdown()
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{Max: 0, Window: time.Hour}.Validate())
	assert.Error(t, Policy{Max: 5, Window: 0}.Validate())

	_, err := NewMemory(Policy{}, clock.NewManual(start))
	assert.Error(t, err)
}
