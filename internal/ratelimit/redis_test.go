package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keygate/keygate/internal/clock"
)

// newRedis connects to the Redis named by REDIS_ADDR, skipping otherwise.
func newRedis(t *testing.T, max int, window time.Duration) (*Redis, *clock.Manual) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client, err := Dial(context.Background(), RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clk := clock.NewManual(time.Now().UTC())
	prefix := "keygate-test:" + uuid.NewString() + ":"
	r, err := NewRedis(client, Policy{Max: max, Window: window}, clk, prefix)
	require.NoError(t, err)
	return r, clk
}

func TestRedisAdmitsUpToMax(t *testing.T) {
	r, _ := newRedis(t, 3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, attempt(t, r, "hw-1"))
	}
	assert.False(t, attempt(t, r, "hw-1"))
	assert.True(t, attempt(t, r, "hw-2"))
}

func TestRedisWindowSlides(t *testing.T) {
	r, clk := newRedis(t, 1, time.Minute)

	assert.True(t, attempt(t, r, "hw-1"))
	assert.False(t, attempt(t, r, "hw-1"))

	clk.Advance(time.Minute)
	assert.True(t, attempt(t, r, "hw-1"))
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
