package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/keygate/keygate/internal/clock"
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string // key namespace, e.g. "keygate:"
	DialTimeout time.Duration
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Redis keeps each HWID's window in a sorted set scored by Unix milliseconds,
// so windows survive restarts and are shared by every instance using the
// same Redis.
type Redis struct {
	client redis.Cmdable
	policy Policy
	clock  clock.Clock
	prefix string
}

// NewRedis creates a Redis-backed limiter over an existing client.
func NewRedis(client redis.Cmdable, policy Policy, clk clock.Clock, prefix string) (*Redis, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Redis{client: client, policy: policy, clock: clk, prefix: prefix}, nil
}

func (r *Redis) key(hwid string) string {
	return r.prefix + "ratelimit:" + hwid
}

func (r *Redis) Admit(ctx context.Context, hwid string) (bool, error) {
	key := r.key(hwid)
	cutoff := r.clock.Now().Add(-r.policy.Window).UnixMilli()

	var card *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit admit: %w", err)
	}
	return card.Val() < int64(r.policy.Max), nil
}

func (r *Redis) Record(ctx context.Context, hwid string) error {
	key := r.key(hwid)
	now := r.clock.Now()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: uuid.NewString(),
		})
		pipe.PExpire(ctx, key, r.policy.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rate limit record: %w", err)
	}
	return nil
}
