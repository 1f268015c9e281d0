package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/store"
)

// Sweeper deletes expired keys, on demand and on a timer.
type Sweeper struct {
	store store.KeyStore
	clock clock.Clock
	cfg   Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a Sweeper. The loop period is cfg.CleanupInterval.
func NewSweeper(st store.KeyStore, clk clock.Clock, cfg Config) *Sweeper {
	return &Sweeper{store: st, clock: clk, cfg: cfg.withDefaults()}
}

// Sweep deletes every record whose expiry is strictly before now and returns
// how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	writeCtx, cancel := s.cfg.writeCtx(ctx)
	defer cancel()

	n, err := s.store.DeleteExpired(writeCtx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired: %w", ErrStoreUnavailable, err)
	}
	s.cfg.Observer.ExpiredDeleted(n)
	if n > 0 {
		s.cfg.Logger.Info("expired keys deleted", "count", n)
	}
	return n, nil
}

// Start runs Sweep every CleanupInterval until Shutdown. It does nothing when
// the interval is zero. Non-blocking.
func (s *Sweeper) Start() {
	if s.cfg.CleanupInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.cfg.Logger.Error("cleanup failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the background loop and waits for an in-flight sweep.
func (s *Sweeper) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
