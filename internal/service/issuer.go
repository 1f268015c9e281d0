package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/ratelimit"
	"github.com/keygate/keygate/internal/store"
)

// maxInsertAttempts bounds retries when a generated token collides.
const maxInsertAttempts = 3

var errTokenCollisions = errors.New("token collided on every attempt")

// KeyGenerator produces candidate tokens.
type KeyGenerator interface {
	Generate(hwid, username string) (string, error)
}

// Issuer hands out access keys. Each HWID holds at most one live key: a
// repeated request while that key is live returns it unchanged.
type Issuer struct {
	store    store.KeyStore
	limiter  ratelimit.Limiter
	keys     KeyGenerator
	clock    clock.Clock
	cfg      Config
	locks    *keyedLocks
	rules    *validator.Validate
}

// NewIssuer wires an Issuer from its collaborators.
func NewIssuer(st store.KeyStore, limiter ratelimit.Limiter, keys KeyGenerator, clk clock.Clock, cfg Config) *Issuer {
	return &Issuer{
		store:    st,
		limiter:  limiter,
		keys:     keys,
		clock:    clk,
		cfg:      cfg.withDefaults(),
		locks:    newKeyedLocks(),
		rules:    newRequestValidator(),
	}
}

// TTL returns the lifetime given to new keys.
func (s *Issuer) TTL() time.Duration { return s.cfg.TTL }

// Issue returns the live key for req.HWID or mints a new one.
//
// Errors: *ValidationError (errors.Is ErrValidation), ErrRateLimited,
// ErrStoreUnavailable, or a key generation failure.
func (s *Issuer) Issue(ctx context.Context, req model.IssueRequest) (*model.IssueResult, error) {
	req.HWID = strings.TrimSpace(req.HWID)
	req.Username = strings.TrimSpace(req.Username)
	req.PlayerID = strings.TrimSpace(req.PlayerID)

	verr := checkRequest(s.rules, req)
	if s.cfg.RequirePlayerID && req.PlayerID == "" {
		verr.Missing = append(verr.Missing, "player_id")
	}
	if !verr.empty() {
		s.cfg.Observer.IssueOutcome(OutcomeInvalid)
		return nil, verr
	}

	res, err := s.issueLocked(ctx, req)
	switch {
	case err == nil && res.IsNew:
		s.cfg.Observer.IssueOutcome(OutcomeNew)
	case err == nil:
		s.cfg.Observer.IssueOutcome(OutcomeReused)
	case errors.Is(err, ErrRateLimited):
		s.cfg.Observer.IssueOutcome(OutcomeRateLimited)
	default:
		s.cfg.Observer.IssueOutcome(OutcomeError)
	}
	return res, err
}

func (s *Issuer) issueLocked(ctx context.Context, req model.IssueRequest) (*model.IssueResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	unlock, err := s.locks.lock(lockCtx, req.HWID)
	cancel()
	if err != nil {
		return nil, unavailable("acquire hwid lock", err)
	}
	defer unlock()

	if err := s.admit(ctx, req.HWID); err != nil {
		return nil, err
	}

	// SQL backends keep millisecond precision; truncating keeps the returned
	// expiry identical to what a later read sees.
	now := s.clock.Now().Truncate(time.Millisecond)

	readCtx, cancel := s.cfg.readCtx(ctx)
	existing, err := s.store.GetLiveByHWID(readCtx, req.HWID, now)
	cancel()
	switch {
	case err == nil:
		s.cfg.Logger.Debug("reusing live key", "hwid", req.HWID, "expires_at", existing.ExpiresAt)
		return &model.IssueResult{Key: existing.Key, ExpiresAt: existing.ExpiresAt, IsNew: false}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, unavailable("lookup live key", err)
	}

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		token, err := s.keys.Generate(req.HWID, req.Username)
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		rec := &model.KeyRecord{
			Key:       token,
			HWID:      req.HWID,
			Username:  req.Username,
			PlayerID:  req.PlayerID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.TTL),
		}

		writeCtx, cancel := s.cfg.writeCtx(ctx)
		err = s.store.Insert(writeCtx, rec)
		cancel()
		if err == nil {
			s.cfg.Logger.Info("issued key", "hwid", req.HWID, "username", req.Username, "expires_at", rec.ExpiresAt)
			return &model.IssueResult{Key: rec.Key, ExpiresAt: rec.ExpiresAt, IsNew: true}, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, unavailable("insert key", err)
		}
		s.cfg.Logger.Warn("generated key collided, retrying", "attempt", attempt)
	}
	return nil, unavailable("insert key", errTokenCollisions)
}

// admit checks and records one attempt. Callers hold the HWID lock, so the
// pair is atomic per HWID.
func (s *Issuer) admit(ctx context.Context, hwid string) error {
	admitCtx, cancel := s.cfg.readCtx(ctx)
	ok, err := s.limiter.Admit(admitCtx, hwid)
	cancel()
	if err != nil {
		return unavailable("rate limit check", err)
	}
	if !ok {
		s.cfg.Logger.Info("rate limit exceeded", "hwid", hwid)
		return ErrRateLimited
	}

	recordCtx, cancel := s.cfg.writeCtx(ctx)
	defer cancel()
	if err := s.limiter.Record(recordCtx, hwid); err != nil {
		return unavailable("rate limit record", err)
	}
	return nil
}
