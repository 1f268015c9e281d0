package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keygate/keygate/internal/clock"
	"github.com/keygate/keygate/internal/model"
	"github.com/keygate/keygate/internal/store"
)

// Validator checks a presented key against the HWID it is bound to.
type Validator struct {
	store store.KeyStore
	clock clock.Clock
	cfg   Config
	rules *validator.Validate
}

// NewValidator wires a Validator.
func NewValidator(st store.KeyStore, clk clock.Clock, cfg Config) *Validator {
	return &Validator{
		store: st,
		clock: clk,
		cfg:   cfg.withDefaults(),
		rules: newRequestValidator(),
	}
}

// Validate returns a verdict. Negative verdicts are results, not errors; the
// only error is ErrStoreUnavailable.
func (v *Validator) Validate(ctx context.Context, req model.ValidateRequest) (model.ValidateResult, error) {
	res, err := v.validate(ctx, req)
	switch {
	case err != nil:
		v.cfg.Observer.ValidateOutcome(OutcomeError)
	case res.Valid:
		v.cfg.Observer.ValidateOutcome(OutcomeValid)
	default:
		v.cfg.Observer.ValidateOutcome(res.Reason)
	}
	return res, err
}

func (v *Validator) validate(ctx context.Context, req model.ValidateRequest) (model.ValidateResult, error) {
	req.Key = strings.TrimSpace(req.Key)
	req.HWID = strings.TrimSpace(req.HWID)

	if verr := checkRequest(v.rules, req); !verr.empty() {
		return invalid(model.ReasonMissingFields), nil
	}

	readCtx, cancel := v.cfg.readCtx(ctx)
	rec, err := v.store.GetByKey(readCtx, req.Key)
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		return invalid(model.ReasonNotFound), nil
	}
	if err != nil {
		return model.ValidateResult{}, unavailable("get key", err)
	}

	if rec.HWID != req.HWID {
		v.cfg.Logger.Warn("hwid mismatch on validation", "expected_hwid", rec.HWID, "presented_hwid", req.HWID)
		return invalid(model.ReasonHWIDMismatch), nil
	}

	now := v.clock.Now()
	if rec.ExpiredAt(now) {
		v.deleteExpired(ctx, rec.Key)
		return invalid(model.ReasonExpired), nil
	}

	writeCtx, cancel := v.cfg.writeCtx(ctx)
	err = v.store.Update(writeCtx, rec.Key, model.KeyUpdate{LastValidatedAt: now, Used: true})
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		// Deleted between the read and the update.
		return invalid(model.ReasonNotFound), nil
	}
	if err != nil {
		return model.ValidateResult{}, unavailable("update key", err)
	}

	expiresAt := rec.ExpiresAt
	return model.ValidateResult{
		Valid:         true,
		Username:      rec.Username,
		TimeRemaining: int64(expiresAt.Sub(now) / time.Second),
		ExpiresAt:     &expiresAt,
	}, nil
}

// deleteExpired removes a dead record found during validation. A failed
// delete is only logged: the verdict is already "expired" and the sweeper
// retries later.
func (v *Validator) deleteExpired(ctx context.Context, key string) {
	writeCtx, cancel := v.cfg.writeCtx(ctx)
	defer cancel()
	if err := v.store.Delete(writeCtx, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		v.cfg.Logger.Warn("failed to delete expired key", "error", err)
	}
}

func invalid(reason string) model.ValidateResult {
	return model.ValidateResult{Valid: false, Reason: reason}
}
