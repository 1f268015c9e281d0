package service

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultTTL             = time.Hour
	DefaultStoreTimeout    = 5 * time.Second
	DefaultCleanupInterval = 10 * time.Minute
)

// Config is shared by the engines; each reads the fields it needs.
type Config struct {
	TTL             time.Duration // key lifetime
	RequirePlayerID bool          // reject issuance without player_id
	StoreTimeout    time.Duration // bound on every store and limiter call
	CleanupInterval time.Duration // sweeper period; 0 disables the loop
	Logger          *slog.Logger
	Observer        Observer
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	return c
}

// readCtx bounds a store read by the configured timeout.
func (c Config) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.StoreTimeout)
}

// writeCtx detaches a write from caller cancellation so a started mutation
// completes, but still bounds it by the configured timeout.
func (c Config) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.StoreTimeout)
}

// newRequestValidator reports fields by their JSON names.
func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkRequest runs struct validation and sorts failures into missing and
// invalid fields.
func checkRequest(v *validator.Validate, req interface{}) *ValidationError {
	verr := &ValidationError{}
	err := v.Struct(req)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Invalid = append(verr.Invalid, err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			verr.Missing = append(verr.Missing, fe.Field())
		} else {
			verr.Invalid = append(verr.Invalid, fe.Field())
		}
	}
	return verr
}
