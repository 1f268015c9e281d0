// Package store persists key records. The engines depend only on KeyStore;
// backends (in-memory and SQL) also satisfy Backend for health checks,
// statistics and shutdown.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/keygate/keygate/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by Insert when the key already exists.
	ErrConflict = errors.New("key already exists")
)

// KeyStore is the storage contract the key engines consume.
type KeyStore interface {
	// GetByKey returns the record identified by key, or ErrNotFound.
	GetByKey(ctx context.Context, key string) (*model.KeyRecord, error)

	// GetLiveByHWID returns the most recently created record for hwid whose
	// expiry is after now, or ErrNotFound.
	GetLiveByHWID(ctx context.Context, hwid string, now time.Time) (*model.KeyRecord, error)

	// Insert persists a new record. Returns ErrConflict if the key exists.
	Insert(ctx context.Context, rec *model.KeyRecord) error

	// Update writes usage metadata for key. Returns ErrNotFound if the record
	// no longer exists.
	Update(ctx context.Context, key string, upd model.KeyUpdate) error

	// Delete removes the record identified by key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// DeleteExpired removes every record whose expiry is before now and
	// reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Backend is a KeyStore that can also be health-checked, counted and closed.
type Backend interface {
	KeyStore

	// CountLive reports the number of records whose expiry is after now.
	CountLive(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
	Close() error
	// Driver names the backend ("memory", "sqlite", "postgres", ...).
	Driver() string
}
