// Package sqlite provides the SQLite dialect for the key store, backed by the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect implements store.Dialect for SQLite.
type Dialect struct{}

// New returns the SQLite dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite" }
func (Dialect) BindType() int      { return sqlx.QUESTION }

// MaxOpenConns is 1: SQLite serializes writers, and an in-memory database
// exists only on the connection that created it.
func (Dialect) MaxOpenConns() int { return 1 }

func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS access_keys (
			token             TEXT PRIMARY KEY,
			hwid              TEXT NOT NULL,
			username          TEXT NOT NULL DEFAULT '',
			player_id         TEXT NOT NULL DEFAULT '',
			created_at        INTEGER NOT NULL,
			expires_at        INTEGER NOT NULL,
			last_validated_at INTEGER,
			used              INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_hwid_expires ON access_keys(hwid, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_expires ON access_keys(expires_at)`,
	}
}

func (Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

func (Dialect) IsAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already exists")
}

// DSN builds a DSN for the key database inside dataDir. An empty dataDir
// yields a private in-memory database.
func DSN(dataDir string) string {
	if dataDir == "" {
		return ":memory:"
	}
	return filepath.Join(dataDir, "keygate.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
