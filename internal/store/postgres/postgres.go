// Package postgres provides the PostgreSQL dialect for the key store using the
// pgx database/sql driver.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

const (
	codeUniqueViolation = "23505"
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
)

// Dialect implements store.Dialect for PostgreSQL.
type Dialect struct{}

// New returns the PostgreSQL dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }
func (Dialect) BindType() int      { return sqlx.DOLLAR }
func (Dialect) MaxOpenConns() int  { return 0 }

func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS access_keys (
			token             VARCHAR(128) PRIMARY KEY,
			hwid              VARCHAR(255) NOT NULL,
			username          VARCHAR(255) NOT NULL DEFAULT '',
			player_id         VARCHAR(255) NOT NULL DEFAULT '',
			created_at        BIGINT NOT NULL,
			expires_at        BIGINT NOT NULL,
			last_validated_at BIGINT,
			used              INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_hwid_expires ON access_keys(hwid, expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_access_keys_expires ON access_keys(expires_at)`,
	}
}

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func (Dialect) IsAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeDuplicateTable || pgErr.Code == codeDuplicateObject
}
