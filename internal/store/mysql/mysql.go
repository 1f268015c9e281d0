// Package mysql provides the MySQL/MariaDB dialect for the key store.
package mysql

import (
	"errors"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

const (
	errDupEntry   = 1062
	errDupKeyName = 1061
	errTableExist = 1050
)

// Dialect implements store.Dialect for MySQL.
type Dialect struct{}

// New returns the MySQL dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }
func (Dialect) BindType() int      { return sqlx.QUESTION }
func (Dialect) MaxOpenConns() int  { return 0 }

// MySQL has no CREATE INDEX IF NOT EXISTS; a re-run reports error 1061 which
// IsAlreadyExists absorbs.
func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS access_keys (
			token             VARCHAR(128) NOT NULL PRIMARY KEY,
			hwid              VARCHAR(255) NOT NULL,
			username          VARCHAR(255) NOT NULL DEFAULT '',
			player_id         VARCHAR(255) NOT NULL DEFAULT '',
			created_at        BIGINT NOT NULL,
			expires_at        BIGINT NOT NULL,
			last_validated_at BIGINT NULL,
			used              TINYINT NOT NULL DEFAULT 0
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE INDEX idx_access_keys_hwid_expires ON access_keys(hwid, expires_at)`,
		`CREATE INDEX idx_access_keys_expires ON access_keys(expires_at)`,
	}
}

func (Dialect) IsUniqueViolation(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDupEntry
}

func (Dialect) IsAlreadyExists(err error) bool {
	var myErr *mysqldriver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return myErr.Number == errDupKeyName || myErr.Number == errTableExist
}
