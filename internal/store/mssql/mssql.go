// Package mssql provides the SQL Server dialect for the key store.
package mssql

import (
	"errors"

	"github.com/jmoiron/sqlx"
	mssqldriver "github.com/microsoft/go-mssqldb"
)

const (
	errPrimaryKeyViolation = 2627
	errUniqueIndex         = 2601
	errObjectExists        = 2714
	errIndexExists         = 1913
)

// Dialect implements store.Dialect for Microsoft SQL Server.
type Dialect struct{}

// New returns the SQL Server dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string       { return "mssql" }
func (Dialect) DriverName() string { return "sqlserver" }
func (Dialect) BindType() int      { return sqlx.AT }
func (Dialect) MaxOpenConns() int  { return 0 }

func (Dialect) Migrations() []string {
	return []string{
		`IF OBJECT_ID(N'access_keys', N'U') IS NULL
		CREATE TABLE access_keys (
			token             NVARCHAR(128) NOT NULL PRIMARY KEY,
			hwid              NVARCHAR(255) NOT NULL,
			username          NVARCHAR(255) NOT NULL DEFAULT '',
			player_id         NVARCHAR(255) NOT NULL DEFAULT '',
			created_at        BIGINT NOT NULL,
			expires_at        BIGINT NOT NULL,
			last_validated_at BIGINT NULL,
			used              INT NOT NULL DEFAULT 0
		)`,
		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_access_keys_hwid_expires')
		CREATE INDEX idx_access_keys_hwid_expires ON access_keys(hwid, expires_at)`,
		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = 'idx_access_keys_expires')
		CREATE INDEX idx_access_keys_expires ON access_keys(expires_at)`,
	}
}

func (Dialect) IsUniqueViolation(err error) bool {
	var msErr mssqldriver.Error
	if !errors.As(err, &msErr) {
		return false
	}
	return msErr.Number == errPrimaryKeyViolation || msErr.Number == errUniqueIndex
}

func (Dialect) IsAlreadyExists(err error) bool {
	var msErr mssqldriver.Error
	if !errors.As(err, &msErr) {
		return false
	}
	return msErr.Number == errObjectExists || msErr.Number == errIndexExists
}
