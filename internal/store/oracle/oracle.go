// Package oracle provides the Oracle dialect for the key store using the
// pure-Go go-ora driver. Oracle stores empty strings as NULL, so the optional
// text columns are nullable here.
package oracle

import (
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2"
)

// Dialect implements store.Dialect for Oracle Database.
type Dialect struct{}

// New returns the Oracle dialect.
func New() Dialect { return Dialect{} }

func (Dialect) Name() string       { return "oracle" }
func (Dialect) DriverName() string { return "oracle" }
func (Dialect) BindType() int      { return sqlx.NAMED }
func (Dialect) MaxOpenConns() int  { return 0 }

func (Dialect) Migrations() []string {
	return []string{
		`CREATE TABLE access_keys (
			token             VARCHAR2(128) NOT NULL PRIMARY KEY,
			hwid              VARCHAR2(255) NOT NULL,
			username          VARCHAR2(255),
			player_id         VARCHAR2(255),
			created_at        NUMBER(19) NOT NULL,
			expires_at        NUMBER(19) NOT NULL,
			last_validated_at NUMBER(19),
			used              NUMBER(1) DEFAULT 0 NOT NULL
		)`,
		`CREATE INDEX idx_access_keys_hwid_expires ON access_keys(hwid, expires_at)`,
		`CREATE INDEX idx_access_keys_expires ON access_keys(expires_at)`,
	}
}

func (Dialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00001")
}

// ORA-00955: name is already used by an existing object.
// ORA-01408: such column list already indexed.
func (Dialect) IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ORA-00955") || strings.Contains(msg, "ORA-01408")
}
