package store

// Dialect captures what differs between SQL databases for the key table:
// the database/sql driver, placeholder style, DDL and how a duplicate key or
// an already-created object is reported.
type Dialect interface {
	// Name is the configuration name of the backend (e.g. "postgres").
	Name() string
	// DriverName is the registered database/sql driver (e.g. "pgx").
	DriverName() string
	// BindType is the sqlx bind style used to rebind "?" placeholders.
	BindType() int
	// Migrations returns the idempotent DDL statements for the key table.
	Migrations() []string
	// IsUniqueViolation reports whether err is a primary/unique key violation.
	IsUniqueViolation(err error) bool
	// IsAlreadyExists reports whether a migration error means the object was
	// already created and can be skipped.
	IsAlreadyExists(err error) bool
	// MaxOpenConns caps the connection pool; 0 means no dialect-imposed cap.
	MaxOpenConns() int
}
