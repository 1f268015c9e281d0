package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keygate/keygate/internal/model"
)

const keyColumns = `token, hwid, username, player_id, created_at, expires_at, last_validated_at, used`

// SQLStore is a Backend over any database/sql driver with a registered
// Dialect. Instants are stored as Unix milliseconds so every dialect compares
// them numerically.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLStore connects using the dialect's driver, applies pool settings and
// runs the key table migrations.
func NewSQLStore(d Dialect, opts Options) (*SQLStore, error) {
	db, err := sqlx.Connect(d.DriverName(), SanitizeDSN(d.Name(), opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", d.Name(), err)
	}

	maxOpen := opts.MaxOpenConns
	if limit := d.MaxOpenConns(); limit > 0 && (maxOpen == 0 || maxOpen > limit) {
		maxOpen = limit
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate key store: %w", err)
	}
	return s, nil
}

// keyRow is the flat column layout of the access_keys table.
type keyRow struct {
	Token           string
	HWID            string
	Username        sql.NullString
	PlayerID        sql.NullString
	CreatedAt       int64
	ExpiresAt       int64
	LastValidatedAt sql.NullInt64
	Used            int64
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *keyRow) scan(sc rowScanner) error {
	return sc.Scan(&r.Token, &r.HWID, &r.Username, &r.PlayerID,
		&r.CreatedAt, &r.ExpiresAt, &r.LastValidatedAt, &r.Used)
}

func (r keyRow) toModel() *model.KeyRecord {
	rec := &model.KeyRecord{
		Key:       r.Token,
		HWID:      r.HWID,
		Username:  r.Username.String,
		PlayerID:  r.PlayerID.String,
		CreatedAt: fromMillis(r.CreatedAt),
		ExpiresAt: fromMillis(r.ExpiresAt),
		Used:      r.Used != 0,
	}
	if r.LastValidatedAt.Valid {
		at := fromMillis(r.LastValidatedAt.Int64)
		rec.LastValidatedAt = &at
	}
	return rec
}

func (s *SQLStore) rebind(q string) string {
	return sqlx.Rebind(s.dialect.BindType(), q)
}

func (s *SQLStore) GetByKey(ctx context.Context, key string) (*model.KeyRecord, error) {
	q := s.rebind(`SELECT ` + keyColumns + ` FROM access_keys WHERE token = ?`)

	var row keyRow
	if err := row.scan(s.db.QueryRowxContext(ctx, q, key)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get key: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) GetLiveByHWID(ctx context.Context, hwid string, now time.Time) (*model.KeyRecord, error) {
	// At most one live row per HWID is expected, so ordering and taking the
	// first row avoids dialect-specific LIMIT syntax.
	q := s.rebind(`SELECT ` + keyColumns + ` FROM access_keys
		WHERE hwid = ? AND expires_at > ? ORDER BY created_at DESC`)

	rows, err := s.db.QueryxContext(ctx, q, hwid, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("get live key by hwid: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get live key by hwid: %w", err)
		}
		return nil, ErrNotFound
	}
	var row keyRow
	if err := row.scan(rows); err != nil {
		return nil, fmt.Errorf("scan live key: %w", err)
	}
	return row.toModel(), nil
}

func (s *SQLStore) Insert(ctx context.Context, rec *model.KeyRecord) error {
	q := s.rebind(`INSERT INTO access_keys (` + keyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	var lastValidated sql.NullInt64
	if rec.LastValidatedAt != nil {
		lastValidated = sql.NullInt64{Int64: toMillis(*rec.LastValidatedAt), Valid: true}
	}
	used := 0
	if rec.Used {
		used = 1
	}

	_, err := s.db.ExecContext(ctx, q,
		rec.Key, rec.HWID, rec.Username, rec.PlayerID,
		toMillis(rec.CreatedAt), toMillis(rec.ExpiresAt), lastValidated, used)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, key string, upd model.KeyUpdate) error {
	q := s.rebind(`UPDATE access_keys SET last_validated_at = ?, used = ? WHERE token = ?`)

	used := 0
	if upd.Used {
		used = 1
	}
	result, err := s.db.ExecContext(ctx, q, toMillis(upd.LastValidatedAt), used, key)
	if err != nil {
		return fmt.Errorf("update key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM access_keys WHERE token = ?`), key)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM access_keys WHERE expires_at < ?`), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired keys: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return n, nil
}

func (s *SQLStore) CountLive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	q := s.rebind(`SELECT COUNT(*) FROM access_keys WHERE expires_at > ?`)
	if err := s.db.QueryRowxContext(ctx, q, toMillis(now)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count live keys: %w", err)
	}
	return n, nil
}

// Ping verifies the database connection is alive.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Driver() string { return s.dialect.Name() }

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
