package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolrev/internal/errs"
)

// DB is the SQL-backed Store.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

var _ Store = (*DB)(nil)

// Open connects to the database for driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d, err := NewDialect(driver)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}

	conn, err := sql.Open(d.DriverName(), d.DSN(dsn))
	if err != nil {
		return nil, errs.Unavailable("failed to open database", err)
	}
	if err := d.Configure(conn); err != nil {
		conn.Close()
		return nil, errs.Unavailable("failed to configure database", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errs.Unavailable("failed to connect to database", err)
	}

	for _, stmt := range d.Schema() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, errs.Unavailable("failed to apply schema", err)
		}
	}

	return &DB{conn: conn, dialect: d}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect returns the dialect the database was opened with.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) q(query string) string {
	return db.dialect.Rebind(query)
}

// withTx runs fn in a transaction, committing when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return errs.Unavailable("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Unavailable("failed to commit transaction", err)
	}
	return nil
}

// unavailable wraps a driver error, passing engine errors through untouched.
func unavailable(err error, format string, args ...any) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Unavailable(fmt.Sprintf(format, args...), err)
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Truncate deletes every row. Integration tests use it to reset shared databases.
func Truncate(ctx context.Context, db *DB) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"session_cards", "revision_sessions", "review_events", "flashcards"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return unavailable(err, "failed to truncate %s", table)
			}
		}
		return nil
	})
}
