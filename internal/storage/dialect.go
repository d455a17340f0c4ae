package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	// Name is the config value selecting the dialect.
	Name() string
	// DriverName is the database/sql driver name.
	DriverName() string
	// DSN adapts a configured DSN before sql.Open.
	DSN(dsn string) string
	// Rebind rewrites ? placeholders when the driver needs another syntax.
	Rebind(query string) string
	// Configure applies pool and session settings.
	Configure(db *sql.DB) error
	// Schema returns the DDL statements, executed one by one.
	Schema() []string
	// IsUniqueViolation reports whether err is a duplicate key error.
	IsUniqueViolation(err error) bool
}

// NewDialect returns the dialect for a configured driver name.
func NewDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return sqliteDialect{}, nil
	case "postgres", "postgresql":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", name)
	}
}

var placeholderRegexp = regexp.MustCompile(`\?`)

// rebindNumbered converts ? placeholders to $1, $2, ...
func rebindNumbered(query string) string {
	n := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) DSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
}

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) Configure(db *sql.DB) error {
	// SQLite allows one writer; a single connection keeps transactions from
	// failing with SQLITE_BUSY instead of queueing.
	db.SetMaxOpenConns(1)
	return nil
}

func (sqliteDialect) Schema() []string { return portableSchema }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type postgresDialect struct{}

func (postgresDialect) Name() string               { return "postgres" }
func (postgresDialect) DriverName() string         { return "postgres" }
func (postgresDialect) DSN(dsn string) string      { return dsn }
func (postgresDialect) Rebind(query string) string { return rebindNumbered(query) }

func (postgresDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (postgresDialect) Schema() []string { return portableSchema }

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string               { return "mysql" }
func (mysqlDialect) DriverName() string         { return "mysql" }
func (mysqlDialect) DSN(dsn string) string      { return dsn }
func (mysqlDialect) Rebind(query string) string { return query }

func (mysqlDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (mysqlDialect) Schema() []string { return mysqlSchema }

func (mysqlDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
