package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolrev/internal/storage"
	"github.com/conorfennell/knolrev/internal/storage/storetest"
)

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		db, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "knolrev.db"))
		require.NoError(t, err)
		return db
	})
}

// Server-backed dialects share one database, so each subtest starts from
// empty tables.
func openServer(t *testing.T, driver, envVar string) storetest.Opener {
	dsn := os.Getenv(envVar)
	if dsn == "" {
		t.Skipf("%s not set", envVar)
	}
	return func(t *testing.T) storage.Store {
		db, err := storage.Open(context.Background(), driver, dsn)
		require.NoError(t, err)
		require.NoError(t, storage.Truncate(context.Background(), db))
		return db
	}
}

func TestPostgresStore(t *testing.T) {
	storetest.Run(t, openServer(t, "postgres", "KNOLREV_TEST_POSTGRES_DSN"))
}

func TestMySQLStore(t *testing.T) {
	storetest.Run(t, openServer(t, "mysql", "KNOLREV_TEST_MYSQL_DSN"))
}
