// Package dbtest opens throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/mlearn/apiserver/config"
	"github.com/mlearn/apiserver/internal/db"
	"github.com/stretchr/testify/require"
)

// Open returns an in-memory SQLite database with the full schema applied.
// The database is closed when the test finishes.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()
	return open(t, ":memory:")
}

// OpenFile is like Open but backs the database with a file under t.TempDir,
// so the pool holds several real connections.
func OpenFile(t *testing.T) *sqlx.DB {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "mlearn.db"))
}

func open(t *testing.T, path string) *sqlx.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), config.DatabaseConfig{
		Driver:     db.DriverSQLite,
		SQLitePath: path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
