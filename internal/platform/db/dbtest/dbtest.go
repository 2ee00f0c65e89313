// Package dbtest opens throwaway SQLite stores for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"libris-backend/internal/platform/db"
)

// Open returns a fresh store in t.TempDir() with the schema applied.
// The handle is closed when the test ends.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := db.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "library.db"),
		BusyTimeoutMS: 1000,
	}
	conn, err := db.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.EnsureSchema(context.Background(), conn))
	return conn
}

// SeedBook inserts a book row directly and returns its id.
func SeedBook(t *testing.T, conn *sqlx.DB, title, author string, available bool) int64 {
	t.Helper()

	res, err := conn.Exec(`INSERT INTO books (title, author, available) VALUES (?, ?, ?)`, title, author, available)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SeedUser inserts a user row directly and returns its id.
func SeedUser(t *testing.T, conn *sqlx.DB, name string) int64 {
	t.Helper()

	res, err := conn.Exec(`INSERT INTO users (name) VALUES (?)`, name)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// Count returns SELECT COUNT(*) for the given table.
func Count(t *testing.T, conn *sqlx.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM `+table))
	return n
}
