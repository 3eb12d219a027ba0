// Package testutil provides test fixtures for the dispatch database.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"

	"github.com/okiro/relais/internal/infrastructure/migrations"
)

// NewTestDB creates a SQLite database with the real schema applied through
// the migration pipeline, so fixtures can never drift from production DDL.
// The database lives under t.TempDir() rather than in :memory: because
// database/sql pools connections and each :memory: connection would get its
// own empty database. Cleanup is registered on t.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "relais-test.db")
	db, err := sql.Open("sqlite3", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys=ON")
	require.NoError(t, err)

	require.NoError(t, migrations.RunMigrations(db))
	return db
}
