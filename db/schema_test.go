// ABOUTME: Tests for database schema creation
// ABOUTME: Uses in-memory SQLite for fast isolated tests
package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestInitSchema(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	require.NoError(t, InitSchema(db))

	tables := []string{
		"persons", "person_aliases", "person_contacts", "persons_fts", "relationships",
		"relationship_interactions", "external_identities", "sync_state", "sync_conflicts", "audit_log",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s not found", table)
	}

	indexes := []string{
		"idx_persons_one_core_user",
		"idx_relationships_active_unique",
		"idx_sync_conflicts_pending",
	}
	for _, idx := range indexes {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		assert.NoError(t, err, "index %s not found", idx)
	}

	// Idempotent
	require.NoError(t, InitSchema(db))
}
