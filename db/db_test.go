// ABOUTME: Tests for opening the store and schema bootstrap
// ABOUTME: Also checks that audit rows cannot be updated or deleted
package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	// Verify database file exists
	_, err = os.Stat(dbPath)
	require.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'persons_fts%'").Scan(&count)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 9)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestOpenDatabaseReinitializes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenDatabase(dbPath)
	require.NoError(t, err)
	db.Close()

	// CREATE ... IF NOT EXISTS must tolerate an existing schema
	db, err = OpenDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()
	createCoreUser(t, store, scope, "Alex")

	entries, err := store.ListAudit(ctx, scope, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	_, err = store.DB().Exec(`UPDATE audit_log SET actor = 'mallory'`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = store.DB().Exec(`DELETE FROM audit_log`)
	require.Error(t, err)
}

// setupTestStore opens a fresh store in a temp dir with a fixed clock.
func setupTestStore(t *testing.T) (*Store, models.Scope) {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	return store, models.NewScope(uuid.New(), "test")
}

func createCoreUser(t *testing.T, store *Store, scope models.Scope, name string) *models.Person {
	t.Helper()
	p := &models.Person{Name: name, IsCoreUser: true}
	require.NoError(t, store.CreatePerson(context.Background(), scope, p))
	return p
}

func createPerson(t *testing.T, store *Store, scope models.Scope, name, email string) *models.Person {
	t.Helper()
	p := &models.Person{Name: name, PersonalEmail: email}
	require.NoError(t, store.CreatePerson(context.Background(), scope, p))
	return p
}

func link(t *testing.T, store *Store, scope models.Scope, from, to *models.Person, category, fromRole, toRole string) *models.Relationship {
	t.Helper()
	r := &models.Relationship{
		FromPersonID: from.ID,
		ToPersonID:   to.ID,
		Category:     category,
		FromRole:     fromRole,
		ToRole:       toRole,
	}
	require.NoError(t, store.CreateRelationship(context.Background(), scope, r))
	return r
}
