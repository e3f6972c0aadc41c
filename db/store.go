// ABOUTME: Owner-scoped graph store wrapping the SQLite handle
// ABOUTME: Every call takes an explicit Scope; mutations run in one transaction with their audit entry
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/oklog/ulid/v2"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the graph store. It holds no per-owner state; isolation comes
// from the Scope passed to each method.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Open opens (or creates) the database at path and returns a Store.
func Open(path string) (*Store, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// SetClock replaces the time source. Used by tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Now returns the store clock in the stored precision.
func (s *Store) Now() time.Time { return ts(s.now()) }

// ts normalizes a timestamp to UTC seconds so stored values compare lexically.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// utc converts timestamps scanned back from SQLite to UTC. The driver may
// return them in the local zone.
func utc(times ...*time.Time) {
	for _, t := range times {
		if !t.IsZero() {
			*t = t.UTC()
		}
	}
}

func utcPtr(times ...**time.Time) {
	for _, t := range times {
		if *t != nil {
			v := (*t).UTC()
			*t = &v
		}
	}
}

func tsPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := ts(*t)
	return &v
}

// withTx runs fn in a single transaction. A returned error rolls everything back.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InTx exposes a transaction to collaborators (the reconciler) that must group
// several store writes atomically. The callback receives a Tx-bound view.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&Tx{tx: tx, store: s})
	})
}

// Tx is a transaction-bound view of the store.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// audit appends one immutable entry. Field names only, never values.
func (s *Store) audit(ctx context.Context, q execer, scope models.Scope, action, resourceType, resourceID string, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode audit fields: %w", err)
	}
	now := s.Now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_log (id, owner_id, actor, action, resource_type, resource_id, fields, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, scope.OwnerID.String(), scope.Actor, action, resourceType, resourceID, string(fieldsJSON), now)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// auditRead records a read after it completed. Reads run outside a transaction.
func (s *Store) auditRead(ctx context.Context, scope models.Scope, action, resourceType, resourceID string, fields []string) error {
	return s.audit(ctx, s.db, scope, action, resourceType, resourceID, fields)
}

func marshalList[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
