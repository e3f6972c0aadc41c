// ABOUTME: ExternalIdentity operations linking persons to provider records
// ABOUTME: One identity per (person, provider); the remote snapshot is the three-way merge base
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

const identityColumns = `
	i.id, i.owner_id, i.person_id, i.provider, i.external_id, i.metadata, i.remote_snapshot,
	i.last_synced_at, i.sync_status, i.created_at, i.updated_at`

var identityFields = []string{"person_id", "provider", "external_id", "metadata", "remote_snapshot", "last_synced_at", "sync_status"}

func scanIdentity(row scanner) (*models.ExternalIdentity, error) {
	var ident models.ExternalIdentity
	var metadata, snapshot string
	err := row.Scan(&ident.ID, &ident.OwnerID, &ident.PersonID, &ident.Provider, &ident.ExternalID,
		&metadata, &snapshot, &ident.LastSyncedAt, &ident.SyncStatus, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return nil, err
	}
	utc(&ident.CreatedAt, &ident.UpdatedAt)
	utcPtr(&ident.LastSyncedAt)
	if err := json.Unmarshal([]byte(metadata), &ident.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode identity metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &ident.RemoteSnapshot); err != nil {
		return nil, fmt.Errorf("failed to decode remote snapshot: %w", err)
	}
	return &ident, nil
}

func (s *Store) createIdentity(ctx context.Context, q execer, scope models.Scope, ident *models.ExternalIdentity) error {
	if ident.ID == uuid.Nil {
		ident.ID = uuid.New()
	}
	if ident.Provider == "" || ident.ExternalID == "" {
		return models.NewValidationError("required", "external_id", "provider and external id are required")
	}
	ident.OwnerID = scope.OwnerID
	if ident.SyncStatus == "" {
		ident.SyncStatus = models.IdentitySynced
	}
	now := s.Now()
	ident.CreatedAt = now
	ident.UpdatedAt = now
	ident.LastSyncedAt = tsPtr(ident.LastSyncedAt)

	metadata, err := marshalMap(ident.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode identity metadata: %w", err)
	}
	snapshot, err := marshalMap(ident.RemoteSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode remote snapshot: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO external_identities (
			id, owner_id, person_id, provider, external_id, metadata, remote_snapshot,
			last_synced_at, sync_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ident.ID.String(), scope.OwnerID.String(), ident.PersonID.String(), ident.Provider, ident.ExternalID,
		metadata, snapshot, ident.LastSyncedAt, ident.SyncStatus, ident.CreatedAt, ident.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewValidationError("duplicate_identity", "external_id", "identity already linked for this provider")
		}
		return fmt.Errorf("failed to insert external identity: %w", err)
	}
	return s.audit(ctx, q, scope, models.ActionCreate, models.ResourceIdentity, ident.ID.String(), identityFields)
}

func (s *Store) updateIdentity(ctx context.Context, q execer, scope models.Scope, ident *models.ExternalIdentity, fields []string) error {
	metadata, err := marshalMap(ident.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode identity metadata: %w", err)
	}
	snapshot, err := marshalMap(ident.RemoteSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode remote snapshot: %w", err)
	}
	ident.UpdatedAt = s.Now()
	ident.LastSyncedAt = tsPtr(ident.LastSyncedAt)

	res, err := q.ExecContext(ctx, `
		UPDATE external_identities SET person_id = ?, metadata = ?, remote_snapshot = ?, last_synced_at = ?,
			sync_status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, ident.PersonID.String(), metadata, snapshot, ident.LastSyncedAt, ident.SyncStatus, ident.UpdatedAt,
		ident.ID.String(), scope.OwnerID.String())
	if err != nil {
		return fmt.Errorf("failed to update external identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError(models.ResourceIdentity, ident.ID.String())
	}
	return s.audit(ctx, q, scope, models.ActionUpdate, models.ResourceIdentity, ident.ID.String(), fields)
}

func (s *Store) identityBy(ctx context.Context, q execer, scope models.Scope, where string, args ...any) (*models.ExternalIdentity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM external_identities i WHERE i.owner_id = ? AND `+where,
		append([]any{scope.OwnerID.String()}, args...)...)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourceIdentity, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get external identity: %w", err)
	}
	return ident, nil
}

func (s *Store) identityByExternalID(ctx context.Context, q execer, scope models.Scope, provider, externalID string) (*models.ExternalIdentity, error) {
	return s.identityBy(ctx, q, scope, `i.provider = ? AND i.external_id = ?`, provider, externalID)
}

func (s *Store) identityForPerson(ctx context.Context, q execer, scope models.Scope, personID uuid.UUID, provider string) (*models.ExternalIdentity, error) {
	return s.identityBy(ctx, q, scope, `i.person_id = ? AND i.provider = ?`, personID.String(), provider)
}

// ListIdentities returns every provider identity linked to a person.
func (s *Store) ListIdentities(ctx context.Context, scope models.Scope, personID uuid.UUID) ([]models.ExternalIdentity, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM external_identities i
		WHERE i.owner_id = ? AND i.person_id = ? ORDER BY i.provider`, scope.OwnerID.String(), personID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	idents, err := collectIdentities(rows)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceIdentity, personID.String(), identityFields); err != nil {
		return nil, err
	}
	return idents, nil
}

// PendingPushIdentities returns identities whose local values must be sent to the provider.
func (s *Store) PendingPushIdentities(ctx context.Context, scope models.Scope, provider string) ([]models.ExternalIdentity, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+identityColumns+` FROM external_identities i
		WHERE i.owner_id = ? AND i.provider = ? AND i.sync_status = ? ORDER BY i.id`,
		scope.OwnerID.String(), provider, models.IdentityPendingPush)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending pushes: %w", err)
	}
	idents, err := collectIdentities(rows)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceIdentity, "", identityFields); err != nil {
		return nil, err
	}
	return idents, nil
}

// UpdateIdentity persists identity changes outside a reconciler batch (push results).
func (s *Store) UpdateIdentity(ctx context.Context, scope models.Scope, ident *models.ExternalIdentity, fields []string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateIdentity(ctx, tx, scope, ident, fields)
	})
}

func collectIdentities(rows *sql.Rows) ([]models.ExternalIdentity, error) {
	defer rows.Close()
	var out []models.ExternalIdentity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		out = append(out, *ident)
	}
	return out, rows.Err()
}
