// ABOUTME: Read access to the append-only audit log
// ABOUTME: Entries are ULID-ordered; UPDATE and DELETE are rejected by triggers
package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harperreed/kith/models"
)

// ListAudit returns the owner's most recent audit entries, newest first.
// Listing the log is not itself audited.
func (s *Store) ListAudit(ctx context.Context, scope models.Scope, limit int) ([]models.AuditEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, actor, action, resource_type, COALESCE(resource_id, ''), fields, created_at
		FROM audit_log WHERE owner_id = ? ORDER BY id DESC LIMIT ?
	`, scope.OwnerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var fields string
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &fields, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		utc(&e.CreatedAt)
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode audit fields: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
