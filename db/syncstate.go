// ABOUTME: Database operations for per-(owner, provider) sync state and sync conflicts
// ABOUTME: Runs are claimed with one conditional UPDATE so concurrent runs for a pair decline
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

// ErrClaimDeclined means another run holds the pair, or it is paused or backing off.
var ErrClaimDeclined = errors.New("sync run not claimable")

// ClaimDeclinedError carries the state that blocked the claim.
type ClaimDeclinedError struct {
	Provider       string
	Status         string
	NextEligibleAt *time.Time
}

func (e *ClaimDeclinedError) Error() string {
	if e.NextEligibleAt != nil && e.Status == models.SyncStatusFailed {
		return fmt.Sprintf("sync for %s backing off until %s", e.Provider, e.NextEligibleAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("sync for %s not claimable (status %s)", e.Provider, e.Status)
}

func (e *ClaimDeclinedError) Is(target error) bool { return target == ErrClaimDeclined }

const syncStateColumns = `
	owner_id, provider, COALESCE(cursor, ''), status, failure_count, next_eligible_at,
	last_started_at, last_finished_at, last_stats, COALESCE(last_error_code, ''), updated_at`

func scanSyncState(row scanner) (*models.SyncState, error) {
	var st models.SyncState
	var stats string
	err := row.Scan(&st.OwnerID, &st.Provider, &st.Cursor, &st.Status, &st.FailureCount, &st.NextEligibleAt,
		&st.LastStartedAt, &st.LastFinishedAt, &stats, &st.LastErrorCode, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	utc(&st.UpdatedAt)
	utcPtr(&st.NextEligibleAt, &st.LastStartedAt, &st.LastFinishedAt)
	if err := json.Unmarshal([]byte(stats), &st.LastStats); err != nil {
		return nil, fmt.Errorf("failed to decode run stats: %w", err)
	}
	return &st, nil
}

func (s *Store) getSyncState(ctx context.Context, q execer, scope models.Scope, provider string) (*models.SyncState, error) {
	row := q.QueryRowContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state WHERE owner_id = ? AND provider = ?`,
		scope.OwnerID.String(), provider)
	st, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourceSyncState, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return st, nil
}

// GetSyncState returns the state for one pair, or NotFound if it never ran.
func (s *Store) GetSyncState(ctx context.Context, scope models.Scope, provider string) (*models.SyncState, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	st, err := s.getSyncState(ctx, s.db, scope, provider)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourceSyncState, provider,
		[]string{"cursor", "status", "failure_count"}); err != nil {
		return nil, err
	}
	return st, nil
}

// ListSyncStates returns every provider state for the owner.
func (s *Store) ListSyncStates(ctx context.Context, scope models.Scope) ([]models.SyncState, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+syncStateColumns+` FROM sync_state WHERE owner_id = ? ORDER BY provider`,
		scope.OwnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sync states: %w", err)
	}
	defer rows.Close()

	var out []models.SyncState
	for rows.Next() {
		st, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceSyncState, "",
		[]string{"status", "failure_count"}); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimRun atomically moves the pair from idle (or an expired failed backoff) to syncing.
// A syncing row older than staleAfter is treated as abandoned and may be reclaimed.
func (s *Store) ClaimRun(ctx context.Context, scope models.Scope, provider string, staleAfter time.Duration) (*models.SyncState, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	var claimed *models.SyncState
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.Now()
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO sync_state (owner_id, provider, status, updated_at) VALUES (?, ?, 'idle', ?)
		`, scope.OwnerID.String(), provider, now)
		if err != nil {
			return fmt.Errorf("failed to seed sync state: %w", err)
		}

		staleBefore := now
		if staleAfter > 0 {
			staleBefore = now.Add(-staleAfter)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_state SET status = 'syncing', last_started_at = ?, updated_at = ?
			WHERE owner_id = ? AND provider = ? AND (
				(status IN ('idle', 'failed') AND (next_eligible_at IS NULL OR next_eligible_at <= ?))
				OR (? AND status = 'syncing' AND last_started_at <= ?)
			)
		`, now, now, scope.OwnerID.String(), provider, now, staleAfter > 0, staleBefore)
		if err != nil {
			return fmt.Errorf("failed to claim sync run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to claim sync run: %w", err)
		}

		st, err := s.getSyncState(ctx, tx, scope, provider)
		if err != nil {
			return err
		}
		if n != 1 {
			return &ClaimDeclinedError{Provider: provider, Status: st.Status, NextEligibleAt: st.NextEligibleAt}
		}
		claimed = st
		return s.audit(ctx, tx, scope, models.ActionClaim, models.ResourceSyncState, provider, []string{"status", "last_started_at"})
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SaveCursor records the cursor after a batch has been fully applied.
func (s *Store) SaveCursor(ctx context.Context, scope models.Scope, provider, cursor string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE sync_state SET cursor = ?, updated_at = ? WHERE owner_id = ? AND provider = ? AND status = 'syncing'
		`, nullString(cursor), s.Now(), scope.OwnerID.String(), provider)
		if err != nil {
			return fmt.Errorf("failed to save cursor: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return models.NewValidationError("run_not_claimed", "status", "cursor can only advance during a claimed run")
		}
		return s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceSyncState, provider, []string{"cursor"})
	})
}

// CompleteRun returns the pair to idle and clears the failure streak.
func (s *Store) CompleteRun(ctx context.Context, scope models.Scope, provider string, stats models.RunStats) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.Now()
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_state SET status = 'idle', failure_count = 0, next_eligible_at = NULL,
				last_finished_at = ?, last_stats = ?, last_error_code = NULL, updated_at = ?
			WHERE owner_id = ? AND provider = ?
		`, now, string(statsJSON), now, scope.OwnerID.String(), provider)
		if err != nil {
			return fmt.Errorf("failed to complete sync run: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceSyncState, provider,
			[]string{"status", "failure_count", "next_eligible_at", "last_finished_at", "last_stats"})
	})
}

// FailRun increments the failure streak and either schedules a retry or pauses the pair.
func (s *Store) FailRun(ctx context.Context, scope models.Scope, provider string, stats models.RunStats, code string, nextEligible time.Time, pause bool) (*models.SyncState, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run stats: %w", err)
	}
	status := models.SyncStatusFailed
	var next *time.Time
	if pause {
		status = models.SyncStatusPaused
	} else {
		n := ts(nextEligible)
		next = &n
	}

	var out *models.SyncState
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.Now()
		_, err := tx.ExecContext(ctx, `
			UPDATE sync_state SET status = ?, failure_count = failure_count + 1, next_eligible_at = ?,
				last_finished_at = ?, last_stats = ?, last_error_code = ?, updated_at = ?
			WHERE owner_id = ? AND provider = ?
		`, status, next, now, string(statsJSON), code, now, scope.OwnerID.String(), provider)
		if err != nil {
			return fmt.Errorf("failed to record sync failure: %w", err)
		}
		if err := s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceSyncState, provider,
			[]string{"status", "failure_count", "next_eligible_at", "last_error_code", "last_stats"}); err != nil {
			return err
		}
		out, err = s.getSyncState(ctx, tx, scope, provider)
		return err
	})
	return out, err
}

// Resume is the operator action that returns a paused or failed pair to idle.
func (s *Store) Resume(ctx context.Context, scope models.Scope, provider string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := s.getSyncState(ctx, tx, scope, provider)
		if err != nil {
			return err
		}
		if st.Status == models.SyncStatusSyncing {
			return models.NewValidationError("run_in_progress", "status", "cannot resume while a run is in progress")
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE sync_state SET status = 'idle', failure_count = 0, next_eligible_at = NULL, updated_at = ?
			WHERE owner_id = ? AND provider = ?
		`, s.Now(), scope.OwnerID.String(), provider)
		if err != nil {
			return fmt.Errorf("failed to resume sync: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceSyncState, provider,
			[]string{"status", "failure_count", "next_eligible_at"})
	})
}

// ResetCursor drops the cursor so the next run is a full sync.
func (s *Store) ResetCursor(ctx context.Context, scope models.Scope, provider string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := s.getSyncState(ctx, tx, scope, provider)
		if err != nil {
			return err
		}
		if st.Status == models.SyncStatusSyncing {
			return models.NewValidationError("run_in_progress", "status", "cannot reset the cursor while a run is in progress")
		}
		_, err = tx.ExecContext(ctx, `UPDATE sync_state SET cursor = NULL, updated_at = ? WHERE owner_id = ? AND provider = ?`,
			s.Now(), scope.OwnerID.String(), provider)
		if err != nil {
			return fmt.Errorf("failed to reset cursor: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceSyncState, provider, []string{"cursor"})
	})
}

const conflictColumns = `
	c.id, c.owner_id, c.provider, c.person_id, c.external_id, c.field, c.local_value, c.remote_value,
	c.base_value, c.status, COALESCE(c.resolution, ''), c.created_at, c.resolved_at`

var conflictFields = []string{"field", "local_value", "remote_value", "base_value", "status"}

func scanConflict(row scanner) (*models.SyncConflict, error) {
	var c models.SyncConflict
	err := row.Scan(&c.ID, &c.OwnerID, &c.Provider, &c.PersonID, &c.ExternalID, &c.Field, &c.LocalValue,
		&c.RemoteValue, &c.BaseValue, &c.Status, &c.Resolution, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		return nil, err
	}
	utc(&c.CreatedAt)
	utcPtr(&c.ResolvedAt)
	return &c, nil
}

// upsertConflict records a pending conflict, refreshing the values of an existing
// pending conflict on the same field. The base value is kept from the first detection.
func (s *Store) upsertConflict(ctx context.Context, q execer, scope models.Scope, c *models.SyncConflict) (bool, error) {
	c.OwnerID = scope.OwnerID
	c.Status = models.ConflictPending

	row := q.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts c
		WHERE c.owner_id = ? AND c.provider = ? AND c.person_id = ? AND c.field = ? AND c.status = 'pending'`,
		scope.OwnerID.String(), c.Provider, c.PersonID.String(), c.Field)
	existing, err := scanConflict(row)
	switch {
	case err == nil:
		c.ID = existing.ID
		c.BaseValue = existing.BaseValue
		c.CreatedAt = existing.CreatedAt
		if existing.LocalValue == c.LocalValue && existing.RemoteValue == c.RemoteValue {
			return false, nil
		}
		_, err = q.ExecContext(ctx, `UPDATE sync_conflicts SET local_value = ?, remote_value = ?, external_id = ? WHERE id = ?`,
			c.LocalValue, c.RemoteValue, c.ExternalID, c.ID.String())
		if err != nil {
			return false, fmt.Errorf("failed to refresh sync conflict: %w", err)
		}
		return false, s.audit(ctx, q, scope, models.ActionUpdate, models.ResourceConflict, c.ID.String(),
			[]string{"local_value", "remote_value"})
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up sync conflict: %w", err)
	}

	c.ID = uuid.New()
	c.CreatedAt = s.Now()
	_, err = q.ExecContext(ctx, `
		INSERT INTO sync_conflicts (id, owner_id, provider, person_id, external_id, field, local_value, remote_value,
			base_value, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)
	`, c.ID.String(), scope.OwnerID.String(), c.Provider, c.PersonID.String(), c.ExternalID, c.Field,
		c.LocalValue, c.RemoteValue, c.BaseValue, c.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert sync conflict: %w", err)
	}
	return true, s.audit(ctx, q, scope, models.ActionCreate, models.ResourceConflict, c.ID.String(), conflictFields)
}

func (s *Store) getConflict(ctx context.Context, q execer, scope models.Scope, id uuid.UUID) (*models.SyncConflict, error) {
	row := q.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts c WHERE c.id = ? AND c.owner_id = ?`,
		id.String(), scope.OwnerID.String())
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourceConflict, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync conflict: %w", err)
	}
	return c, nil
}

func (s *Store) GetConflict(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.SyncConflict, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	c, err := s.getConflict(ctx, s.db, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourceConflict, id.String(), conflictFields); err != nil {
		return nil, err
	}
	return c, nil
}

// ListConflicts returns conflicts by status (pending when empty), oldest first.
func (s *Store) ListConflicts(ctx context.Context, scope models.Scope, status string, limit int) ([]models.SyncConflict, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if status == "" {
		status = models.ConflictPending
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts c
		WHERE c.owner_id = ? AND c.status = ? ORDER BY c.created_at, c.id LIMIT ?`,
		scope.OwnerID.String(), status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync conflicts: %w", err)
	}
	defer rows.Close()

	var out []models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync conflict: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceConflict, "", conflictFields); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) markConflictResolved(ctx context.Context, q execer, scope models.Scope, id uuid.UUID, resolution string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE sync_conflicts SET status = 'resolved', resolution = ?, resolved_at = ?
		WHERE id = ? AND owner_id = ? AND status = 'pending'
	`, resolution, s.Now(), id.String(), scope.OwnerID.String())
	if err != nil {
		return fmt.Errorf("failed to resolve sync conflict: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return models.NewValidationError("conflict_not_pending", "status", "conflict is already resolved")
	}
	return s.audit(ctx, q, scope, models.ActionResolve, models.ResourceConflict, id.String(), []string{"status", "resolution"})
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pendingConflictsFor lists a person's pending conflicts for one provider, by field.
func (s *Store) pendingConflictsFor(ctx context.Context, q execer, scope models.Scope, provider string, personID uuid.UUID) ([]models.SyncConflict, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts c
		WHERE c.owner_id = ? AND c.provider = ? AND c.person_id = ? AND c.status = 'pending'
		ORDER BY c.field, c.id`,
		scope.OwnerID.String(), provider, personID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending conflicts: %w", err)
	}
	defer rows.Close()

	var out []models.SyncConflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync conflict: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
