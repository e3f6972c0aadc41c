// ABOUTME: Relationship edge operations for the graph store
// ABOUTME: Edges are ended, never deleted; counters are single atomic UPDATE statements
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

// InteractionWeights is the strength bump applied per interaction kind.
var InteractionWeights = map[string]int{
	models.InteractionCall: 3,
	models.InteractionMeet: 5,
	models.InteractionText: 1,
}

// FrequencyWindows are the rolling windows reported by Frequency.
var FrequencyWindows = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

const relationshipColumns = `
	r.id, r.owner_id, r.from_person_id, r.to_person_id, r.category, r.from_role, r.to_role,
	r.call_count, r.meet_count, r.text_count,
	r.last_call_at, r.last_meet_at, r.last_text_at, r.last_contact_at,
	r.strength, r.reference_count, r.interaction_count,
	r.first_meeting_date, r.duration_months,
	r.is_active, r.ended_at, COALESCE(r.ended_reason, ''),
	r.created_at, r.updated_at`

// RelationshipFields lists the field names recorded against whole-record reads.
var RelationshipFields = []string{
	"from_person_id", "to_person_id", "category", "from_role", "to_role",
	"call_count", "meet_count", "text_count", "last_contact_at", "strength",
	"reference_count", "interaction_count", "first_meeting_date", "duration_months",
	"is_active", "ended_at",
}

func scanRelationship(row scanner) (*models.Relationship, error) {
	var r models.Relationship
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.FromPersonID, &r.ToPersonID, &r.Category, &r.FromRole, &r.ToRole,
		&r.CallCount, &r.MeetCount, &r.TextCount,
		&r.LastCallAt, &r.LastMeetAt, &r.LastTextAt, &r.LastContactAt,
		&r.Strength, &r.ReferenceCount, &r.InteractionCount,
		&r.FirstMeetingDate, &r.DurationMonths,
		&r.IsActive, &r.EndedAt, &r.EndedReason,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	utc(&r.CreatedAt, &r.UpdatedAt)
	utcPtr(&r.LastCallAt, &r.LastMeetAt, &r.LastTextAt, &r.LastContactAt, &r.FirstMeetingDate, &r.EndedAt)
	return &r, nil
}

func collectRelationships(rows *sql.Rows) ([]models.Relationship, error) {
	defer rows.Close()
	var rels []models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		rels = append(rels, *r)
	}
	return rels, rows.Err()
}

func roleNorm(role string) string {
	c, _ := models.CanonicalRole(role)
	return c
}

// CreateRelationship validates and inserts an active edge between two of the owner's persons.
func (s *Store) CreateRelationship(ctx context.Context, scope models.Scope, r *models.Relationship) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createRelationship(ctx, tx, scope, r)
	})
}

func (s *Store) createRelationship(ctx context.Context, q execer, scope models.Scope, r *models.Relationship) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.OwnerID = scope.OwnerID
	r.FromRole = strings.TrimSpace(r.FromRole)
	r.ToRole = strings.TrimSpace(r.ToRole)
	if r.Category == "" {
		r.Category = inferCategory(r.FromRole, r.ToRole)
	}
	r.IsActive = r.EndedAt == nil
	now := s.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	if err := models.ValidateRelationship(r); err != nil {
		return err
	}

	var found int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE owner_id = ? AND id IN (?, ?)`,
		scope.OwnerID.String(), r.FromPersonID.String(), r.ToPersonID.String()).Scan(&found)
	if err != nil {
		return fmt.Errorf("failed to check relationship endpoints: %w", err)
	}
	if found != 2 {
		return models.NewNotFoundError(models.ResourcePerson, "relationship endpoint")
	}

	fromNorm, toNorm := roleNorm(r.FromRole), roleNorm(r.ToRole)
	if r.IsActive {
		var dup int
		err = q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM relationships
			WHERE owner_id = ? AND is_active = 1 AND (
				(from_person_id = ? AND to_person_id = ? AND from_role_norm = ? AND to_role_norm = ?) OR
				(from_person_id = ? AND to_person_id = ? AND from_role_norm = ? AND to_role_norm = ?)
			)
		`, scope.OwnerID.String(),
			r.FromPersonID.String(), r.ToPersonID.String(), fromNorm, toNorm,
			r.ToPersonID.String(), r.FromPersonID.String(), toNorm, fromNorm).Scan(&dup)
		if err != nil {
			return fmt.Errorf("failed to check duplicate relationship: %w", err)
		}
		if dup > 0 {
			return models.NewValidationError("duplicate_relationship", "to_role", "an identical active relationship already exists")
		}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO relationships (
			id, owner_id, from_person_id, to_person_id, category, from_role, to_role, from_role_norm, to_role_norm,
			strength, first_meeting_date, duration_months, is_active, ended_at, ended_reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), scope.OwnerID.String(), r.FromPersonID.String(), r.ToPersonID.String(),
		r.Category, r.FromRole, r.ToRole, fromNorm, toNorm,
		r.Strength, tsPtr(r.FirstMeetingDate), r.DurationMonths, boolInt(r.IsActive), tsPtr(r.EndedAt), r.EndedReason,
		r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}

	fields := []string{"from_person_id", "to_person_id", "category", "from_role", "to_role", "is_active"}
	if r.Strength != 0 {
		fields = append(fields, "strength")
	}
	if r.FirstMeetingDate != nil {
		fields = append(fields, "first_meeting_date")
	}
	if r.DurationMonths != nil {
		fields = append(fields, "duration_months")
	}
	return s.audit(ctx, q, scope, models.ActionCreate, models.ResourceRelationship, r.ID.String(), fields)
}

func inferCategory(fromRole, toRole string) string {
	if c, ok := models.RoleCategory(toRole); ok {
		return c
	}
	if c, ok := models.RoleCategory(fromRole); ok {
		return c
	}
	return models.CategoryAcquaintance
}

func (s *Store) GetRelationship(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r, err := s.getRelationship(ctx, s.db, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourceRelationship, id.String(), RelationshipFields); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) getRelationship(ctx context.Context, q execer, scope models.Scope, id uuid.UUID) (*models.Relationship, error) {
	row := q.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships r WHERE r.id = ? AND r.owner_id = ?`,
		id.String(), scope.OwnerID.String())
	r, err := scanRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourceRelationship, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return r, nil
}

// UpdateRelationship changes the descriptive fields of an active edge.
// Counters and lifecycle fields are changed only through their dedicated operations.
func (s *Store) UpdateRelationship(ctx context.Context, scope models.Scope, r *models.Relationship) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getRelationship(ctx, tx, scope, r.ID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return models.NewValidationError("relationship_ended", "is_active", "an ended relationship cannot be edited")
		}

		next := *current
		next.Category = r.Category
		next.FromRole = strings.TrimSpace(r.FromRole)
		next.ToRole = strings.TrimSpace(r.ToRole)
		next.FirstMeetingDate = tsPtr(r.FirstMeetingDate)
		next.DurationMonths = r.DurationMonths
		if next.Category == "" {
			next.Category = current.Category
		}
		if err := models.ValidateRelationship(&next); err != nil {
			return err
		}

		var changed []string
		if next.Category != current.Category {
			changed = append(changed, "category")
		}
		if next.FromRole != current.FromRole {
			changed = append(changed, "from_role")
		}
		if next.ToRole != current.ToRole {
			changed = append(changed, "to_role")
		}
		if !equalTimePtr(next.FirstMeetingDate, current.FirstMeetingDate) {
			changed = append(changed, "first_meeting_date")
		}
		if !equalIntPtr(next.DurationMonths, current.DurationMonths) {
			changed = append(changed, "duration_months")
		}
		if len(changed) == 0 {
			*r = *current
			return nil
		}

		next.UpdatedAt = s.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE relationships SET category = ?, from_role = ?, to_role = ?, from_role_norm = ?, to_role_norm = ?,
				first_meeting_date = ?, duration_months = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?
		`, next.Category, next.FromRole, next.ToRole, roleNorm(next.FromRole), roleNorm(next.ToRole),
			next.FirstMeetingDate, next.DurationMonths, next.UpdatedAt, next.ID.String(), scope.OwnerID.String())
		if err != nil {
			if isUniqueViolation(err) {
				return models.NewValidationError("duplicate_relationship", "to_role", "an identical active relationship already exists")
			}
			return fmt.Errorf("failed to update relationship: %w", err)
		}
		*r = next
		return s.audit(ctx, tx, scope, models.ActionUpdate, models.ResourceRelationship, r.ID.String(), changed)
	})
}

// EndRelationship marks an edge inactive. The row and its counters are kept.
func (s *Store) EndRelationship(ctx context.Context, scope models.Scope, id uuid.UUID, reason string, at time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.Now()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.getRelationship(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return models.NewValidationError("relationship_ended", "is_active", "relationship is already ended")
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE relationships SET is_active = 0, ended_at = ?, ended_reason = ?, updated_at = ?
			WHERE id = ? AND owner_id = ?
		`, ts(at), reason, s.Now(), id.String(), scope.OwnerID.String())
		if err != nil {
			return fmt.Errorf("failed to end relationship: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionEnd, models.ResourceRelationship, id.String(),
			[]string{"is_active", "ended_at", "ended_reason"})
	})
}

// FindBetween returns every edge between a and b in either direction, ended ones included.
func (s *Store) FindBetween(ctx context.Context, scope models.Scope, a, b uuid.UUID) ([]models.Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships r
		WHERE r.owner_id = ? AND (
			(r.from_person_id = ? AND r.to_person_id = ?) OR (r.from_person_id = ? AND r.to_person_id = ?)
		)
		ORDER BY r.created_at, r.id`, scope.OwnerID.String(), a.String(), b.String(), b.String(), a.String())
	if err != nil {
		return nil, fmt.Errorf("failed to find relationships: %w", err)
	}
	rels, err := collectRelationships(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find relationships: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceRelationship, "", RelationshipFields); err != nil {
		return nil, err
	}
	return rels, nil
}

// ListForPerson returns the edges touching id, optionally including ended ones.
func (s *Store) ListForPerson(ctx context.Context, scope models.Scope, id uuid.UUID, includeEnded bool) ([]models.Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT ` + relationshipColumns + ` FROM relationships r
		WHERE r.owner_id = ? AND (r.from_person_id = ? OR r.to_person_id = ?)`
	if !includeEnded {
		query += ` AND r.is_active = 1`
	}
	query += ` ORDER BY r.created_at, r.id`

	rows, err := s.db.QueryContext(ctx, query, scope.OwnerID.String(), id.String(), id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	rels, err := collectRelationships(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceRelationship, id.String(), RelationshipFields); err != nil {
		return nil, err
	}
	return rels, nil
}

// ActiveEdges is the adjacency lookup used by traversal: all active edges
// touching any of ids, in a stable order.
func (s *Store) ActiveEdges(ctx context.Context, scope models.Scope, ids []uuid.UUID) ([]models.Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{scope.OwnerID.String()}
	for _, id := range ids {
		args = append(args, id.String())
	}
	for _, id := range ids {
		args = append(args, id.String())
	}
	in := placeholders(len(ids))
	rows, err := s.db.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships r
		WHERE r.owner_id = ? AND r.is_active = 1 AND (r.from_person_id IN (`+in+`) OR r.to_person_id IN (`+in+`))
		ORDER BY r.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load active edges: %w", err)
	}
	rels, err := collectRelationships(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load active edges: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceRelationship, "",
		[]string{"from_person_id", "to_person_id", "from_role", "to_role", "is_active"}); err != nil {
		return nil, err
	}
	return rels, nil
}

var interactionColumns = map[string][2]string{
	models.InteractionCall: {"call_count", "last_call_at"},
	models.InteractionMeet: {"meet_count", "last_meet_at"},
	models.InteractionText: {"text_count", "last_text_at"},
}

// RecordInteraction counts one call, meeting or text on an active edge and bumps
// its strength, all in one UPDATE. An event row backs the rolling windows.
func (s *Store) RecordInteraction(ctx context.Context, scope models.Scope, id uuid.UUID, kind string, at time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	cols, ok := interactionColumns[kind]
	if !ok {
		return models.NewValidationError("oneof", "kind", "interaction kind must be call, meet or text")
	}
	if at.IsZero() {
		at = s.Now()
	}
	at = ts(at)
	count, last := cols[0], cols[1]

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE relationships SET
				%[1]s = %[1]s + 1,
				interaction_count = interaction_count + 1,
				%[2]s = CASE WHEN %[2]s IS NULL OR %[2]s < ? THEN ? ELSE %[2]s END,
				last_contact_at = CASE WHEN last_contact_at IS NULL OR last_contact_at < ? THEN ? ELSE last_contact_at END,
				strength = MAX(0, MIN(100, strength + ?)),
				updated_at = ?
			WHERE id = ? AND owner_id = ? AND is_active = 1
		`, count, last), at, at, at, at, InteractionWeights[kind], s.Now(), id.String(), scope.OwnerID.String())
		if err != nil {
			return fmt.Errorf("failed to record interaction: %w", err)
		}
		if err := s.requireActiveEdge(ctx, tx, scope, id, res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO relationship_interactions (id, relationship_id, owner_id, kind, occurred_at)
			VALUES (?, ?, ?, ?, ?)
		`, uuid.New().String(), id.String(), scope.OwnerID.String(), kind, at)
		if err != nil {
			return fmt.Errorf("failed to record interaction event: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionIncrement, models.ResourceRelationship, id.String(),
			[]string{count, "interaction_count", last, "last_contact_at", "strength"})
	})
}

// RecordReference counts one conversational mention of an edge.
func (s *Store) RecordReference(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE relationships SET reference_count = reference_count + 1, updated_at = ?
			WHERE id = ? AND owner_id = ? AND is_active = 1
		`, s.Now(), id.String(), scope.OwnerID.String())
		if err != nil {
			return fmt.Errorf("failed to record reference: %w", err)
		}
		if err := s.requireActiveEdge(ctx, tx, scope, id, res); err != nil {
			return err
		}
		return s.audit(ctx, tx, scope, models.ActionIncrement, models.ResourceRelationship, id.String(), []string{"reference_count"})
	})
}

// AdjustStrength adds delta to the strength score, clamped to 0..100 in SQL.
func (s *Store) AdjustStrength(ctx context.Context, scope models.Scope, id uuid.UUID, delta int) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE relationships SET strength = MAX(0, MIN(100, strength + ?)), updated_at = ?
			WHERE id = ? AND owner_id = ? AND is_active = 1
		`, delta, s.Now(), id.String(), scope.OwnerID.String())
		if err != nil {
			return fmt.Errorf("failed to adjust strength: %w", err)
		}
		if err := s.requireActiveEdge(ctx, tx, scope, id, res); err != nil {
			return err
		}
		return s.audit(ctx, tx, scope, models.ActionIncrement, models.ResourceRelationship, id.String(), []string{"strength"})
	})
}

// requireActiveEdge turns a zero-row counter update into NotFound or relationship_ended.
func (s *Store) requireActiveEdge(ctx context.Context, q execer, scope models.Scope, id uuid.UUID, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.getRelationship(ctx, q, scope, id); err != nil {
		return err
	}
	return models.NewValidationError("relationship_ended", "is_active", "counters only change on active relationships")
}

// Frequency returns rolling-window interaction counts for one edge.
func (s *Store) Frequency(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Frequency, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.getRelationship(ctx, s.db, scope, id); err != nil {
		return nil, err
	}

	now := s.Now()
	freq := &models.Frequency{RelationshipID: id, Windows: make(map[string]int, len(FrequencyWindows))}
	for name, window := range FrequencyWindows {
		var n int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM relationship_interactions
			WHERE owner_id = ? AND relationship_id = ? AND occurred_at >= ?
		`, scope.OwnerID.String(), id.String(), now.Add(-window)).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to count interactions: %w", err)
		}
		freq.Windows[name] = n
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourceRelationship, id.String(),
		[]string{"call_count", "meet_count", "text_count"}); err != nil {
		return nil, err
	}
	return freq, nil
}

// ContactCount is one row of the most-contacted ranking.
type ContactCount struct {
	PersonID     uuid.UUID `json:"person_id"`
	Interactions int       `json:"interactions"`
}

// MostContacted ranks the people around center by total interactions on active edges.
func (s *Store) MostContacted(ctx context.Context, scope models.Scope, center uuid.UUID, limit int) ([]ContactCount, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	c := center.String()
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN r.from_person_id = ? THEN r.to_person_id ELSE r.from_person_id END AS other,
			SUM(r.interaction_count) AS total
		FROM relationships r
		JOIN persons p ON p.id = (CASE WHEN r.from_person_id = ? THEN r.to_person_id ELSE r.from_person_id END)
		WHERE r.owner_id = ? AND r.is_active = 1 AND (r.from_person_id = ? OR r.to_person_id = ?)
			AND p.status <> 'archived'
		GROUP BY other
		HAVING total > 0
		ORDER BY total DESC, other
		LIMIT ?
	`, c, c, scope.OwnerID.String(), c, c, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank contacts: %w", err)
	}
	defer rows.Close()

	var out []ContactCount
	for rows.Next() {
		var cc ContactCount
		if err := rows.Scan(&cc.PersonID, &cc.Interactions); err != nil {
			return nil, fmt.Errorf("failed to scan contact count: %w", err)
		}
		out = append(out, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to rank contacts: %w", err)
	}
	rows.Close()

	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourceRelationship, center.String(),
		[]string{"interaction_count"}); err != nil {
		return nil, err
	}
	return out, nil
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
