// ABOUTME: Data models for the personal relationship graph
// ABOUTME: Defines Person, Relationship, ExternalIdentity, SyncState, SyncConflict and AuditEntry
package models

import (
	"time"

	"github.com/google/uuid"
)

// Scope is the explicit owner/actor pair threaded through every store call.
type Scope struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Actor   string    `json:"actor"`
}

// NewScope builds a scope for an owner acting as actor.
func NewScope(owner uuid.UUID, actor string) Scope {
	return Scope{OwnerID: owner, Actor: actor}
}

// Validate rejects scopes that would read or write outside a single owner.
func (s Scope) Validate() error {
	if s.OwnerID == uuid.Nil {
		return NewValidationError("owner_required", "owner_id", "an explicit owner is required")
	}
	if s.Actor == "" {
		return NewValidationError("actor_required", "actor", "an actor is required for auditing")
	}
	return nil
}

// Person status values.
const (
	StatusActive   = "active"
	StatusDeceased = "deceased"
	StatusBlocked  = "blocked"
	StatusArchived = "archived"
)

// Relationship categories.
const (
	CategoryFamily       = "family"
	CategoryFriends      = "friends"
	CategoryWork         = "work"
	CategoryAcquaintance = "acquaintance"
)

// Interaction kinds counted on a relationship.
const (
	InteractionCall = "call"
	InteractionMeet = "meet"
	InteractionText = "text"
)

type Interest struct {
	Name             string     `json:"name" validate:"required"`
	Category         string     `json:"category,omitempty"`
	Level            int        `json:"level" validate:"gte=1,lte=100"`
	MonthlyFrequency int        `json:"monthly_frequency" validate:"gte=0"`
	ExampleInstance  string     `json:"example_instance,omitempty"`
	ExampleDate      *time.Time `json:"example_date,omitempty"`
}

// PlaceholderFlags marks individual contact fields as synthetic or unverified.
type PlaceholderFlags struct {
	Email bool `json:"email,omitempty"`
	Phone bool `json:"phone,omitempty"`
}

type Person struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name" validate:"required,max=200"`
	Aliases []string  `json:"aliases,omitempty" validate:"dive,required,max=100"`

	WorkEmail      string `json:"work_email,omitempty" validate:"omitempty,email"`
	PersonalEmail  string `json:"personal_email,omitempty" validate:"omitempty,email"`
	WorkPhone      string `json:"work_phone,omitempty" validate:"omitempty,max=40"`
	PersonalPhone  string `json:"personal_phone,omitempty" validate:"omitempty,max=40"`
	SecondaryPhone string `json:"secondary_phone,omitempty" validate:"omitempty,max=40"`

	Company   string   `json:"company,omitempty"`
	Title     string   `json:"title,omitempty"`
	Expertise []string `json:"expertise,omitempty"`

	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`

	Birthday *time.Time `json:"birthday,omitempty"`
	Gender   string     `json:"gender,omitempty"`
	Pronouns string     `json:"pronouns,omitempty"`

	Interests []Interest `json:"interests,omitempty" validate:"dive"`
	Notes     string     `json:"notes,omitempty"`

	Status           string           `json:"status" validate:"oneof=active deceased blocked archived"`
	IsCoreUser       bool             `json:"is_core_user"`
	IsPlaceholder    bool             `json:"is_placeholder"`
	PlaceholderFlags PlaceholderFlags `json:"placeholder_flags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Relationship struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	FromPersonID uuid.UUID `json:"from_person_id"`
	ToPersonID   uuid.UUID `json:"to_person_id"`
	Category     string    `json:"category" validate:"oneof=family friends work acquaintance"`
	// FromRole is what the source person is to the target; ToRole is the reverse.
	FromRole string `json:"from_role" validate:"required,max=60"`
	ToRole   string `json:"to_role" validate:"required,max=60"`

	CallCount        int        `json:"call_count"`
	MeetCount        int        `json:"meet_count"`
	TextCount        int        `json:"text_count"`
	LastCallAt       *time.Time `json:"last_call_at,omitempty"`
	LastMeetAt       *time.Time `json:"last_meet_at,omitempty"`
	LastTextAt       *time.Time `json:"last_text_at,omitempty"`
	LastContactAt    *time.Time `json:"last_contact_at,omitempty"`
	Strength         int        `json:"strength" validate:"gte=0,lte=100"`
	ReferenceCount   int        `json:"reference_count"`
	InteractionCount int        `json:"interaction_count"`

	FirstMeetingDate *time.Time `json:"first_meeting_date,omitempty"`
	DurationMonths   *int       `json:"duration_months,omitempty" validate:"omitempty,gte=0"`

	IsActive    bool       `json:"is_active"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndedReason string     `json:"ended_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Other returns the person on the opposite end of the edge from id.
func (r *Relationship) Other(id uuid.UUID) uuid.UUID {
	if r.FromPersonID == id {
		return r.ToPersonID
	}
	return r.FromPersonID
}

// RoleOf returns the role the opposite end plays relative to id.
func (r *Relationship) RoleOf(id uuid.UUID) string {
	if r.FromPersonID == id {
		return r.ToRole
	}
	return r.FromRole
}

// Duration prefers the first meeting date and falls back to the recorded month count.
func (r *Relationship) Duration(now time.Time) time.Duration {
	if r.FirstMeetingDate != nil && r.FirstMeetingDate.Before(now) {
		return now.Sub(*r.FirstMeetingDate)
	}
	if r.DurationMonths != nil {
		return time.Duration(*r.DurationMonths) * 30 * 24 * time.Hour
	}
	return 0
}

// Frequency holds rolling-window interaction counts for a relationship.
type Frequency struct {
	RelationshipID uuid.UUID      `json:"relationship_id"`
	Windows        map[string]int `json:"windows"`
}

// External identity sync status values.
const (
	IdentitySynced      = "synced"
	IdentityPendingPush = "pending_push"
	IdentityPendingPull = "pending_pull"
	IdentityConflict    = "conflict"
)

type ExternalIdentity struct {
	ID             uuid.UUID         `json:"id"`
	OwnerID        uuid.UUID         `json:"owner_id"`
	PersonID       uuid.UUID         `json:"person_id"`
	Provider       string            `json:"provider"`
	ExternalID     string            `json:"external_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RemoteSnapshot map[string]string `json:"remote_snapshot,omitempty"`
	LastSyncedAt   *time.Time        `json:"last_synced_at,omitempty"`
	SyncStatus     string            `json:"sync_status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Sync state status values.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusFailed  = "failed"
	SyncStatusPaused  = "paused"
)

// RunStats summarizes one reconciler run.
type RunStats struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Conflicts int `json:"conflicts"`
	Skipped   int `json:"skipped"`
	Pushed    int `json:"pushed"`
}

type SyncState struct {
	OwnerID        uuid.UUID  `json:"owner_id"`
	Provider       string     `json:"provider"`
	Cursor         string     `json:"cursor,omitempty"`
	Status         string     `json:"status"`
	FailureCount   int        `json:"failure_count"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	LastStats      RunStats   `json:"last_stats"`
	LastErrorCode  string     `json:"last_error_code,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Conflict resolution kinds.
const (
	ResolveKeepLocal  = "keep_local"
	ResolveKeepRemote = "keep_remote"
	ResolveMerge      = "merge"
	ResolveCreateNew  = "create_new"
)

// Conflict status values.
const (
	ConflictPending  = "pending"
	ConflictResolved = "resolved"
)

type SyncConflict struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	Provider    string     `json:"provider"`
	PersonID    uuid.UUID  `json:"person_id"`
	ExternalID  string     `json:"external_id"`
	Field       string     `json:"field"`
	LocalValue  string     `json:"local_value"`
	RemoteValue string     `json:"remote_value"`
	BaseValue   string     `json:"base_value"`
	Status      string     `json:"status"`
	Resolution  string     `json:"resolution,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Audit actions.
const (
	ActionRead      = "read"
	ActionList      = "list"
	ActionSearch    = "search"
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionArchive   = "archive"
	ActionEnd       = "end"
	ActionIncrement = "increment"
	ActionClaim     = "claim"
	ActionResolve   = "resolve"
)

// Audit resource types.
const (
	ResourcePerson       = "person"
	ResourceRelationship = "relationship"
	ResourceIdentity     = "external_identity"
	ResourceSyncState    = "sync_state"
	ResourceConflict     = "sync_conflict"
)

type AuditEntry struct {
	ID           string    `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Fields       []string  `json:"fields,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
