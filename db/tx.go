// ABOUTME: Transaction-bound store view used by the sync reconciler and conflict resolution
// ABOUTME: Every method runs against the open transaction and audits inside it
package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

func (t *Tx) GetPerson(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Person, error) {
	p, err := t.store.getPerson(ctx, t.tx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := t.store.audit(ctx, t.tx, scope, models.ActionRead, models.ResourcePerson, id.String(), PersonFields); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *Tx) CreatePerson(ctx context.Context, scope models.Scope, p *models.Person) error {
	return t.store.createPerson(ctx, t.tx, scope, p)
}

func (t *Tx) UpdatePerson(ctx context.Context, scope models.Scope, p *models.Person) error {
	return t.store.updatePerson(ctx, t.tx, scope, p)
}

func (t *Tx) FindByContact(ctx context.Context, scope models.Scope, kind, value string) ([]models.Person, error) {
	return t.store.findByContact(ctx, t.tx, scope, kind, value, true)
}

func (t *Tx) CreateRelationship(ctx context.Context, scope models.Scope, r *models.Relationship) error {
	return t.store.createRelationship(ctx, t.tx, scope, r)
}

func (t *Tx) IdentityByExternalID(ctx context.Context, scope models.Scope, provider, externalID string) (*models.ExternalIdentity, error) {
	ident, err := t.store.identityByExternalID(ctx, t.tx, scope, provider, externalID)
	if err != nil {
		return nil, err
	}
	if err := t.store.audit(ctx, t.tx, scope, models.ActionRead, models.ResourceIdentity, ident.ID.String(), identityFields); err != nil {
		return nil, err
	}
	return ident, nil
}

func (t *Tx) IdentityForPerson(ctx context.Context, scope models.Scope, personID uuid.UUID, provider string) (*models.ExternalIdentity, error) {
	ident, err := t.store.identityForPerson(ctx, t.tx, scope, personID, provider)
	if err != nil {
		return nil, err
	}
	if err := t.store.audit(ctx, t.tx, scope, models.ActionRead, models.ResourceIdentity, ident.ID.String(), identityFields); err != nil {
		return nil, err
	}
	return ident, nil
}

func (t *Tx) CreateIdentity(ctx context.Context, scope models.Scope, ident *models.ExternalIdentity) error {
	return t.store.createIdentity(ctx, t.tx, scope, ident)
}

func (t *Tx) UpdateIdentity(ctx context.Context, scope models.Scope, ident *models.ExternalIdentity, fields []string) error {
	return t.store.updateIdentity(ctx, t.tx, scope, ident, fields)
}

// UpsertConflict reports whether a new pending conflict was created.
func (t *Tx) UpsertConflict(ctx context.Context, scope models.Scope, c *models.SyncConflict) (bool, error) {
	return t.store.upsertConflict(ctx, t.tx, scope, c)
}

func (t *Tx) GetConflict(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.SyncConflict, error) {
	return t.store.getConflict(ctx, t.tx, scope, id)
}

func (t *Tx) MarkConflictResolved(ctx context.Context, scope models.Scope, id uuid.UUID, resolution string) error {
	return t.store.markConflictResolved(ctx, t.tx, scope, id, resolution)
}

func (t *Tx) PendingConflictsFor(ctx context.Context, scope models.Scope, provider string, personID uuid.UUID) ([]models.SyncConflict, error) {
	return t.store.pendingConflictsFor(ctx, t.tx, scope, provider, personID)
}
