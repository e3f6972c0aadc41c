// ABOUTME: Remote record to local person matching for sync deduplication
// ABOUTME: Matches by external identity first, then by normalized email and phone
package sync

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
)

// match is the outcome of looking up a remote record locally.
type match struct {
	person   *models.Person
	identity *models.ExternalIdentity
	// ambiguous is set when contact fields point at more than one person,
	// or at a person already linked to a different remote record.
	ambiguous bool
}

// matchRecord finds the local person for rec inside tx. Reprocessing the same
// record always lands on the same person, which keeps reruns idempotent.
func matchRecord(ctx context.Context, tx *db.Tx, scope models.Scope, provider string, rec RemoteRecord) (match, error) {
	ident, err := tx.IdentityByExternalID(ctx, scope, provider, rec.ExternalID)
	switch {
	case err == nil:
		p, err := tx.GetPerson(ctx, scope, ident.PersonID)
		if err != nil {
			return match{}, err
		}
		return match{person: p, identity: ident}, nil
	case !errors.Is(err, models.ErrNotFound):
		return match{}, err
	}

	ids, err := contactMatches(ctx, tx, scope, rec)
	if err != nil {
		return match{}, err
	}
	switch len(ids) {
	case 0:
		return match{}, nil
	case 1:
	default:
		return match{ambiguous: true}, nil
	}

	p, err := tx.GetPerson(ctx, scope, ids[0])
	if err != nil {
		return match{}, err
	}
	existing, err := tx.IdentityForPerson(ctx, scope, p.ID, provider)
	switch {
	case err == nil:
		if existing.ExternalID != rec.ExternalID {
			return match{ambiguous: true}, nil
		}
		return match{person: p, identity: existing}, nil
	case !errors.Is(err, models.ErrNotFound):
		return match{}, err
	}
	return match{person: p}, nil
}

// contactMatches returns the distinct persons sharing any email or phone with rec, in id order.
func contactMatches(ctx context.Context, tx *db.Tx, scope models.Scope, rec RemoteRecord) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	lookup := func(kind, value string) error {
		if value == "" {
			return nil
		}
		persons, err := tx.FindByContact(ctx, scope, kind, value)
		if err != nil {
			return err
		}
		for _, p := range persons {
			if p.Status == models.StatusArchived || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
		return nil
	}

	for _, f := range []string{FieldPersonalEmail, FieldWorkEmail} {
		if err := lookup(db.ContactEmail, models.NormalizeEmail(rec.Fields[f])); err != nil {
			return nil, err
		}
	}
	for _, f := range []string{FieldPersonalPhone, FieldWorkPhone} {
		if err := lookup(db.ContactPhone, models.NormalizePhone(rec.Fields[f])); err != nil {
			return nil, err
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
