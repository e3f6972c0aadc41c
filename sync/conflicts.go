// ABOUTME: Sync conflict resolution: a pure strategy function plus a service that applies outcomes
// ABOUTME: Strategies are keep_local, keep_remote, merge and create_new; adding one means adding a case
package sync

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
)

// Decision is the operator's choice for one conflict. Value is only used by merge.
type Decision struct {
	Strategy string `json:"strategy"`
	Value    string `json:"value,omitempty"`
}

// Outcome says what applying a decision changes.
type Outcome struct {
	Field string `json:"field"`
	// SetLocal/LocalValue describe the write to the local person.
	SetLocal   bool   `json:"set_local"`
	LocalValue string `json:"local_value,omitempty"`
	// Snapshot is the new last-synced remote value for the field.
	Snapshot string `json:"snapshot"`
	// Push marks the identity for sending local values to the provider.
	Push bool `json:"push"`
	// CreateNew splits the remote record off into a new person.
	CreateNew bool `json:"create_new"`
}

// ResolveConflict maps a conflict and a decision to an outcome without touching storage.
func ResolveConflict(c models.SyncConflict, d Decision) (Outcome, error) {
	if c.Status != "" && c.Status != models.ConflictPending {
		return Outcome{}, models.NewValidationError("conflict_not_pending", "status", "conflict is already resolved")
	}
	out := Outcome{Field: c.Field, Snapshot: c.RemoteValue}
	switch d.Strategy {
	case models.ResolveKeepLocal:
		out.Push = true
	case models.ResolveKeepRemote:
		out.SetLocal = true
		out.LocalValue = c.RemoteValue
	case models.ResolveMerge:
		v := strings.TrimSpace(d.Value)
		if v == "" {
			return Outcome{}, models.NewValidationError("merge_value_required", "value", "merge needs the merged value")
		}
		out.SetLocal = true
		out.LocalValue = v
		out.Push = v != c.RemoteValue
	case models.ResolveCreateNew:
		out.CreateNew = true
	default:
		return Outcome{}, models.NewValidationError("oneof", "strategy",
			"strategy must be one of keep_local, keep_remote, merge, create_new")
	}
	return out, nil
}

// ConflictService resolves pending conflicts against the store.
type ConflictService struct {
	store *db.Store
	log   zerolog.Logger
}

func NewConflictService(store *db.Store, log zerolog.Logger) *ConflictService {
	return &ConflictService{store: store, log: log.With().Str("component", "conflicts").Logger()}
}

// ResolutionResult reports the applied outcome. NewPerson is set for create_new.
type ResolutionResult struct {
	Conflict  models.SyncConflict `json:"conflict"`
	Outcome   Outcome             `json:"outcome"`
	NewPerson *models.Person      `json:"new_person,omitempty"`
}

// Resolve applies d to the conflict in a single transaction.
func (s *ConflictService) Resolve(ctx context.Context, scope models.Scope, id uuid.UUID, d Decision) (*ResolutionResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var result ResolutionResult
	err := s.store.InTx(ctx, func(tx *db.Tx) error {
		c, err := tx.GetConflict(ctx, scope, id)
		if err != nil {
			return err
		}
		out, err := ResolveConflict(*c, d)
		if err != nil {
			return err
		}
		ident, err := tx.IdentityByExternalID(ctx, scope, c.Provider, c.ExternalID)
		if err != nil {
			return err
		}
		person, err := tx.GetPerson(ctx, scope, c.PersonID)
		if err != nil {
			return err
		}

		if out.CreateNew {
			np, err := s.splitOff(ctx, tx, scope, c, ident, person)
			if err != nil {
				return err
			}
			result.NewPerson = np
		} else {
			if out.SetLocal {
				SetField(person, out.Field, out.LocalValue)
				if err := tx.UpdatePerson(ctx, scope, person); err != nil {
					return err
				}
			}
			if ident.RemoteSnapshot == nil {
				ident.RemoteSnapshot = map[string]string{}
			}
			ident.RemoteSnapshot[out.Field] = out.Snapshot
		}
		if err := tx.MarkConflictResolved(ctx, scope, c.ID, d.Strategy); err != nil {
			return err
		}

		pending, err := tx.PendingConflictsFor(ctx, scope, c.Provider, ident.PersonID)
		if err != nil {
			return err
		}
		switch {
		case out.CreateNew:
			ident.SyncStatus = models.IdentitySynced
		case len(pending) > 0:
			ident.SyncStatus = models.IdentityConflict
		case out.Push || ident.SyncStatus == models.IdentityPendingPush:
			ident.SyncStatus = models.IdentityPendingPush
		default:
			ident.SyncStatus = models.IdentitySynced
		}
		if err := tx.UpdateIdentity(ctx, scope, ident, []string{"person_id", "remote_snapshot", "sync_status"}); err != nil {
			return err
		}

		resolved, err := tx.GetConflict(ctx, scope, c.ID)
		if err != nil {
			return err
		}
		result.Conflict = *resolved
		result.Outcome = out
		return nil
	})
	if err != nil {
		s.log.Warn().Str("owner_id", scope.OwnerID.String()).Str("conflict_id", id.String()).
			Str("code", models.ErrorCode(err)).Msg("conflict resolution failed")
		return nil, err
	}
	s.log.Info().Str("owner_id", scope.OwnerID.String()).Str("conflict_id", id.String()).
		Str("strategy", d.Strategy).Msg("conflict resolved")
	return &result, nil
}

// splitOff creates a new person from the remote side and re-points the identity at it.
// The person's other pending conflicts for this provider are settled the same way.
func (s *ConflictService) splitOff(ctx context.Context, tx *db.Tx, scope models.Scope, c *models.SyncConflict, ident *models.ExternalIdentity, original *models.Person) (*models.Person, error) {
	remote := map[string]string{}
	for k, v := range ident.RemoteSnapshot {
		remote[k] = v
	}
	siblings, err := tx.PendingConflictsFor(ctx, scope, c.Provider, original.ID)
	if err != nil {
		return nil, err
	}
	for _, sc := range siblings {
		remote[sc.Field] = sc.RemoteValue
	}
	if remote[FieldName] == "" {
		remote[FieldName] = original.Name
	}

	np := personFromRecord(RemoteRecord{ExternalID: c.ExternalID, Fields: remote})
	if err := tx.CreatePerson(ctx, scope, np); err != nil {
		return nil, err
	}
	for _, sc := range siblings {
		if sc.ID == c.ID {
			continue
		}
		if err := tx.MarkConflictResolved(ctx, scope, sc.ID, models.ResolveCreateNew); err != nil {
			return nil, err
		}
	}
	ident.PersonID = np.ID
	ident.RemoteSnapshot = remote
	return np, nil
}
