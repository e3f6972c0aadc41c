// ABOUTME: Tests for conflict strategies and the resolution service
// ABOUTME: Conflicts are produced by a real reconciler run, then resolved per strategy
package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConflictStrategies(t *testing.T) {
	c := models.SyncConflict{Field: FieldCity, LocalValue: "Chicago", RemoteValue: "Denver", Status: models.ConflictPending}

	tests := []struct {
		name       string
		decision   Decision
		want       Outcome
		constraint string
	}{
		{"keep_local", Decision{Strategy: models.ResolveKeepLocal},
			Outcome{Field: FieldCity, Snapshot: "Denver", Push: true}, ""},
		{"keep_remote", Decision{Strategy: models.ResolveKeepRemote},
			Outcome{Field: FieldCity, SetLocal: true, LocalValue: "Denver", Snapshot: "Denver"}, ""},
		{"merge", Decision{Strategy: models.ResolveMerge, Value: " Chicago / Denver "},
			Outcome{Field: FieldCity, SetLocal: true, LocalValue: "Chicago / Denver", Snapshot: "Denver", Push: true}, ""},
		{"merge_equal_to_remote", Decision{Strategy: models.ResolveMerge, Value: "Denver"},
			Outcome{Field: FieldCity, SetLocal: true, LocalValue: "Denver", Snapshot: "Denver"}, ""},
		{"create_new", Decision{Strategy: models.ResolveCreateNew},
			Outcome{Field: FieldCity, Snapshot: "Denver", CreateNew: true}, ""},
		{"merge_without_value", Decision{Strategy: models.ResolveMerge}, Outcome{}, "merge_value_required"},
		{"unknown", Decision{Strategy: "flip_a_coin"}, Outcome{}, "oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveConflict(c, tt.decision)
			if tt.constraint != "" {
				var ve *models.ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.constraint, ve.Constraint)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveConflictRejectsResolved(t *testing.T) {
	c := models.SyncConflict{Field: FieldCity, Status: models.ConflictResolved}
	_, err := ResolveConflict(c, Decision{Strategy: models.ResolveKeepLocal})
	assert.Equal(t, "validation:conflict_not_pending", models.ErrorCode(err))
}

// conflictFixture runs one sync that leaves Jamie with a pending city conflict.
func conflictFixture(t *testing.T) (*harness, *ConflictService, *models.Person, models.SyncConflict, *fakeProvider) {
	t.Helper()
	h := setupReconciler(t, DefaultOptions())
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com", City: "Chicago"})
	p := records(jamieRecord("Denver"))
	_, err := h.rec.Run(context.Background(), h.scope, p)
	require.NoError(t, err)

	conflicts, err := h.store.ListConflicts(context.Background(), h.scope, "", 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	return h, NewConflictService(h.store, zerolog.Nop()), jamie, conflicts[0], p
}

func TestConflictServiceKeepRemote(t *testing.T) {
	h, svc, jamie, c, p := conflictFixture(t)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveKeepRemote})
	require.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, res.Conflict.Status)
	assert.Equal(t, models.ResolveKeepRemote, res.Conflict.Resolution)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Denver", got.City)

	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, models.IdentitySynced, idents[0].SyncStatus)
	assert.Equal(t, "Denver", idents[0].RemoteSnapshot[FieldCity])

	// the next run sees agreement and raises nothing
	stats, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Conflicts)
	assert.Empty(t, p.pushed)
}

func TestConflictServiceKeepLocalPushes(t *testing.T) {
	h, svc, jamie, c, p := conflictFixture(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveKeepLocal})
	require.NoError(t, err)

	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, models.IdentityPendingPush, idents[0].SyncStatus)

	stats, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Conflicts)
	assert.Equal(t, 1, stats.Pushed)
	require.Len(t, p.pushed, 1)
	assert.Equal(t, "Chicago", p.pushed[0].Fields[FieldCity])

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicago", got.City)
}

func TestConflictServiceMerge(t *testing.T) {
	h, svc, jamie, c, _ := conflictFixture(t)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveMerge, Value: "Chicago / Denver"})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Push)

	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicago / Denver", got.City)
}

func TestConflictServiceCreateNew(t *testing.T) {
	h, svc, jamie, c, p := conflictFixture(t)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveCreateNew})
	require.NoError(t, err)
	require.NotNil(t, res.NewPerson)
	assert.NotEqual(t, jamie.ID, res.NewPerson.ID)
	assert.Equal(t, "Denver", res.NewPerson.City)
	assert.Equal(t, "Jamie", res.NewPerson.Name)

	// the original keeps its local value and loses the link
	got, err := h.store.GetPerson(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicago", got.City)
	idents, err := h.store.ListIdentities(ctx, h.scope, jamie.ID)
	require.NoError(t, err)
	assert.Empty(t, idents)

	idents, err = h.store.ListIdentities(ctx, h.scope, res.NewPerson.ID)
	require.NoError(t, err)
	require.Len(t, idents, 1)
	assert.Equal(t, "people/jamie", idents[0].ExternalID)

	// reruns land on the new person without conflicts
	stats, err := h.rec.Run(ctx, h.scope, p)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Conflicts)
	assert.Equal(t, 0, stats.Created)
}

func TestConflictServiceResolveTwiceFails(t *testing.T) {
	h, svc, _, c, _ := conflictFixture(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveKeepRemote})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, h.scope, c.ID, Decision{Strategy: models.ResolveKeepLocal})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}
