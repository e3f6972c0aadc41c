// ABOUTME: Tests for name and role resolution
// ABOUTME: Walks the exact, alias, fuzzy and role tiers and tie handling
package resolve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *db.Store
	scope    models.Scope
	resolver *Resolver
	core     *models.Person
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return testNow })

	f := &fixture{
		store:    store,
		scope:    models.NewScope(uuid.New(), "test"),
		resolver: New(store, Options{Now: func() time.Time { return testNow }}),
	}
	f.core = &models.Person{Name: "Alex", IsCoreUser: true}
	require.NoError(t, store.CreatePerson(context.Background(), f.scope, f.core))
	return f
}

func (f *fixture) person(t *testing.T, name, email string, aliases ...string) *models.Person {
	t.Helper()
	p := &models.Person{Name: name, PersonalEmail: email, Aliases: aliases}
	require.NoError(t, f.store.CreatePerson(context.Background(), f.scope, p))
	return p
}

func (f *fixture) link(t *testing.T, from, to *models.Person, category, fromRole, toRole string) *models.Relationship {
	t.Helper()
	r := &models.Relationship{FromPersonID: from.ID, ToPersonID: to.ID, Category: category, FromRole: fromRole, ToRole: toRole}
	require.NoError(t, f.store.CreateRelationship(context.Background(), f.scope, r))
	return r
}

func TestResolveByRole(t *testing.T) {
	f := setupFixture(t)
	jamie := f.person(t, "Jamie", "jamie@example.com")
	f.link(t, f.core, jamie, models.CategoryFamily, "brother", "sister")

	res, err := f.resolver.Resolve(context.Background(), f.scope, Query{Role: "sister"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, res.Status)
	assert.Equal(t, jamie.ID, res.Person.ID)
	assert.Equal(t, models.TierRole, res.Candidates[0].Tier)
	assert.Equal(t, "sister", res.Candidates[0].Role)

	// Generic roles match specific edges; the core user's own role does not
	generic, err := f.resolver.Resolve(context.Background(), f.scope, Query{Role: "sibling"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultFound, generic.Status)

	brother, err := f.resolver.Resolve(context.Background(), f.scope, Query{Role: "brother"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotFound, brother.Status)

	// A bare role word in the name slot still resolves by role
	byName, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "my sis"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, byName.Status)
	assert.Equal(t, jamie.ID, byName.Person.ID)
}

func TestResolveNameMissDoesNotFallBackToRole(t *testing.T) {
	f := setupFixture(t)
	bob := f.person(t, "Bob", "bob@example.com")
	f.link(t, f.core, bob, models.CategoryWork, "coworker", "coworker")

	res, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "Rachel", Role: "coworker"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotFound, res.Status)

	// a role word in the name slot is still a role reference
	res, err = f.resolver.Resolve(context.Background(), f.scope, Query{Name: "coworker", Role: "coworker"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, res.Status)
	assert.Equal(t, bob.ID, res.Person.ID)
}

func TestResolveAmbiguousNames(t *testing.T) {
	f := setupFixture(t)
	m1 := f.person(t, "Mike", "mike1@example.com")
	m2 := f.person(t, "Mike", "mike2@example.com")

	res, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "Mike"})
	require.NoError(t, err)
	require.Equal(t, models.ResultAmbiguous, res.Status)
	require.Len(t, res.Candidates, 2)
	assert.Nil(t, res.Person)
	ids := []uuid.UUID{res.Candidates[0].Person.ID, res.Candidates[1].Person.ID}
	assert.ElementsMatch(t, []uuid.UUID{m1.ID, m2.ID}, ids)
	assert.ErrorIs(t, res.Err(), models.ErrAmbiguous)

	// Idempotent: same candidates in the same order
	again, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "Mike"})
	require.NoError(t, err)
	assert.Equal(t, res, again)

	// A role hint disambiguates
	f.link(t, f.core, m2, models.CategoryWork, "coworker", "coworker")
	hinted, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "Mike", Role: "colleague"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, hinted.Status)
	assert.Equal(t, m2.ID, hinted.Person.ID)
}

func TestResolveStrengthBreaksTies(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	f.person(t, "Mike", "mike1@example.com")
	friend := f.person(t, "Mike", "mike2@example.com")
	r := f.link(t, f.core, friend, models.CategoryFriends, "friend", "friend")
	require.NoError(t, f.store.AdjustStrength(ctx, f.scope, r.ID, 80))

	res, err := f.resolver.Resolve(ctx, f.scope, Query{Name: "mike"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, res.Status)
	assert.Equal(t, friend.ID, res.Person.ID)
	require.Len(t, res.Candidates, 2, "the runner-up is still reported")
	assert.Greater(t, res.Candidates[0].Confidence, res.Candidates[1].Confidence)
}

func TestResolveAliasAndFuzzyTiers(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	jamie := f.person(t, "Jamie", "jamie@example.com", "Jay")
	f.person(t, "Robert", "robert@example.com")

	alias, err := f.resolver.Resolve(ctx, f.scope, Query{Name: "jay"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, alias.Status)
	assert.Equal(t, models.TierAlias, alias.Candidates[0].Tier)

	fuzzy, err := f.resolver.Resolve(ctx, f.scope, Query{Name: "Jamey"})
	require.NoError(t, err)
	require.Equal(t, models.ResultFound, fuzzy.Status)
	assert.Equal(t, jamie.ID, fuzzy.Person.ID)
	assert.Equal(t, models.TierFuzzy, fuzzy.Candidates[0].Tier)

	none, err := f.resolver.Resolve(ctx, f.scope, Query{Name: "Zelda"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotFound, none.Status)
	assert.ErrorIs(t, none.Err(), models.ErrNotFound)
}

func TestResolveSkipsArchived(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	jamie := f.person(t, "Jamie", "jamie@example.com")
	f.link(t, f.core, jamie, models.CategoryFamily, "brother", "sister")
	require.NoError(t, f.store.ArchivePerson(ctx, f.scope, jamie.ID))

	byName, err := f.resolver.Resolve(ctx, f.scope, Query{Name: "Jamie"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotFound, byName.Status)

	byRole, err := f.resolver.Resolve(ctx, f.scope, Query{Role: "sister"})
	require.NoError(t, err)
	assert.Equal(t, models.ResultNotFound, byRole.Status)
}

func TestResolveRequiresInput(t *testing.T) {
	f := setupFixture(t)
	_, err := f.resolver.Resolve(context.Background(), f.scope, Query{Name: "  "})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"martha", "marhta", 0.96, 0.97},
		{"dwayne", "duane", 0.84, 0.85},
		{"jamie", "jamie", 1, 1},
		{"", "", 1, 1},
		{"abc", "", 0, 0},
		{"abc", "xyz", 0, 0},
	}
	for _, tt := range tests {
		got := JaroWinkler(tt.a, tt.b)
		assert.GreaterOrEqual(t, got, tt.min, "%s/%s", tt.a, tt.b)
		assert.LessOrEqual(t, got, tt.max, "%s/%s", tt.a, tt.b)
	}
}
