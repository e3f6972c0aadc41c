// ABOUTME: Tests for person storage, validation and lookup
// ABOUTME: Covers core user uniqueness, owner isolation, archiving and audit diffs
package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireConstraint(t *testing.T, err error, constraint string) {
	t.Helper()
	require.Error(t, err)
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, constraint, ve.Constraint)
}

func TestCreatePersonAndGet(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	p := &models.Person{
		Name:          "Jamie Rivera",
		Aliases:       []string{"Jay", "jay"},
		PersonalEmail: "jamie@example.com",
		Company:       "Acme",
		Title:         "Engineer",
		Expertise:     []string{"golang"},
		Interests:     []models.Interest{{Name: "climbing", Level: 80, MonthlyFrequency: 4}},
	}
	require.NoError(t, store.CreatePerson(ctx, scope, p))
	assert.NotEqual(t, uuid.Nil, p.ID)

	got, err := store.GetPerson(ctx, scope, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jamie Rivera", got.Name)
	assert.Equal(t, []string{"jay"}, got.Aliases)
	assert.Equal(t, models.StatusActive, got.Status)
	require.Len(t, got.Interests, 1)
	assert.Equal(t, 80, got.Interests[0].Level)
	assert.True(t, got.HasRealContact())
}

func TestCoreUserIsUniquePerOwner(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	createCoreUser(t, store, scope, "Alex")
	err := store.CreatePerson(ctx, scope, &models.Person{Name: "Alex Again", IsCoreUser: true})
	requireConstraint(t, err, "duplicate_core_user")

	// Another owner gets their own core user
	other := models.NewScope(uuid.New(), "test")
	createCoreUser(t, store, other, "Blair")

	// Promoting an existing person is rejected too
	jamie := createPerson(t, store, scope, "Jamie", "jamie@example.com")
	jamie.IsCoreUser = true
	requireConstraint(t, store.UpdatePerson(ctx, scope, jamie), "duplicate_core_user")
}

func TestCreatePersonValidation(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		person     models.Person
		constraint string
	}{
		{"missing contact", models.Person{Name: "Nobody"}, "missing_contact_method"},
		{"title without company", models.Person{Name: "T", WorkEmail: "t@example.com", Title: "CTO"}, "title_requires_company"},
		{"missing name", models.Person{PersonalEmail: "x@example.com"}, "required"},
		{"bad email", models.Person{Name: "E", PersonalEmail: "not-an-email"}, "email"},
		{"placeholder core user", models.Person{Name: "P", IsCoreUser: true, IsPlaceholder: true}, "core_user_placeholder"},
		{"sentinel email only", models.Person{Name: "S", PersonalEmail: "noemail@placeholder.local"}, "missing_contact_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.person
			requireConstraint(t, store.CreatePerson(ctx, scope, &p), tt.constraint)
		})
	}

	persons, err := store.ListPersons(ctx, scope, ListPersonsOptions{})
	require.NoError(t, err)
	assert.Empty(t, persons, "failed writes must leave the store unchanged")
}

func TestPlaceholderNeverHasRealContact(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	p := &models.Person{
		Name:             "Sister",
		PersonalEmail:    "sister@example.com",
		IsPlaceholder:    true,
		PlaceholderFlags: models.PlaceholderFlags{Email: true},
	}
	require.NoError(t, store.CreatePerson(ctx, scope, p))

	got, err := store.GetPerson(ctx, scope, p.ID)
	require.NoError(t, err)
	assert.False(t, got.HasRealContact())
	assert.True(t, got.NeedsCompletion())

	matches, err := store.FindByContact(ctx, scope, ContactEmail, "sister@example.com")
	require.NoError(t, err)
	assert.Empty(t, matches, "placeholder values are never indexed for matching")
}

func TestOwnerIsolation(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()
	jamie := createPerson(t, store, scope, "Jamie", "jamie@example.com")

	other := models.NewScope(uuid.New(), "test")
	_, err := store.GetPerson(ctx, other, jamie.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	found, err := store.FindByName(ctx, other, "Jamie")
	require.NoError(t, err)
	assert.Empty(t, found)

	hits, err := store.SearchPersons(ctx, other, "jamie", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = store.GetPerson(ctx, models.Scope{Actor: "test"}, jamie.ID)
	requireConstraint(t, err, "owner_required")
}

func TestUpdatePersonAuditsChangedFields(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()
	jamie := createPerson(t, store, scope, "Jamie", "jamie@example.com")

	jamie.City = "Chicago"
	require.NoError(t, store.UpdatePerson(ctx, scope, jamie))

	entries, err := store.ListAudit(ctx, scope, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionUpdate, entries[0].Action)
	assert.Equal(t, []string{"city"}, entries[0].Fields)
	assert.Equal(t, jamie.ID.String(), entries[0].ResourceID)

	got, err := store.GetPerson(ctx, scope, jamie.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicago", got.City)
}

func TestArchivePerson(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()
	core := createCoreUser(t, store, scope, "Alex")
	jamie := createPerson(t, store, scope, "Jamie", "jamie@example.com")

	require.NoError(t, store.ArchivePerson(ctx, scope, jamie.ID))
	requireConstraint(t, store.ArchivePerson(ctx, scope, core.ID), "archive_core_user")

	got, err := store.GetPerson(ctx, scope, jamie.ID)
	require.NoError(t, err, "archived persons are kept")
	assert.Equal(t, models.StatusArchived, got.Status)

	byName, err := store.FindByName(ctx, scope, "jamie")
	require.NoError(t, err)
	assert.Empty(t, byName)

	all, err := store.ListPersons(ctx, scope, ListPersonsOptions{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFindByNameAliasAndContact(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	p := &models.Person{Name: "Robert Smith", Aliases: []string{"Bobby"}, WorkPhone: "+1 (312) 555-0100"}
	require.NoError(t, store.CreatePerson(ctx, scope, p))

	byName, err := store.FindByName(ctx, scope, "  robert   SMITH ")
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byAlias, err := store.FindByAlias(ctx, scope, "BOBBY")
	require.NoError(t, err)
	require.Len(t, byAlias, 1)
	assert.Equal(t, p.ID, byAlias[0].ID)

	byPhone, err := store.FindByContact(ctx, scope, ContactPhone, "312.555.0100")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)

	added, err := store.AddAlias(ctx, scope, p.ID, "Rob")
	require.NoError(t, err)
	assert.Equal(t, []string{"bobby", "rob"}, added.Aliases)

	byNewAlias, err := store.FindByAlias(ctx, scope, "rob")
	require.NoError(t, err)
	assert.Len(t, byNewAlias, 1)
}

func TestSearchPersonsRanksByField(t *testing.T) {
	store, scope := setupTestStore(t)
	ctx := context.Background()

	byName := &models.Person{Name: "Rust Cohle", PersonalEmail: "rust@example.com"}
	byExpertise := &models.Person{Name: "Dana Lee", PersonalEmail: "dana@example.com", Expertise: []string{"rust", "wasm"}}
	unrelated := &models.Person{Name: "Sam Park", PersonalEmail: "sam@example.com", Company: "Bakery"}
	for _, p := range []*models.Person{byName, byExpertise, unrelated} {
		require.NoError(t, store.CreatePerson(ctx, scope, p))
	}

	hits, err := store.SearchPersons(ctx, scope, "rust", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, byName.ID, hits[0].Person.ID, "name matches outrank expertise matches")
	assert.Equal(t, byExpertise.ID, hits[1].Person.ID)

	prefix, err := store.SearchPersons(ctx, scope, "bak", 10)
	require.NoError(t, err)
	require.Len(t, prefix, 1)
	assert.Equal(t, unrelated.ID, prefix[0].Person.ID)

	// Index follows updates
	unrelated.Company = "Brewery"
	require.NoError(t, store.UpdatePerson(ctx, scope, unrelated))
	stale, err := store.SearchPersons(ctx, scope, "bakery", 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	_, err = store.SearchPersons(ctx, scope, `  "" `, 10)
	requireConstraint(t, err, "empty_query")
}
