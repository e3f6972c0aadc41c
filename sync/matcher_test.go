// ABOUTME: Tests for remote record matching
// ABOUTME: Identity links win over contact fields; ambiguity is reported, never guessed
package sync

import (
	"context"
	"testing"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMatch(t *testing.T, h *harness, rec RemoteRecord) match {
	t.Helper()
	var m match
	err := h.store.InTx(context.Background(), func(tx *db.Tx) error {
		var err error
		m, err = matchRecord(context.Background(), tx, h.scope, "fake", rec)
		return err
	})
	require.NoError(t, err)
	return m
}

func TestMatchByNormalizedEmailAndPhone(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	jamie := h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})
	robin := h.person(t, models.Person{Name: "Robin", PersonalPhone: "(555) 010-0200"})

	m := runMatch(t, h, RemoteRecord{ExternalID: "x1", Fields: map[string]string{FieldWorkEmail: " JAMIE@example.com "}})
	require.NotNil(t, m.person)
	assert.Equal(t, jamie.ID, m.person.ID)
	assert.Nil(t, m.identity)

	m = runMatch(t, h, RemoteRecord{ExternalID: "x2", Fields: map[string]string{FieldPersonalPhone: "555-010-0200"}})
	require.NotNil(t, m.person)
	assert.Equal(t, robin.ID, m.person.ID)
}

func TestMatchNoContactIsNew(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})

	m := runMatch(t, h, RemoteRecord{ExternalID: "x1", Fields: map[string]string{FieldName: "Jamie"}})
	assert.Nil(t, m.person)
	assert.False(t, m.ambiguous)
}

func TestMatchIgnoresArchived(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com", Status: models.StatusArchived})

	m := runMatch(t, h, RemoteRecord{ExternalID: "x1", Fields: map[string]string{FieldPersonalEmail: "jamie@example.com"}})
	assert.Nil(t, m.person)
}

func TestMatchPersonLinkedElsewhereIsAmbiguous(t *testing.T) {
	h := setupReconciler(t, DefaultOptions())
	ctx := context.Background()
	h.person(t, models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com"})
	_, err := h.rec.Run(ctx, h.scope, records(jamieRecord("Denver")))
	require.NoError(t, err)

	m := runMatch(t, h, RemoteRecord{ExternalID: "people/other", Fields: map[string]string{FieldPersonalEmail: "jamie@example.com"}})
	assert.True(t, m.ambiguous)

	m = runMatch(t, h, RemoteRecord{ExternalID: "people/jamie"})
	require.NotNil(t, m.identity)
	assert.Equal(t, "people/jamie", m.identity.ExternalID)
}
