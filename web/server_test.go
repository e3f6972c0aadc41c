// ABOUTME: Tests for the web UI routes
// ABOUTME: Serves the handler through httptest against a temp store
package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webFixture struct {
	store *db.Store
	scope models.Scope
	rel   *models.Relationship
	h     http.Handler
}

func setupWeb(t *testing.T) webFixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	scope := models.NewScope(uuid.New(), "web")
	alex := &models.Person{Name: "Alex", IsCoreUser: true}
	jamie := &models.Person{Name: "Jamie", PersonalEmail: "jamie@example.com", City: "Denver"}
	sam := &models.Person{Name: "Sam", IsPlaceholder: true}
	for _, p := range []*models.Person{alex, jamie, sam} {
		require.NoError(t, store.CreatePerson(ctx, scope, p))
	}
	rel := &models.Relationship{FromPersonID: alex.ID, ToPersonID: jamie.ID, FromRole: "brother", ToRole: "sister"}
	require.NoError(t, store.CreateRelationship(ctx, scope, rel))
	require.NoError(t, store.CreateRelationship(ctx, scope,
		&models.Relationship{FromPersonID: jamie.ID, ToPersonID: sam.ID, FromRole: "wife", ToRole: "husband"}))

	srv, err := NewServer(store, scope, zerolog.Nop())
	require.NoError(t, err)
	return webFixture{store: store, scope: scope, rel: rel, h: srv.Handler()}
}

func (f webFixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func TestDashboardPage(t *testing.T) {
	f := setupWeb(t)
	rec := f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Dashboard</h1>")
	assert.Contains(t, body, "family")
	assert.Contains(t, body, "3 people")
	assert.Contains(t, body, "Sam is missing real contact details")
}

func TestPeoplePage(t *testing.T) {
	f := setupWeb(t)
	rec := f.do(t, http.MethodGet, "/people", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Jamie")
	assert.Contains(t, body, "Denver")
	assert.Contains(t, body, "(you)")
	assert.Contains(t, body, "needs contact details")
}

func TestGraphRoutes(t *testing.T) {
	f := setupWeb(t)

	rec := f.do(t, http.MethodGet, "/graph.dot?depth=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brother/sister")
	assert.NotContains(t, rec.Body.String(), "Sam")

	rec = f.do(t, http.MethodGet, "/graph.svg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = f.do(t, http.MethodGet, "/graph.dot?center=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation:uuid")

	rec = f.do(t, http.MethodGet, "/graph.dot?center="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogInteraction(t *testing.T) {
	f := setupWeb(t)

	rec := f.do(t, http.MethodPost, "/relationships/"+f.rel.ID.String()+"/interactions", url.Values{"kind": {"call"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Interaction logged")

	got, err := f.store.GetRelationship(context.Background(), f.scope, f.rel.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CallCount)

	rec = f.do(t, http.MethodPost, "/relationships/"+uuid.NewString()+"/interactions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/relationships/nope/interactions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	f := setupWeb(t)
	rec := f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
