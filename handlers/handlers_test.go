// ABOUTME: Tests for the MCP tool handlers
// ABOUTME: Drives tools through an in-memory client session against a temp store
package handlers

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/harperreed/kith/resolve"
	"github.com/harperreed/kith/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *db.Store
	scope   models.Scope
	owner   *models.Person
	session *mcp.ClientSession
}

// setupServer wires a real server to a temp store and connects a client over in-memory transports.
func setupServer(t *testing.T) *fixture {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetClock(func() time.Time { return testNow })

	ctx := context.Background()
	scope := models.NewScope(uuid.New(), "mcp")
	owner := &models.Person{Name: "Alex", IsCoreUser: true, Gender: "male"}
	require.NoError(t, store.CreatePerson(ctx, scope, owner))

	svc := query.NewService(store, query.Options{Resolve: resolve.Options{Now: func() time.Time { return testNow }}}, zerolog.Nop())
	srv := NewServer(Deps{
		Service:   svc,
		Conflicts: sync.NewConflictService(store, zerolog.Nop()),
		Scope:     scope,
		Log:       zerolog.Nop(),
	}, "test")

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &fixture{store: store, scope: scope, owner: owner, session: session}
}

// call invokes a tool, requires success and decodes its JSON output into out.
func (f *fixture) call(t *testing.T, name string, args map[string]any, out any) {
	t.Helper()
	result, err := f.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	require.False(t, result.IsError, "%s returned error: %s", name, tc.Text)
	require.NoError(t, json.Unmarshal([]byte(tc.Text), out))
}

// callError invokes a tool and returns the error text it reported.
func (f *fixture) callError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	result, err := f.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.True(t, result.IsError, "%s: expected an error result", name)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	f := setupServer(t)

	result, err := f.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"get_contact_by_role", "get_contact_by_name", "get_interests_by_role", "traverse", "search",
		"most_contacted", "add_person", "link_persons", "end_relationship", "log_interaction",
		"mention", "list_conflicts", "resolve_conflict", "network_graph",
	} {
		assert.Contains(t, names, want)
	}
}

func TestAddPersonThenLookupByRole(t *testing.T) {
	f := setupServer(t)

	var added AddPersonOutput
	f.call(t, "add_person", map[string]any{
		"name":           "Jamie",
		"personal_email": "jamie@example.com",
		"role":           "sister",
		"notes":          "loves bouldering",
	}, &added)
	require.NotNil(t, added.Relationship)
	assert.Equal(t, "sister", added.Relationship.ToRole)
	assert.Equal(t, "brother", added.Relationship.FromRole)
	assert.False(t, added.Person.IsPlaceholder)

	var res ResultOutput
	f.call(t, "get_contact_by_role", map[string]any{"role": "sis"}, &res)
	assert.Equal(t, models.ResultFound, res.Status)
	require.NotNil(t, res.Person)
	assert.Equal(t, added.Person.ID, res.Person.ID)
	assert.Greater(t, res.Confidence, 0.0)

	var missing ResultOutput
	f.call(t, "get_contact_by_role", map[string]any{"role": "mother"}, &missing)
	assert.Equal(t, models.ResultNotFound, missing.Status)
	assert.Nil(t, missing.Person)
}

func TestAddPersonWithoutContactIsPlaceholder(t *testing.T) {
	f := setupServer(t)

	var added AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Morgan"}, &added)
	assert.True(t, added.Person.IsPlaceholder)
	assert.True(t, added.Person.NeedsCompletion)
}

func TestTraverseAndLinkPersons(t *testing.T) {
	f := setupServer(t)

	var jamie, sam AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Jamie", "personal_email": "jamie@example.com", "role": "sister", "gender": "female"}, &jamie)
	f.call(t, "add_person", map[string]any{"name": "Sam", "personal_phone": "+1 555 0100"}, &sam)

	var rel RelationshipOutput
	f.call(t, "link_persons", map[string]any{
		"person_id": jamie.Person.ID,
		"other_id":  sam.Person.ID,
		"role":      "husband",
	}, &rel)
	assert.Equal(t, "husband", rel.ToRole)
	assert.Equal(t, "wife", rel.FromRole)
	assert.Equal(t, models.CategoryFamily, rel.Category)

	var res ResultOutput
	f.call(t, "traverse", map[string]any{"path": []string{"sister", "husband"}}, &res)
	assert.Equal(t, models.ResultFound, res.Status)
	require.NotNil(t, res.Person)
	assert.Equal(t, sam.Person.ID, res.Person.ID)
	require.NotEmpty(t, res.Candidates)
	assert.Len(t, res.Candidates[0].Path, 2)
}

func TestEndRelationshipAndLogInteraction(t *testing.T) {
	f := setupServer(t)

	var jamie AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Jamie", "personal_email": "jamie@example.com", "role": "friend"}, &jamie)
	relID := jamie.Relationship.ID

	var logged RelationshipOutput
	f.call(t, "log_interaction", map[string]any{"relationship_id": relID, "kind": "call"}, &logged)
	assert.Equal(t, 1, logged.CallCount)
	assert.Equal(t, testNow.Format(time.RFC3339), logged.LastContactAt)

	var ended RelationshipOutput
	f.call(t, "end_relationship", map[string]any{"relationship_id": relID, "reason": "moved away"}, &ended)
	assert.False(t, ended.IsActive)
	assert.Equal(t, "moved away", ended.EndedReason)

	text := f.callError(t, "log_interaction", map[string]any{"relationship_id": relID, "kind": "call"})
	assert.NotEmpty(t, text)
}

func TestToolErrorsCarryCodes(t *testing.T) {
	f := setupServer(t)

	text := f.callError(t, "end_relationship", map[string]any{"relationship_id": "not-a-uuid"})
	assert.True(t, strings.HasPrefix(text, "validation:uuid"), text)

	text = f.callError(t, "get_contact_by_name", map[string]any{"name": "  "})
	assert.True(t, strings.HasPrefix(text, "validation:required"), text)

	text = f.callError(t, "end_relationship", map[string]any{"relationship_id": uuid.NewString()})
	assert.True(t, strings.HasPrefix(text, "not_found"), text)
}

func TestMentionCreatesPlaceholder(t *testing.T) {
	f := setupServer(t)

	var first MentionOutput
	f.call(t, "mention", map[string]any{"name": "Taylor", "role": "cousin"}, &first)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.RelationshipID)
	require.NotNil(t, first.Result.Person)
	assert.True(t, first.Result.Person.IsPlaceholder)

	var again MentionOutput
	f.call(t, "mention", map[string]any{"name": "Taylor", "role": "cousin"}, &again)
	assert.False(t, again.Created)
	assert.Equal(t, models.ResultFound, again.Result.Status)
	assert.Equal(t, first.RelationshipID, again.RelationshipID)
}

func TestNetworkGraphTool(t *testing.T) {
	f := setupServer(t)

	var jamie AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Jamie", "personal_email": "jamie@example.com", "role": "sister"}, &jamie)

	var out NetworkGraphOutput
	f.call(t, "network_graph", map[string]any{}, &out)
	assert.Equal(t, 2, out.NodeCount)
	assert.Equal(t, 1, out.EdgeCount)
	assert.Contains(t, out.DOTSource, "brother/sister")
}

func TestListConflictsEmpty(t *testing.T) {
	f := setupServer(t)

	var out ListConflictsOutput
	f.call(t, "list_conflicts", map[string]any{}, &out)
	assert.Empty(t, out.Conflicts)

	text := f.callError(t, "resolve_conflict", map[string]any{"conflict_id": uuid.NewString(), "strategy": "keep_local"})
	assert.True(t, strings.HasPrefix(text, "not_found"), text)
}

func TestReadResources(t *testing.T) {
	f := setupServer(t)
	ctx := context.Background()

	var jamie AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Jamie", "personal_email": "jamie@example.com", "role": "sister"}, &jamie)

	res, err := f.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "kith://people/" + jamie.Person.ID})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var person personResource
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &person))
	assert.Equal(t, "Jamie", person.Person.Name)
	require.Len(t, person.Relationships, 1)

	res, err = f.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "kith://dashboard"})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "KITH NETWORK DASHBOARD")

	res, err = f.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "kith://people"})
	require.NoError(t, err)
	var people []PersonOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &people))
	assert.Len(t, people, 2)
}

func TestPersonBriefingPrompt(t *testing.T) {
	f := setupServer(t)

	var jamie AddPersonOutput
	f.call(t, "add_person", map[string]any{"name": "Jamie", "personal_email": "jamie@example.com", "role": "sister", "city": "Chicago"}, &jamie)

	res, err := f.session.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "person-briefing",
		Arguments: map[string]string{"person_id": jamie.Person.ID},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Name: Jamie")
	assert.Contains(t, text, "City: Chicago")
	assert.Contains(t, text, "Alex is their brother")
}

func TestPersonOutputHidesPlaceholderContacts(t *testing.T) {
	p := &models.Person{
		ID:               uuid.New(),
		Name:             "Riley",
		PersonalEmail:    "riley@placeholder.local",
		PersonalPhone:    "+1 555 0101",
		Status:           models.StatusActive,
		PlaceholderFlags: models.PlaceholderFlags{Email: true},
	}

	out := personToOutput(p)
	assert.Empty(t, out.PersonalEmail)
	assert.Equal(t, "+1 555 0101", out.PersonalPhone)

	p.IsPlaceholder = true
	out = personToOutput(p)
	assert.Empty(t, out.PersonalPhone)
	assert.True(t, out.IsPlaceholder)
}
