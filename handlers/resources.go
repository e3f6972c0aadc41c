// ABOUTME: MCP resource handlers for exposing graph data
// ABOUTME: Provides read-only access to people, conflicts and the dashboard via kith:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "kith://"

type ResourceHandlers struct {
	store *db.Store
	scope models.Scope
}

func NewResourceHandlers(store *db.Store, scope models.Scope) *ResourceHandlers {
	return &ResourceHandlers{store: store, scope: scope}
}

type personResource struct {
	Person        PersonOutput         `json:"person"`
	Relationships []RelationshipOutput `json:"relationships"`
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch parts[0] {
	case "people":
		if len(parts) == 1 || parts[1] == "" {
			return h.readPeople(ctx, uri)
		}
		return h.readPerson(ctx, uri, parts[1])
	case "conflicts":
		return h.readConflicts(ctx, uri)
	case "dashboard":
		return h.readDashboard(ctx, uri)
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readPeople(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	people, err := h.store.ListPersons(ctx, h.scope, db.ListPersonsOptions{Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch people: %w", err)
	}
	out := make([]PersonOutput, 0, len(people))
	for i := range people {
		out = append(out, personToOutput(&people[i]))
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readPerson(ctx context.Context, uri, idStr string) (*mcp.ReadResourceResult, error) {
	id, err := parseID("person_id", idStr)
	if err != nil {
		return nil, err
	}
	p, err := h.store.GetPerson(ctx, h.scope, id)
	if err != nil {
		return nil, err
	}
	rels, err := h.store.ListForPerson(ctx, h.scope, id, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}
	res := personResource{Person: personToOutput(p), Relationships: make([]RelationshipOutput, 0, len(rels))}
	for i := range rels {
		res.Relationships = append(res.Relationships, relationshipToOutput(&rels[i]))
	}
	return jsonResource(uri, res)
}

func (h *ResourceHandlers) readConflicts(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	conflicts, err := h.store.ListConflicts(ctx, h.scope, models.ConflictPending, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conflicts: %w", err)
	}
	out := make([]ConflictOutput, 0, len(conflicts))
	for i := range conflicts {
		out = append(out, conflictToOutput(&conflicts[i]))
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readDashboard(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	stats, err := viz.GenerateDashboardStats(ctx, h.store, h.scope)
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "text/plain", Text: viz.RenderDashboard(stats)},
	}}, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "application/json", Text: string(data)},
	}}, nil
}
