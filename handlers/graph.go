// ABOUTME: Graph lookup MCP tool handlers
// ABOUTME: Implements role, name, interest, traversal, search, most-contacted and mention tools
package handlers

import (
	"context"
	"strings"

	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type GraphHandlers struct {
	svc   *query.Service
	scope models.Scope
}

func NewGraphHandlers(svc *query.Service, scope models.Scope) *GraphHandlers {
	return &GraphHandlers{svc: svc, scope: scope}
}

type RoleInput struct {
	Role string `json:"role" jsonschema:"Relationship role relative to the owner, e.g. sister, boss, best friend"`
}

func (h *GraphHandlers) GetContactByRole(ctx context.Context, _ *mcp.CallToolRequest, input RoleInput) (*mcp.CallToolResult, ResultOutput, error) {
	if strings.TrimSpace(input.Role) == "" {
		return nil, ResultOutput{}, models.NewValidationError("required", "role", "role is required")
	}
	res, err := h.svc.GetContactByRole(ctx, h.scope, input.Role)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	return nil, resultToOutput(res), nil
}

type NameInput struct {
	Name     string `json:"name" jsonschema:"Person name or nickname"`
	Role     string `json:"role,omitempty" jsonschema:"Optional role hint used to break ties"`
	Category string `json:"category,omitempty" jsonschema:"Optional category hint: family, friends, work, acquaintance"`
}

func (h *GraphHandlers) GetContactByName(ctx context.Context, _ *mcp.CallToolRequest, input NameInput) (*mcp.CallToolResult, ResultOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ResultOutput{}, models.NewValidationError("required", "name", "name is required")
	}
	res, err := h.svc.GetContactByName(ctx, h.scope, input.Name, input.Role, input.Category)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	return nil, resultToOutput(res), nil
}

type InterestsOutput struct {
	Result    ResultOutput     `json:"result"`
	Interests []InterestOutput `json:"interests"`
}

func (h *GraphHandlers) GetInterestsByRole(ctx context.Context, _ *mcp.CallToolRequest, input RoleInput) (*mcp.CallToolResult, InterestsOutput, error) {
	if strings.TrimSpace(input.Role) == "" {
		return nil, InterestsOutput{}, models.NewValidationError("required", "role", "role is required")
	}
	res, err := h.svc.GetInterestsByRole(ctx, h.scope, input.Role)
	if err != nil {
		return nil, InterestsOutput{}, err
	}
	out := InterestsOutput{Result: resultToOutput(res.Result), Interests: []InterestOutput{}}
	for _, i := range res.Interests {
		out.Interests = append(out.Interests, InterestOutput{Name: i.Name, Category: i.Category, Level: i.Level})
	}
	return nil, out, nil
}

type TraverseInput struct {
	Path    []string `json:"path" jsonschema:"Ordered role labels, e.g. [\"sister\", \"husband\"]"`
	StartID string   `json:"start_id,omitempty" jsonschema:"Person to start from (default: the owner)"`
}

func (h *GraphHandlers) Traverse(ctx context.Context, _ *mcp.CallToolRequest, input TraverseInput) (*mcp.CallToolResult, ResultOutput, error) {
	start, err := parseOptionalID("start_id", input.StartID)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	res, err := h.svc.Traverse(ctx, h.scope, start, input.Path)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	return nil, resultToOutput(res), nil
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"Free text matched against names, notes, company and interests"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 10)"`
}

func (h *GraphHandlers) Search(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, ResultOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, ResultOutput{}, models.NewValidationError("required", "query", "query is required")
	}
	limit := input.Limit
	if limit == 0 {
		limit = 10
	}
	res, err := h.svc.Search(ctx, h.scope, input.Query, limit)
	if err != nil {
		return nil, ResultOutput{}, err
	}
	return nil, resultToOutput(res), nil
}

type MostContactedInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of people (default 5)"`
}

type ContactSummaryOutput struct {
	Person       PersonOutput `json:"person"`
	Interactions int          `json:"interactions"`
}

type MostContactedOutput struct {
	People []ContactSummaryOutput `json:"people"`
}

func (h *GraphHandlers) MostContacted(ctx context.Context, _ *mcp.CallToolRequest, input MostContactedInput) (*mcp.CallToolResult, MostContactedOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 5
	}
	rows, err := h.svc.MostContacted(ctx, h.scope, limit)
	if err != nil {
		return nil, MostContactedOutput{}, err
	}
	out := MostContactedOutput{People: make([]ContactSummaryOutput, 0, len(rows))}
	for _, r := range rows {
		out.People = append(out.People, ContactSummaryOutput{Person: personToOutput(&r.Person), Interactions: r.Interactions})
	}
	return nil, out, nil
}

type MentionInput struct {
	Name     string `json:"name,omitempty" jsonschema:"Name as mentioned in conversation"`
	Role     string `json:"role,omitempty" jsonschema:"Role as mentioned, e.g. my sister"`
	Category string `json:"category,omitempty" jsonschema:"Optional category hint"`
}

type MentionOutput struct {
	Result         ResultOutput `json:"result"`
	Created        bool         `json:"created"`
	RelationshipID string       `json:"relationship_id,omitempty"`
}

func (h *GraphHandlers) Mention(ctx context.Context, _ *mcp.CallToolRequest, input MentionInput) (*mcp.CallToolResult, MentionOutput, error) {
	if strings.TrimSpace(input.Name) == "" && strings.TrimSpace(input.Role) == "" {
		return nil, MentionOutput{}, models.NewValidationError("required", "name", "name or role is required")
	}
	res, err := h.svc.Mention(ctx, h.scope, query.MentionInput{Name: input.Name, Role: input.Role, Category: input.Category})
	if err != nil {
		return nil, MentionOutput{}, err
	}
	out := MentionOutput{Result: resultToOutput(res.Result), Created: res.Created}
	if res.RelationshipID != nil {
		out.RelationshipID = res.RelationshipID.String()
	}
	return nil, out, nil
}
