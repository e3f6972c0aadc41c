// ABOUTME: Sync conflict MCP tool handlers
// ABOUTME: Implements list_conflicts and resolve_conflict tools
package handlers

import (
	"context"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ConflictHandlers struct {
	store     *db.Store
	conflicts *sync.ConflictService
	scope     models.Scope
}

func NewConflictHandlers(store *db.Store, conflicts *sync.ConflictService, scope models.Scope) *ConflictHandlers {
	return &ConflictHandlers{store: store, conflicts: conflicts, scope: scope}
}

type ListConflictsInput struct {
	Status string `json:"status,omitempty" jsonschema:"pending (default) or resolved"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of conflicts (default 50)"`
}

type ListConflictsOutput struct {
	Conflicts []ConflictOutput `json:"conflicts"`
}

func (h *ConflictHandlers) ListConflicts(ctx context.Context, _ *mcp.CallToolRequest, input ListConflictsInput) (*mcp.CallToolResult, ListConflictsOutput, error) {
	limit := input.Limit
	if limit == 0 {
		limit = 50
	}
	conflicts, err := h.store.ListConflicts(ctx, h.scope, input.Status, limit)
	if err != nil {
		return nil, ListConflictsOutput{}, err
	}
	out := ListConflictsOutput{Conflicts: make([]ConflictOutput, 0, len(conflicts))}
	for i := range conflicts {
		out.Conflicts = append(out.Conflicts, conflictToOutput(&conflicts[i]))
	}
	return nil, out, nil
}

type ResolveConflictInput struct {
	ConflictID string `json:"conflict_id" jsonschema:"Conflict to resolve"`
	Strategy   string `json:"strategy" jsonschema:"keep_local, keep_remote, merge or create_new"`
	Value      string `json:"value,omitempty" jsonschema:"Merged value, required for merge"`
}

type ResolveConflictOutput struct {
	Conflict  ConflictOutput `json:"conflict"`
	Push      bool           `json:"push"`
	NewPerson *PersonOutput  `json:"new_person,omitempty"`
}

func (h *ConflictHandlers) ResolveConflict(ctx context.Context, _ *mcp.CallToolRequest, input ResolveConflictInput) (*mcp.CallToolResult, ResolveConflictOutput, error) {
	id, err := parseID("conflict_id", input.ConflictID)
	if err != nil {
		return nil, ResolveConflictOutput{}, err
	}
	res, err := h.conflicts.Resolve(ctx, h.scope, id, sync.Decision{Strategy: input.Strategy, Value: input.Value})
	if err != nil {
		return nil, ResolveConflictOutput{}, err
	}
	out := ResolveConflictOutput{Conflict: conflictToOutput(&res.Conflict), Push: res.Outcome.Push}
	if res.NewPerson != nil {
		p := personToOutput(res.NewPerson)
		out.NewPerson = &p
	}
	return nil, out, nil
}
