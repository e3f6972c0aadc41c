// ABOUTME: MCP prompt handlers for reusable relationship workflows
// ABOUTME: Provides person briefing, reconnect suggestions and conflict review prompts
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	store *db.Store
	scope models.Scope
}

func NewPromptHandlers(store *db.Store, scope models.Scope) *PromptHandlers {
	return &PromptHandlers{store: store, scope: scope}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "person-briefing":
		return h.getPersonBriefingPrompt(ctx, arguments)
	case "reconnect-suggestions":
		return h.getReconnectPrompt(ctx)
	case "conflict-review":
		return h.getConflictReviewPrompt(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getPersonBriefingPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	idStr, ok := args["person_id"]
	if !ok {
		return nil, models.NewValidationError("required", "person_id", "person_id is required")
	}
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
	others := make([]uuid.UUID, 0, len(rels))
	for i := range rels {
		others = append(others, rels[i].Other(id))
	}
	names, err := h.store.GetPersons(ctx, h.scope, others)
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString("Please brief me on this person before I talk to them:\n\n")
	promptText.WriteString(fmt.Sprintf("Name: %s\n", p.Name))
	if len(p.Aliases) > 0 {
		promptText.WriteString(fmt.Sprintf("Also known as: %s\n", strings.Join(p.Aliases, ", ")))
	}
	if p.Company != "" {
		promptText.WriteString(fmt.Sprintf("Company: %s\n", p.Company))
	}
	if p.Title != "" {
		promptText.WriteString(fmt.Sprintf("Title: %s\n", p.Title))
	}
	if p.City != "" {
		promptText.WriteString(fmt.Sprintf("City: %s\n", p.City))
	}
	if len(p.Interests) > 0 {
		promptText.WriteString("\nInterests:\n")
		for _, i := range p.Interests {
			promptText.WriteString(fmt.Sprintf("  - %s (level %d)\n", i.Name, i.Level))
		}
	}
	if len(rels) > 0 {
		promptText.WriteString(fmt.Sprintf("\nRelationships: %d\n", len(rels)))
		for i := range rels {
			rel := &rels[i]
			other := names[rel.Other(id)]
			line := fmt.Sprintf("  - %s is their %s", other.Name, rel.RoleOf(id))
			if !rel.IsActive {
				line += " (ended"
				if rel.EndedReason != "" {
					line += ": " + rel.EndedReason
				}
				line += ")"
			} else if rel.LastContactAt != nil {
				line += fmt.Sprintf(", last contact %s", rel.LastContactAt.Format("2006-01-02"))
			}
			promptText.WriteString(line + "\n")
		}
	}
	if p.Notes != "" {
		promptText.WriteString(fmt.Sprintf("\nNotes: %s\n", p.Notes))
	}
	if p.NeedsCompletion() {
		promptText.WriteString("\nThis person has no real contact details on file yet.\n")
	}

	promptText.WriteString("\nPlease provide:")
	promptText.WriteString("\n1. A short summary of who they are to me")
	promptText.WriteString("\n2. Topics worth bringing up")
	promptText.WriteString("\n3. Anything sensitive, like ended relationships, to be careful about")

	return textPrompt(fmt.Sprintf("Briefing for %s", p.Name), promptText.String()), nil
}

func (h *PromptHandlers) getReconnectPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	stats, err := viz.GenerateDashboardStats(ctx, h.store, h.scope)
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("People I have not been in touch with for %d+ days:\n\n", viz.StaleAfterDays))
	for _, s := range stats.StaleRelations {
		if s.DaysSince < 0 {
			promptText.WriteString(fmt.Sprintf("- %s, my %s (no contact logged)\n", s.Name, s.Role))
		} else {
			promptText.WriteString(fmt.Sprintf("- %s, my %s (%d days)\n", s.Name, s.Role, s.DaysSince))
		}
	}
	if len(stats.StaleRelations) == 0 {
		promptText.WriteString("Everyone has been contacted recently.\n")
	}

	promptText.WriteString("\nPlease:")
	promptText.WriteString("\n1. Prioritize who to reach out to first")
	promptText.WriteString("\n2. Suggest a personal way to reconnect with each")

	return textPrompt("Reconnect suggestions", promptText.String()), nil
}

func (h *PromptHandlers) getConflictReviewPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	conflicts, err := h.store.ListConflicts(ctx, h.scope, models.ConflictPending, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conflicts: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Pending sync conflicts: %d\n\n", len(conflicts)))
	for _, c := range conflicts {
		promptText.WriteString(fmt.Sprintf("- %s %s on person %s: local %q, remote %q, last synced %q\n",
			c.ID, c.Field, c.PersonID, c.LocalValue, c.RemoteValue, c.BaseValue))
	}

	promptText.WriteString("\nFor each conflict recommend one of keep_local, keep_remote, merge (with a value) or create_new,")
	promptText.WriteString(" then apply it with the resolve_conflict tool.")

	return textPrompt("Sync conflict review", promptText.String()), nil
}

func textPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: text},
			},
		},
	}
}
