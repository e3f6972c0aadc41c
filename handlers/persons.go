// ABOUTME: Person and relationship write MCP tool handlers
// ABOUTME: Implements add_person, link_persons, end_relationship and log_interaction tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PersonHandlers struct {
	svc   *query.Service
	store *db.Store
	scope models.Scope
}

func NewPersonHandlers(svc *query.Service, scope models.Scope) *PersonHandlers {
	return &PersonHandlers{svc: svc, store: svc.Store(), scope: scope}
}

type AddPersonInput struct {
	Name          string   `json:"name" jsonschema:"Person name (required)"`
	Aliases       []string `json:"aliases,omitempty" jsonschema:"Nicknames and alternate names"`
	PersonalEmail string   `json:"personal_email,omitempty" jsonschema:"Personal email address"`
	WorkEmail     string   `json:"work_email,omitempty" jsonschema:"Work email address"`
	PersonalPhone string   `json:"personal_phone,omitempty" jsonschema:"Personal phone number"`
	WorkPhone     string   `json:"work_phone,omitempty" jsonschema:"Work phone number"`
	Company       string   `json:"company,omitempty" jsonschema:"Employer"`
	Title         string   `json:"title,omitempty" jsonschema:"Job title"`
	City          string   `json:"city,omitempty" jsonschema:"City"`
	Gender        string   `json:"gender,omitempty" jsonschema:"Gender, used to derive gendered inverse roles"`
	Notes         string   `json:"notes,omitempty" jsonschema:"Free-form notes"`
	Role          string   `json:"role,omitempty" jsonschema:"What this person is to the owner, e.g. sister; links them to the owner"`
	Category      string   `json:"category,omitempty" jsonschema:"Relationship category when role is set"`
}

type AddPersonOutput struct {
	Person       PersonOutput        `json:"person"`
	Relationship *RelationshipOutput `json:"relationship,omitempty"`
}

func (h *PersonHandlers) AddPerson(ctx context.Context, _ *mcp.CallToolRequest, input AddPersonInput) (*mcp.CallToolResult, AddPersonOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, AddPersonOutput{}, models.NewValidationError("required", "name", "name is required")
	}
	p := models.Person{
		Name:          strings.TrimSpace(input.Name),
		Aliases:       input.Aliases,
		PersonalEmail: input.PersonalEmail,
		WorkEmail:     input.WorkEmail,
		PersonalPhone: input.PersonalPhone,
		WorkPhone:     input.WorkPhone,
		Company:       input.Company,
		Title:         input.Title,
		City:          input.City,
		Gender:        input.Gender,
		Notes:         input.Notes,
	}
	if !p.HasRealContact() {
		p.IsPlaceholder = true
	}

	created, rel, err := h.svc.AddPerson(ctx, h.scope, query.AddPersonInput{Person: p, Role: input.Role, Category: input.Category})
	if err != nil {
		return nil, AddPersonOutput{}, fmt.Errorf("failed to add person: %w", err)
	}
	out := AddPersonOutput{Person: personToOutput(created)}
	if rel != nil {
		r := relationshipToOutput(rel)
		out.Relationship = &r
	}
	return nil, out, nil
}

type LinkPersonsInput struct {
	PersonID   string `json:"person_id" jsonschema:"Person the relationship starts from"`
	OtherID    string `json:"other_id" jsonschema:"Person on the other end"`
	Role       string `json:"role" jsonschema:"What the other person is to the first, e.g. husband"`
	PersonRole string `json:"person_role,omitempty" jsonschema:"What the first person is to the other (derived when omitted)"`
	Category   string `json:"category,omitempty" jsonschema:"family, friends, work or acquaintance (inferred when omitted)"`
	Strength   int    `json:"strength,omitempty" jsonschema:"Initial strength 0-100"`
}

func (h *PersonHandlers) LinkPersons(ctx context.Context, _ *mcp.CallToolRequest, input LinkPersonsInput) (*mcp.CallToolResult, RelationshipOutput, error) {
	from, err := parseID("person_id", input.PersonID)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	to, err := parseID("other_id", input.OtherID)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	if strings.TrimSpace(input.Role) == "" {
		return nil, RelationshipOutput{}, models.NewValidationError("required", "role", "role is required")
	}

	role, _ := models.CanonicalRole(input.Role)
	personRole := input.PersonRole
	if personRole == "" {
		p, err := h.store.GetPerson(ctx, h.scope, from)
		if err != nil {
			return nil, RelationshipOutput{}, err
		}
		personRole = models.InverseRole(role, p.Gender)
	} else {
		personRole, _ = models.CanonicalRole(personRole)
	}

	rel := &models.Relationship{
		FromPersonID: from,
		ToPersonID:   to,
		Category:     input.Category,
		FromRole:     personRole,
		ToRole:       role,
		Strength:     input.Strength,
	}
	if err := h.store.CreateRelationship(ctx, h.scope, rel); err != nil {
		return nil, RelationshipOutput{}, fmt.Errorf("failed to link persons: %w", err)
	}
	return nil, relationshipToOutput(rel), nil
}

type EndRelationshipInput struct {
	RelationshipID string `json:"relationship_id" jsonschema:"Relationship to end"`
	Reason         string `json:"reason,omitempty" jsonschema:"Why it ended, e.g. divorced"`
}

func (h *PersonHandlers) EndRelationship(ctx context.Context, _ *mcp.CallToolRequest, input EndRelationshipInput) (*mcp.CallToolResult, RelationshipOutput, error) {
	id, err := parseID("relationship_id", input.RelationshipID)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	if err := h.store.EndRelationship(ctx, h.scope, id, input.Reason, time.Time{}); err != nil {
		return nil, RelationshipOutput{}, fmt.Errorf("failed to end relationship: %w", err)
	}
	rel, err := h.store.GetRelationship(ctx, h.scope, id)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	return nil, relationshipToOutput(rel), nil
}

type LogInteractionInput struct {
	RelationshipID string `json:"relationship_id" jsonschema:"Relationship the interaction belongs to"`
	Kind           string `json:"kind" jsonschema:"call, meet or text"`
	At             string `json:"at,omitempty" jsonschema:"When it happened, RFC3339 (default now)"`
}

func (h *PersonHandlers) LogInteraction(ctx context.Context, _ *mcp.CallToolRequest, input LogInteractionInput) (*mcp.CallToolResult, RelationshipOutput, error) {
	id, err := parseID("relationship_id", input.RelationshipID)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	var at time.Time
	if input.At != "" {
		at, err = time.Parse(time.RFC3339, input.At)
		if err != nil {
			return nil, RelationshipOutput{}, models.NewValidationError("rfc3339", "at", "at must be an RFC3339 timestamp")
		}
	}
	if err := h.store.RecordInteraction(ctx, h.scope, id, strings.ToLower(input.Kind), at); err != nil {
		return nil, RelationshipOutput{}, fmt.Errorf("failed to log interaction: %w", err)
	}
	rel, err := h.store.GetRelationship(ctx, h.scope, id)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	return nil, relationshipToOutput(rel), nil
}
