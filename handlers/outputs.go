// ABOUTME: Tool output shapes and converters from domain models
// ABOUTME: IDs and timestamps are rendered as strings so output schemas stay simple
package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

type InterestOutput struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Level    int    `json:"level"`
}

type PersonOutput struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Aliases         []string         `json:"aliases,omitempty"`
	PersonalEmail   string           `json:"personal_email,omitempty"`
	WorkEmail       string           `json:"work_email,omitempty"`
	PersonalPhone   string           `json:"personal_phone,omitempty"`
	WorkPhone       string           `json:"work_phone,omitempty"`
	Company         string           `json:"company,omitempty"`
	Title           string           `json:"title,omitempty"`
	City            string           `json:"city,omitempty"`
	Country         string           `json:"country,omitempty"`
	Interests       []InterestOutput `json:"interests,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	Status          string           `json:"status"`
	IsCoreUser      bool             `json:"is_core_user,omitempty"`
	IsPlaceholder   bool             `json:"is_placeholder,omitempty"`
	NeedsCompletion bool             `json:"needs_completion,omitempty"`
}

type PathStepOutput struct {
	Role           string `json:"role"`
	RelationshipID string `json:"relationship_id"`
	PersonID       string `json:"person_id"`
}

type CandidateOutput struct {
	Person     PersonOutput     `json:"person"`
	Tier       string           `json:"tier"`
	Confidence float64          `json:"confidence"`
	Role       string           `json:"role,omitempty"`
	Path       []PathStepOutput `json:"path,omitempty"`
}

// ResultOutput carries status found, ambiguous or not_found on every lookup.
type ResultOutput struct {
	Status     string            `json:"status"`
	Query      string            `json:"query,omitempty"`
	Person     *PersonOutput     `json:"person,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Candidates []CandidateOutput `json:"candidates,omitempty"`
	FailedHop  *int              `json:"failed_hop,omitempty"`
	Message    string            `json:"message,omitempty"`
}

type RelationshipOutput struct {
	ID             string `json:"id"`
	FromPersonID   string `json:"from_person_id"`
	ToPersonID     string `json:"to_person_id"`
	Category       string `json:"category"`
	FromRole       string `json:"from_role"`
	ToRole         string `json:"to_role"`
	Strength       int    `json:"strength"`
	CallCount      int    `json:"call_count"`
	MeetCount      int    `json:"meet_count"`
	TextCount      int    `json:"text_count"`
	ReferenceCount int    `json:"reference_count"`
	LastContactAt  string `json:"last_contact_at,omitempty"`
	IsActive       bool   `json:"is_active"`
	EndedAt        string `json:"ended_at,omitempty"`
	EndedReason    string `json:"ended_reason,omitempty"`
}

type ConflictOutput struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	PersonID    string `json:"person_id"`
	Field       string `json:"field"`
	LocalValue  string `json:"local_value"`
	RemoteValue string `json:"remote_value"`
	BaseValue   string `json:"base_value,omitempty"`
	Status      string `json:"status"`
	Resolution  string `json:"resolution,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func personToOutput(p *models.Person) PersonOutput {
	out := PersonOutput{
		ID:              p.ID.String(),
		Name:            p.Name,
		Aliases:         p.Aliases,
		Company:         p.Company,
		Title:           p.Title,
		City:            p.City,
		Country:         p.Country,
		Notes:           p.Notes,
		Status:          p.Status,
		IsCoreUser:      p.IsCoreUser,
		IsPlaceholder:   p.IsPlaceholder,
		NeedsCompletion: p.NeedsCompletion(),
	}
	// placeholder-flagged contact values are not real contact methods
	if !p.IsPlaceholder && !p.PlaceholderFlags.Email {
		out.PersonalEmail = p.PersonalEmail
		out.WorkEmail = p.WorkEmail
	}
	if !p.IsPlaceholder && !p.PlaceholderFlags.Phone {
		out.PersonalPhone = p.PersonalPhone
		out.WorkPhone = p.WorkPhone
	}
	for _, i := range p.Interests {
		out.Interests = append(out.Interests, InterestOutput{Name: i.Name, Category: i.Category, Level: i.Level})
	}
	return out
}

func candidateToOutput(c models.Candidate) CandidateOutput {
	out := CandidateOutput{
		Person:     personToOutput(&c.Person),
		Tier:       c.Tier,
		Confidence: c.Confidence,
		Role:       c.Role,
	}
	for _, s := range c.Path {
		out.Path = append(out.Path, PathStepOutput{
			Role:           s.Role,
			RelationshipID: s.RelationshipID.String(),
			PersonID:       s.PersonID.String(),
		})
	}
	return out
}

func resultToOutput(r models.Result) ResultOutput {
	out := ResultOutput{Status: r.Status, Query: r.Query, FailedHop: r.FailedHop, Message: r.Message}
	for _, c := range r.Candidates {
		out.Candidates = append(out.Candidates, candidateToOutput(c))
	}
	if r.Person != nil {
		p := personToOutput(r.Person)
		out.Person = &p
		if len(r.Candidates) > 0 {
			out.Confidence = r.Candidates[0].Confidence
		}
	}
	return out
}

func relationshipToOutput(r *models.Relationship) RelationshipOutput {
	return RelationshipOutput{
		ID:             r.ID.String(),
		FromPersonID:   r.FromPersonID.String(),
		ToPersonID:     r.ToPersonID.String(),
		Category:       r.Category,
		FromRole:       r.FromRole,
		ToRole:         r.ToRole,
		Strength:       r.Strength,
		CallCount:      r.CallCount,
		MeetCount:      r.MeetCount,
		TextCount:      r.TextCount,
		ReferenceCount: r.ReferenceCount,
		LastContactAt:  formatTime(r.LastContactAt),
		IsActive:       r.IsActive,
		EndedAt:        formatTime(r.EndedAt),
		EndedReason:    r.EndedReason,
	}
}

func conflictToOutput(c *models.SyncConflict) ConflictOutput {
	return ConflictOutput{
		ID:          c.ID.String(),
		Provider:    c.Provider,
		PersonID:    c.PersonID.String(),
		Field:       c.Field,
		LocalValue:  c.LocalValue,
		RemoteValue: c.RemoteValue,
		BaseValue:   c.BaseValue,
		Status:      c.Status,
		Resolution:  c.Resolution,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, models.NewValidationError("uuid", field, field+" must be a UUID")
	}
	return id, nil
}

func parseOptionalID(field, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	return parseID(field, value)
}
