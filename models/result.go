// ABOUTME: Typed lookup results returned to the tool layer
// ABOUTME: A result is found, ambiguous or not_found; never a silent best guess
package models

import "github.com/google/uuid"

const (
	ResultFound     = "found"
	ResultAmbiguous = "ambiguous"
	ResultNotFound  = "not_found"
)

// Match tiers in resolution order.
const (
	TierExact = "exact"
	TierAlias = "alias"
	TierFuzzy = "fuzzy"
	TierRole  = "role"
	TierPath  = "path"
	TierText  = "search"
)

type Candidate struct {
	Person     Person  `json:"person"`
	Tier       string  `json:"tier"`
	Confidence float64 `json:"confidence"`
	// Role is set when the match came from a role-labeled edge.
	Role string     `json:"role,omitempty"`
	Path []PathStep `json:"path,omitempty"`
}

// PathStep records one hop taken during traversal.
type PathStep struct {
	Role           string    `json:"role"`
	RelationshipID uuid.UUID `json:"relationship_id"`
	PersonID       uuid.UUID `json:"person_id"`
}

type Result struct {
	Status     string      `json:"status"`
	Query      string      `json:"query,omitempty"`
	Person     *Person     `json:"person,omitempty"`
	Candidates []Candidate `json:"candidates,omitempty"`
	// FailedHop is the zero-based hop index that emptied the frontier.
	FailedHop *int   `json:"failed_hop,omitempty"`
	Message   string `json:"message,omitempty"`
}

func FoundResult(query string, c Candidate, others []Candidate) Result {
	p := c.Person
	all := append([]Candidate{c}, others...)
	return Result{Status: ResultFound, Query: query, Person: &p, Candidates: all}
}

func AmbiguousResult(query string, candidates []Candidate) Result {
	return Result{Status: ResultAmbiguous, Query: query, Candidates: candidates}
}

func NotFoundResult(query, message string) Result {
	return Result{Status: ResultNotFound, Query: query, Message: message}
}

// Err converts a non-found result into the matching typed error.
func (r Result) Err() error {
	switch r.Status {
	case ResultAmbiguous:
		return &AmbiguousMatchError{Query: r.Query, Candidates: r.Candidates}
	case ResultNotFound:
		return NewNotFoundError(ResourcePerson, r.Query)
	}
	return nil
}
