// ABOUTME: Query service behind the agent tool surface
// ABOUTME: Composes resolution, traversal and search into found / ambiguous / not_found results
package query

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/resolve"
	"github.com/harperreed/kith/traverse"
	"github.com/rs/zerolog"
)

const (
	defaultSearchLimit        = 10
	defaultMostContacted      = 5
	defaultPlaceholderMinimum = 0.8
)

type Options struct {
	Resolve               resolve.Options
	MaxDepth              int
	PlaceholderConfidence float64
}

type Service struct {
	store    *db.Store
	resolver *resolve.Resolver
	engine   *traverse.Engine
	log      zerolog.Logger

	placeholderConfidence float64
}

func NewService(store *db.Store, opts Options, log zerolog.Logger) *Service {
	if opts.PlaceholderConfidence <= 0 {
		opts.PlaceholderConfidence = defaultPlaceholderMinimum
	}
	return &Service{
		store:                 store,
		resolver:              resolve.New(store, opts.Resolve),
		engine:                traverse.New(store, opts.MaxDepth),
		log:                   log.With().Str("component", "query").Logger(),
		placeholderConfidence: opts.PlaceholderConfidence,
	}
}

func (s *Service) Store() *db.Store { return s.store }

func (s *Service) GetContactByRole(ctx context.Context, scope models.Scope, role string) (models.Result, error) {
	return s.resolve(ctx, scope, resolve.Query{Role: role}, "get_contact_by_role")
}

// GetContactByName resolves a name, optionally narrowed by a role or category hint.
func (s *Service) GetContactByName(ctx context.Context, scope models.Scope, name, roleHint, categoryHint string) (models.Result, error) {
	return s.resolve(ctx, scope, resolve.Query{Name: name, Role: roleHint, Category: categoryHint}, "get_contact_by_name")
}

func (s *Service) resolve(ctx context.Context, scope models.Scope, q resolve.Query, op string) (models.Result, error) {
	res, err := s.resolver.Resolve(ctx, scope, q)
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Str("owner_id", scope.OwnerID.String()).
			Str("code", models.ErrorCode(err)).Msg("resolution failed")
		return models.Result{}, err
	}
	s.logResult(op, scope, res)
	return res, nil
}

// InterestsResult pairs a role resolution with the resolved person's interests.
type InterestsResult struct {
	models.Result
	Interests []models.Interest `json:"interests,omitempty"`
}

func (s *Service) GetInterestsByRole(ctx context.Context, scope models.Scope, role string) (InterestsResult, error) {
	res, err := s.resolve(ctx, scope, resolve.Query{Role: role}, "get_interests_by_role")
	if err != nil {
		return InterestsResult{}, err
	}
	out := InterestsResult{Result: res}
	if res.Status == models.ResultFound {
		out.Interests = res.Person.Interests
	}
	return out, nil
}

// Traverse walks path from start, or from the core user when start is uuid.Nil.
func (s *Service) Traverse(ctx context.Context, scope models.Scope, start uuid.UUID, path []string) (models.Result, error) {
	res, err := s.engine.Traverse(ctx, scope, start, path)
	if err != nil {
		s.log.Warn().Err(err).Str("owner_id", scope.OwnerID.String()).Int("hops", len(path)).
			Str("code", models.ErrorCode(err)).Msg("traversal failed")
		return models.Result{}, err
	}
	ev := s.log.Debug().Str("op", "traverse").Str("owner_id", scope.OwnerID.String()).
		Str("status", res.Status).Int("hops", len(path)).Int("candidates", len(res.Candidates))
	if res.FailedHop != nil {
		ev = ev.Int("failed_hop", *res.FailedHop)
	}
	ev.Msg("traversal complete")
	return res, nil
}

// Search runs full-text search. One hit is found; several are returned ranked as ambiguous.
func (s *Service) Search(ctx context.Context, scope models.Scope, text string, limit int) (models.Result, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	hits, err := s.store.SearchPersons(ctx, scope, text, limit)
	if err != nil {
		return models.Result{}, err
	}

	var res models.Result
	switch len(hits) {
	case 0:
		res = models.NotFoundResult(text, "no person matches the search")
	case 1:
		res = models.FoundResult(text, searchCandidate(hits[0], hits[0].Score), nil)
	default:
		candidates := make([]models.Candidate, len(hits))
		for i, h := range hits {
			candidates[i] = searchCandidate(h, hits[0].Score)
		}
		res = models.AmbiguousResult(text, candidates)
	}
	s.logResult("search", scope, res)
	return res, nil
}

// searchCandidate scales bm25 (lower is better, usually negative) relative to the best hit.
func searchCandidate(h db.SearchHit, best float64) models.Candidate {
	conf := 1.0
	if best != 0 {
		conf = h.Score / best
	}
	conf = math.Max(0, math.Min(1, conf))
	return models.Candidate{Person: h.Person, Tier: models.TierText, Confidence: math.Round(conf*10000) / 10000}
}

// ContactSummary is one entry of the most-contacted ranking.
type ContactSummary struct {
	Person       models.Person `json:"person"`
	Interactions int           `json:"interactions"`
}

// MostContacted ranks the core user's active neighbors by total interactions.
func (s *Service) MostContacted(ctx context.Context, scope models.Scope, limit int) ([]ContactSummary, error) {
	if limit <= 0 {
		limit = defaultMostContacted
	}
	core, err := s.store.GetCoreUser(ctx, scope)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.MostContacted(ctx, scope, core.ID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(counts))
	for i, c := range counts {
		ids[i] = c.PersonID
	}
	persons, err := s.store.GetPersons(ctx, scope, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ContactSummary, 0, len(counts))
	for _, c := range counts {
		p, ok := persons[c.PersonID]
		if !ok {
			continue
		}
		out = append(out, ContactSummary{Person: p, Interactions: c.Interactions})
	}
	s.log.Debug().Str("op", "most_contacted").Str("owner_id", scope.OwnerID.String()).Int("count", len(out)).Msg("ranked contacts")
	return out, nil
}

// MentionInput is a conversational reference to someone, such as "my sister Jamie".
type MentionInput struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Category string `json:"category,omitempty"`
}

type MentionResult struct {
	models.Result
	Created        bool       `json:"created"`
	RelationshipID *uuid.UUID `json:"relationship_id,omitempty"`
}

// Mention resolves a reference and records it. A confident reference to an
// unknown person creates a placeholder linked to the core user.
func (s *Service) Mention(ctx context.Context, scope models.Scope, in MentionInput) (MentionResult, error) {
	q := resolve.Query{Name: strings.TrimSpace(in.Name), Role: strings.TrimSpace(in.Role), Category: in.Category}
	res, err := s.resolve(ctx, scope, q, "mention")
	if err != nil {
		return MentionResult{}, err
	}

	switch res.Status {
	case models.ResultAmbiguous:
		return MentionResult{Result: res}, nil
	case models.ResultFound:
		relID, err := s.recordReference(ctx, scope, res.Person.ID, q.Role)
		if err != nil {
			return MentionResult{}, err
		}
		return MentionResult{Result: res, RelationshipID: relID}, nil
	}

	conf := mentionConfidence(q)
	if conf < s.placeholderConfidence {
		return MentionResult{Result: res}, nil
	}
	return s.createPlaceholder(ctx, scope, q, conf)
}

// mentionConfidence scores how safely an unknown mention can become a placeholder.
func mentionConfidence(q resolve.Query) float64 {
	if q.Name == "" || q.Role == "" {
		return 0
	}
	if _, known := models.CanonicalRole(q.Role); known {
		return 0.9
	}
	return 0.5
}

// recordReference bumps the reference counter on the core user's edge to person.
// It returns nil when the person is not directly connected.
func (s *Service) recordReference(ctx context.Context, scope models.Scope, person uuid.UUID, role string) (*uuid.UUID, error) {
	core, err := s.store.GetCoreUser(ctx, scope)
	if err != nil {
		return nil, err
	}
	if core.ID == person {
		return nil, nil
	}
	edges, err := s.store.FindBetween(ctx, scope, core.ID, person)
	if err != nil {
		return nil, err
	}

	var chosen *models.Relationship
	for i := range edges {
		e := &edges[i]
		if !e.IsActive {
			continue
		}
		if role != "" && !models.RoleMatches(role, e.RoleOf(core.ID)) {
			continue
		}
		if chosen == nil || e.Strength > chosen.Strength {
			chosen = e
		}
	}
	if chosen == nil {
		return nil, nil
	}
	if err := s.store.RecordReference(ctx, scope, chosen.ID); err != nil {
		return nil, err
	}
	s.log.Debug().Str("owner_id", scope.OwnerID.String()).Str("relationship_id", chosen.ID.String()).Msg("recorded reference")
	return &chosen.ID, nil
}

func (s *Service) createPlaceholder(ctx context.Context, scope models.Scope, q resolve.Query, conf float64) (MentionResult, error) {
	core, err := s.store.GetCoreUser(ctx, scope)
	if err != nil {
		return MentionResult{}, err
	}
	role, _ := models.CanonicalRole(q.Role)
	category := q.Category
	if category == "" {
		category, _ = models.RoleCategory(role)
	}

	person := &models.Person{Name: q.Name, IsPlaceholder: true}
	rel := &models.Relationship{
		FromPersonID: core.ID,
		Category:     category,
		FromRole:     models.InverseRole(role, core.Gender),
		ToRole:       role,
	}
	err = s.store.InTx(ctx, func(tx *db.Tx) error {
		if err := tx.CreatePerson(ctx, scope, person); err != nil {
			return err
		}
		rel.ToPersonID = person.ID
		return tx.CreateRelationship(ctx, scope, rel)
	})
	if err != nil {
		return MentionResult{}, fmt.Errorf("failed to create placeholder: %w", err)
	}

	s.log.Info().Str("owner_id", scope.OwnerID.String()).Str("person_id", person.ID.String()).
		Str("relationship_id", rel.ID.String()).Msg("created placeholder from mention")
	c := models.Candidate{Person: *person, Tier: models.TierRole, Confidence: conf, Role: role}
	return MentionResult{Result: models.FoundResult(q.String(), c, nil), Created: true, RelationshipID: &rel.ID}, nil
}

// AddPersonInput creates a person and, when Role is set, links them to the core user.
type AddPersonInput struct {
	Person   models.Person
	Role     string
	Category string
}

func (s *Service) AddPerson(ctx context.Context, scope models.Scope, in AddPersonInput) (*models.Person, *models.Relationship, error) {
	p := in.Person
	if in.Role == "" {
		if err := s.store.CreatePerson(ctx, scope, &p); err != nil {
			return nil, nil, err
		}
		s.log.Info().Str("owner_id", scope.OwnerID.String()).Str("person_id", p.ID.String()).Msg("added person")
		return &p, nil, nil
	}

	core, err := s.store.GetCoreUser(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	role, _ := models.CanonicalRole(in.Role)
	rel := &models.Relationship{
		FromPersonID: core.ID,
		Category:     in.Category,
		FromRole:     models.InverseRole(role, core.Gender),
		ToRole:       role,
	}
	err = s.store.InTx(ctx, func(tx *db.Tx) error {
		if err := tx.CreatePerson(ctx, scope, &p); err != nil {
			return err
		}
		rel.ToPersonID = p.ID
		return tx.CreateRelationship(ctx, scope, rel)
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info().Str("owner_id", scope.OwnerID.String()).Str("person_id", p.ID.String()).
		Str("relationship_id", rel.ID.String()).Msg("added person linked to core user")
	return &p, rel, nil
}

func (s *Service) logResult(op string, scope models.Scope, res models.Result) {
	s.log.Debug().Str("op", op).Str("owner_id", scope.OwnerID.String()).
		Str("status", res.Status).Int("candidates", len(res.Candidates)).Msg("query complete")
}
