// ABOUTME: Entity resolution from free-text names, aliases and role hints to Person candidates
// ABOUTME: Tiers run exact, alias, fuzzy, role; ties within tolerance are returned as ambiguous
package resolve

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
)

// Tier quality before strength and recency are blended in.
const (
	exactQuality = 1.0
	aliasQuality = 0.9
	roleQuality  = 0.8
	// fuzzy quality is fuzzyBase + fuzzySpan*similarity
	fuzzyBase = 0.5
	fuzzySpan = 0.4

	tierWeight     = 0.7
	strengthWeight = 0.2
	recencyWeight  = 0.1

	recencyHalfLife = 30 * 24 * time.Hour
)

// Store is the subset of the graph store used for resolution.
type Store interface {
	GetCoreUser(ctx context.Context, scope models.Scope) (*models.Person, error)
	FindByName(ctx context.Context, scope models.Scope, name string) ([]models.Person, error)
	FindByAlias(ctx context.Context, scope models.Scope, alias string) ([]models.Person, error)
	ListPersons(ctx context.Context, scope models.Scope, opts db.ListPersonsOptions) ([]models.Person, error)
	ListForPerson(ctx context.Context, scope models.Scope, id uuid.UUID, includeEnded bool) ([]models.Relationship, error)
	GetPersons(ctx context.Context, scope models.Scope, ids []uuid.UUID) (map[uuid.UUID]models.Person, error)
}

// Query is a reference to resolve. At least one of Name and Role is required.
type Query struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Category string `json:"category,omitempty"`
}

func (q Query) String() string {
	switch {
	case q.Name != "" && q.Role != "":
		return q.Name + " (" + q.Role + ")"
	case q.Name != "":
		return q.Name
	}
	return q.Role
}

type Options struct {
	FuzzyThreshold float64
	TieTolerance   float64
	Now            func() time.Time
}

func DefaultOptions() Options {
	return Options{FuzzyThreshold: 0.85, TieTolerance: 0.05, Now: time.Now}
}

type Resolver struct {
	store Store
	opts  Options
}

func New(store Store, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = def.FuzzyThreshold
	}
	if opts.TieTolerance <= 0 {
		opts.TieTolerance = def.TieTolerance
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Resolver{store: store, opts: opts}
}

// coreEdge is one active edge between the core user and a neighbor, with the
// role the neighbor plays.
type coreEdge struct {
	rel  models.Relationship
	role string
}

// neighborEdges holds a neighbor's edges, strongest first.
type neighborEdges map[uuid.UUID][]coreEdge

// match returns the strongest edge satisfying role and category ("" matches any).
func (n neighborEdges) match(id uuid.UUID, role, category string) (coreEdge, bool) {
	for _, e := range n[id] {
		if category != "" && e.rel.Category != category {
			continue
		}
		if role != "" && !models.RoleMatches(role, e.role) {
			continue
		}
		return e, true
	}
	return coreEdge{}, false
}

// Resolve maps a reference to found, ambiguous or not_found. It never picks
// between candidates whose confidence is within the tie tolerance.
func (r *Resolver) Resolve(ctx context.Context, scope models.Scope, q Query) (models.Result, error) {
	q.Name = strings.TrimSpace(q.Name)
	q.Role = strings.TrimSpace(q.Role)
	if q.Name == "" && q.Role == "" {
		return models.Result{}, models.NewValidationError("query_required", "name", "a name or a role is required")
	}

	core, edges, err := r.coreContext(ctx, scope)
	if err != nil {
		return models.Result{}, err
	}

	candidates, err := r.candidates(ctx, scope, q, core, edges)
	if err != nil {
		return models.Result{}, err
	}
	if len(candidates) == 0 {
		return models.NotFoundResult(q.String(), "no person matches"), nil
	}
	return r.decide(q.String(), candidates), nil
}

// Candidates returns every scored candidate for q in rank order without deciding.
func (r *Resolver) Candidates(ctx context.Context, scope models.Scope, q Query) ([]models.Candidate, error) {
	core, edges, err := r.coreContext(ctx, scope)
	if err != nil {
		return nil, err
	}
	return r.candidates(ctx, scope, q, core, edges)
}

func (r *Resolver) candidates(ctx context.Context, scope models.Scope, q Query, core *models.Person, edges neighborEdges) ([]models.Candidate, error) {
	role := q.Role
	if q.Name != "" {
		found, err := r.nameTiers(ctx, scope, q, edges)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return r.applyHints(q, found, edges), nil
		}
		// A real name that matched nobody stays unmatched; hints only narrow name matches.
		// "mom" in the name slot is still a role reference.
		if _, known := models.CanonicalRole(q.Name); !known {
			return nil, nil
		}
		if role == "" {
			role = q.Name
		}
	}
	if role == "" || core == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.roleTier(ctx, scope, role, q.Category, edges)
}

// nameTiers runs exact, alias and fuzzy matching, stopping at the first tier with a match.
func (r *Resolver) nameTiers(ctx context.Context, scope models.Scope, q Query, edges neighborEdges) ([]models.Candidate, error) {
	exact, err := r.store.FindByName(ctx, scope, q.Name)
	if err != nil {
		return nil, err
	}
	if len(exact) > 0 {
		return r.score(exact, models.TierExact, func(models.Person) float64 { return exactQuality }, edges), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alias, err := r.store.FindByAlias(ctx, scope, q.Name)
	if err != nil {
		return nil, err
	}
	if len(alias) > 0 {
		return r.score(alias, models.TierAlias, func(models.Person) float64 { return aliasQuality }, edges), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.store.ListPersons(ctx, scope, db.ListPersonsOptions{})
	if err != nil {
		return nil, err
	}
	query := models.NormalizeName(q.Name)
	sims := make(map[uuid.UUID]float64)
	var fuzzy []models.Person
	for _, p := range all {
		sim := nameSimilarity(query, models.NormalizeName(p.Name), p.Aliases)
		if sim >= r.opts.FuzzyThreshold {
			sims[p.ID] = sim
			fuzzy = append(fuzzy, p)
		}
	}
	return r.score(fuzzy, models.TierFuzzy, func(p models.Person) float64 {
		return fuzzyBase + fuzzySpan*sims[p.ID]
	}, edges), nil
}

// roleTier walks the core user's active edges for the role the other end plays.
func (r *Resolver) roleTier(ctx context.Context, scope models.Scope, role, category string, edges neighborEdges) ([]models.Candidate, error) {
	matched := make(neighborEdges)
	var ids []uuid.UUID
	for other := range edges {
		e, ok := edges.match(other, role, category)
		if !ok {
			continue
		}
		matched[other] = []coreEdge{e}
		ids = append(ids, other)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	persons, err := r.store.GetPersons(ctx, scope, ids)
	if err != nil {
		return nil, err
	}
	var list []models.Person
	for _, id := range ids {
		p, ok := persons[id]
		if !ok || p.Status == models.StatusArchived {
			continue
		}
		list = append(list, p)
	}
	return r.score(list, models.TierRole, func(models.Person) float64 { return roleQuality }, matched), nil
}

// applyHints narrows name matches by role and category hints when that leaves any.
func (r *Resolver) applyHints(q Query, found []models.Candidate, edges neighborEdges) []models.Candidate {
	if q.Role == "" && q.Category == "" {
		return found
	}
	var narrowed []models.Candidate
	for _, c := range found {
		e, ok := edges.match(c.Person.ID, q.Role, q.Category)
		if !ok {
			continue
		}
		c.Role = e.role
		narrowed = append(narrowed, c)
	}
	if len(narrowed) == 0 {
		return found
	}
	return narrowed
}

func (r *Resolver) score(persons []models.Person, tier string, quality func(models.Person) float64, edges neighborEdges) []models.Candidate {
	now := r.opts.Now()
	out := make([]models.Candidate, 0, len(persons))
	for _, p := range persons {
		c := models.Candidate{Person: p, Tier: tier}
		var strength, recency float64
		if e, ok := edges.match(p.ID, "", ""); ok {
			c.Role = e.role
			strength = float64(e.rel.Strength) / 100
			recency = recencyScore(e.rel.LastContactAt, now)
		}
		conf := tierWeight*quality(p) + strengthWeight*strength + recencyWeight*recency
		c.Confidence = math.Round(conf*10000) / 10000
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

func recencyScore(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	age := now.Sub(*last)
	if age < 0 {
		age = 0
	}
	return math.Pow(0.5, float64(age)/float64(recencyHalfLife))
}

// sortCandidates orders by confidence, then name, then id, so equal inputs always
// produce the same order.
func sortCandidates(cs []models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Confidence != cs[j].Confidence {
			return cs[i].Confidence > cs[j].Confidence
		}
		ni, nj := models.NormalizeName(cs[i].Person.Name), models.NormalizeName(cs[j].Person.Name)
		if ni != nj {
			return ni < nj
		}
		return cs[i].Person.ID.String() < cs[j].Person.ID.String()
	})
}

// decide turns ranked candidates into a result. Candidates within the tie
// tolerance of the leader are ambiguous together.
func (r *Resolver) decide(query string, ranked []models.Candidate) models.Result {
	if len(ranked) == 1 {
		return models.FoundResult(query, ranked[0], nil)
	}
	top := ranked[0].Confidence
	tied := 1
	for tied < len(ranked) && top-ranked[tied].Confidence <= r.opts.TieTolerance+1e-9 {
		tied++
	}
	if tied > 1 {
		return models.AmbiguousResult(query, ranked[:tied])
	}
	return models.FoundResult(query, ranked[0], ranked[1:])
}

// coreContext loads the core user and the strongest active edge to each neighbor.
// An owner without a core user resolves by name only.
func (r *Resolver) coreContext(ctx context.Context, scope models.Scope) (*models.Person, neighborEdges, error) {
	edges := make(neighborEdges)
	core, err := r.store.GetCoreUser(ctx, scope)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, edges, nil
		}
		return nil, nil, err
	}
	rels, err := r.store.ListForPerson(ctx, scope, core.ID, false)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range rels {
		other := rel.Other(core.ID)
		edges[other] = append(edges[other], coreEdge{rel: rel, role: rel.RoleOf(core.ID)})
	}
	for _, list := range edges {
		sort.Slice(list, func(i, j int) bool {
			if list[i].rel.Strength != list[j].rel.Strength {
				return list[i].rel.Strength > list[j].rel.Strength
			}
			return list[i].rel.ID.String() < list[j].rel.ID.String()
		})
	}
	return core, edges, nil
}
