// ABOUTME: Multi-hop traversal over role-labeled relationship edges
// ABOUTME: Explicit bounded-depth frontier expansion; more than one final person is reported as ambiguous
package traverse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

// DefaultMaxDepth covers every realistic spoken hop chain.
const DefaultMaxDepth = 6

// Store is the adjacency and person lookup the engine walks.
type Store interface {
	GetCoreUser(ctx context.Context, scope models.Scope) (*models.Person, error)
	GetPerson(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Person, error)
	GetPersons(ctx context.Context, scope models.Scope, ids []uuid.UUID) (map[uuid.UUID]models.Person, error)
	ActiveEdges(ctx context.Context, scope models.Scope, ids []uuid.UUID) ([]models.Relationship, error)
}

type Engine struct {
	store    Store
	maxDepth int
}

// New builds an engine. maxDepth <= 0 selects DefaultMaxDepth.
func New(store Store, maxDepth int) *Engine {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Engine{store: store, maxDepth: maxDepth}
}

func (e *Engine) MaxDepth() int { return e.maxDepth }

// branch is the canonical path that reached a frontier member.
type branch struct {
	steps []models.PathStep
	key   string
}

// Traverse walks path from start (the core user when start is uuid.Nil).
// It is read-only apart from access auditing.
func (e *Engine) Traverse(ctx context.Context, scope models.Scope, start uuid.UUID, path []string) (models.Result, error) {
	query := strings.Join(path, " > ")
	if len(path) == 0 {
		return models.Result{}, models.NewValidationError("empty_path", "path", "at least one role is required")
	}
	if len(path) > e.maxDepth {
		return models.Result{}, models.NewValidationError("path_too_long", "path",
			fmt.Sprintf("at most %d hops are supported", e.maxDepth))
	}

	origin, err := e.origin(ctx, scope, start)
	if err != nil {
		return models.Result{}, err
	}

	frontier := map[uuid.UUID]branch{origin.ID: {}}
	for hop, token := range path {
		if err := ctx.Err(); err != nil {
			return models.Result{}, err
		}
		next, err := e.expand(ctx, scope, frontier, token)
		if err != nil {
			return models.Result{}, err
		}
		if len(next) == 0 {
			failed := hop
			res := models.NotFoundResult(query, fmt.Sprintf("no %q found at hop %d", token, hop))
			res.FailedHop = &failed
			return res, nil
		}
		frontier = next
	}

	return e.finish(ctx, scope, query, frontier)
}

func (e *Engine) origin(ctx context.Context, scope models.Scope, start uuid.UUID) (*models.Person, error) {
	if start == uuid.Nil {
		return e.store.GetCoreUser(ctx, scope)
	}
	return e.store.GetPerson(ctx, scope, start)
}

// expand computes the next frontier for one role token.
func (e *Engine) expand(ctx context.Context, scope models.Scope, frontier map[uuid.UUID]branch, token string) (map[uuid.UUID]branch, error) {
	ids := sortedIDs(frontier)
	edges, err := e.store.ActiveEdges(ctx, scope, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID.String() < edges[j].ID.String() })

	next := make(map[uuid.UUID]branch)
	for _, edge := range edges {
		for _, member := range []uuid.UUID{edge.FromPersonID, edge.ToPersonID} {
			from, ok := frontier[member]
			if !ok {
				continue
			}
			role := edge.RoleOf(member)
			if !models.RoleMatches(token, role) {
				continue
			}
			to := edge.Other(member)
			steps := make([]models.PathStep, len(from.steps), len(from.steps)+1)
			copy(steps, from.steps)
			steps = append(steps, models.PathStep{Role: role, RelationshipID: edge.ID, PersonID: to})
			cand := branch{steps: steps, key: from.key + "/" + edge.ID.String()}

			// Several paths may reach the same person; keep the smallest one.
			if prev, seen := next[to]; seen && prev.key <= cand.key {
				continue
			}
			next[to] = cand
		}
	}
	if len(next) == 0 {
		return next, nil
	}

	persons, err := e.store.GetPersons(ctx, scope, sortedIDs(next))
	if err != nil {
		return nil, err
	}
	for id := range next {
		p, ok := persons[id]
		if !ok || p.Status == models.StatusArchived {
			delete(next, id)
		}
	}
	return next, nil
}

func (e *Engine) finish(ctx context.Context, scope models.Scope, query string, frontier map[uuid.UUID]branch) (models.Result, error) {
	persons, err := e.store.GetPersons(ctx, scope, sortedIDs(frontier))
	if err != nil {
		return models.Result{}, err
	}

	candidates := make([]models.Candidate, 0, len(frontier))
	for id, b := range frontier {
		p, ok := persons[id]
		if !ok {
			continue
		}
		last := b.steps[len(b.steps)-1]
		candidates = append(candidates, models.Candidate{
			Person:     p,
			Tier:       models.TierPath,
			Confidence: 1,
			Role:       last.Role,
			Path:       b.steps,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		ni, nj := models.NormalizeName(candidates[i].Person.Name), models.NormalizeName(candidates[j].Person.Name)
		if ni != nj {
			return ni < nj
		}
		return candidates[i].Person.ID.String() < candidates[j].Person.ID.String()
	})

	switch len(candidates) {
	case 0:
		return models.NotFoundResult(query, "path endpoints are no longer available"), nil
	case 1:
		return models.FoundResult(query, candidates[0], nil), nil
	}
	return models.AmbiguousResult(query, candidates), nil
}

func sortedIDs(m map[uuid.UUID]branch) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
