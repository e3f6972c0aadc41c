// ABOUTME: GraphViz rendering of an owner's relationship network
// ABOUTME: Edges are labeled from_role/to_role; ended edges are dashed and placeholders use a distinct shape
package viz

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
)

// DefaultDepth is how many hops from the center a network graph includes.
const DefaultDepth = 2

type GraphGenerator struct {
	store *db.Store
}

func NewGraphGenerator(store *db.Store) *GraphGenerator {
	return &GraphGenerator{store: store}
}

type GraphOptions struct {
	// Center is the starting person; uuid.Nil means the owner.
	Center       uuid.UUID
	Depth        int
	IncludeEnded bool
}

type GraphStats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// GenerateNetworkGraph walks outward from the center and renders the reached subgraph as DOT.
func (g *GraphGenerator) GenerateNetworkGraph(ctx context.Context, scope models.Scope, opts GraphOptions) (string, GraphStats, error) {
	center := opts.Center
	if center == uuid.Nil {
		core, err := g.store.GetCoreUser(ctx, scope)
		if err != nil {
			return "", GraphStats{}, err
		}
		center = core.ID
	}
	depth := opts.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}

	persons, edges, err := g.collect(ctx, scope, center, depth, opts.IncludeEnded)
	if err != nil {
		return "", GraphStats{}, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", GraphStats{}, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := gv.Graph()
	if err != nil {
		return "", GraphStats{}, fmt.Errorf("failed to create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.LRRank)

	ids := make([]uuid.UUID, 0, len(persons))
	for id := range persons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	nodes := make(map[uuid.UUID]*cgraph.Node, len(ids))
	for _, id := range ids {
		p := persons[id]
		node, err := graph.CreateNodeByName(id.String())
		if err != nil {
			return "", GraphStats{}, fmt.Errorf("failed to create node: %w", err)
		}
		node.SetLabel(p.Name)
		switch {
		case p.IsCoreUser:
			node.SetShape("doublecircle")
		case p.IsPlaceholder:
			node.SetShape("box")
			node.SetStyle("dashed")
		default:
			node.SetShape("ellipse")
		}
		nodes[id] = node
	}

	for i, rel := range edges {
		edge, err := graph.CreateEdgeByName(fmt.Sprintf("e%d", i), nodes[rel.FromPersonID], nodes[rel.ToPersonID])
		if err != nil {
			return "", GraphStats{}, fmt.Errorf("failed to create edge: %w", err)
		}
		edge.SetLabel(rel.FromRole + "/" + rel.ToRole)
		if !rel.IsActive {
			edge.SetStyle("dashed")
			edge.SetColor("gray")
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", GraphStats{}, fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), GraphStats{Nodes: len(nodes), Edges: len(edges)}, nil
}

// collect does a breadth-first walk up to depth hops. Archived persons are left out.
func (g *GraphGenerator) collect(ctx context.Context, scope models.Scope, center uuid.UUID, depth int, includeEnded bool) (map[uuid.UUID]models.Person, []models.Relationship, error) {
	first, err := g.store.GetPerson(ctx, scope, center)
	if err != nil {
		return nil, nil, err
	}
	persons := map[uuid.UUID]models.Person{center: *first}
	seenEdges := map[uuid.UUID]bool{}
	var edges []models.Relationship

	frontier := []uuid.UUID{center}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []uuid.UUID
		var pending []models.Relationship
		for _, id := range frontier {
			rels, err := g.store.ListForPerson(ctx, scope, id, includeEnded)
			if err != nil {
				return nil, nil, err
			}
			for _, rel := range rels {
				if seenEdges[rel.ID] {
					continue
				}
				seenEdges[rel.ID] = true
				pending = append(pending, rel)
				other := rel.Other(id)
				if _, ok := persons[other]; !ok {
					next = append(next, other)
				}
			}
		}

		found, err := g.store.GetPersons(ctx, scope, next)
		if err != nil {
			return nil, nil, err
		}
		frontier = frontier[:0]
		for id, p := range found {
			if p.Status == models.StatusArchived {
				continue
			}
			if _, ok := persons[id]; !ok {
				persons[id] = p
				frontier = append(frontier, id)
			}
		}
		for _, rel := range pending {
			_, a := persons[rel.FromPersonID]
			_, b := persons[rel.ToPersonID]
			if a && b {
				edges = append(edges, rel)
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID.String() < edges[j].ID.String() })
	return persons, edges, nil
}

// RenderSVG lays out DOT source and returns it as SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render svg: %w", err)
	}
	return buf.Bytes(), nil
}
