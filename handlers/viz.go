// ABOUTME: GraphViz visualization MCP handlers
// ABOUTME: Provides the network_graph tool for agents
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type VizHandlers struct {
	gen   *viz.GraphGenerator
	scope models.Scope
}

func NewVizHandlers(gen *viz.GraphGenerator, scope models.Scope) *VizHandlers {
	return &VizHandlers{gen: gen, scope: scope}
}

type NetworkGraphInput struct {
	CenterID     string `json:"center_id,omitempty" jsonschema:"Person to center the graph on (default: the owner)"`
	Depth        int    `json:"depth,omitempty" jsonschema:"Hops from the center to include (default 2)"`
	IncludeEnded bool   `json:"include_ended,omitempty" jsonschema:"Include ended relationships as dashed edges"`
}

type NetworkGraphOutput struct {
	DOTSource string `json:"dot_source"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

func (h *VizHandlers) NetworkGraph(ctx context.Context, _ *mcp.CallToolRequest, input NetworkGraphInput) (*mcp.CallToolResult, NetworkGraphOutput, error) {
	center, err := parseOptionalID("center_id", input.CenterID)
	if err != nil {
		return nil, NetworkGraphOutput{}, err
	}
	dot, stats, err := h.gen.GenerateNetworkGraph(ctx, h.scope, viz.GraphOptions{
		Center:       center,
		Depth:        input.Depth,
		IncludeEnded: input.IncludeEnded,
	})
	if err != nil {
		return nil, NetworkGraphOutput{}, fmt.Errorf("failed to generate graph: %w", err)
	}
	return nil, NetworkGraphOutput{DOTSource: dot, NodeCount: stats.Nodes, EdgeCount: stats.Edges}, nil
}
