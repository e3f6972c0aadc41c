// ABOUTME: MCP server assembly for the relationship graph
// ABOUTME: Registers every tool, resource and prompt against one owner scope
package handlers

import (
	"context"
	"fmt"

	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/harperreed/kith/sync"
	"github.com/harperreed/kith/viz"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const ServerName = "kith"

type Deps struct {
	Service   *query.Service
	Conflicts *sync.ConflictService
	Scope     models.Scope
	Log       zerolog.Logger
}

// NewServer builds an MCP server bound to deps.Scope. Every caller of the
// server acts as that owner.
func NewServer(deps Deps, version string) *mcp.Server {
	store := deps.Service.Store()
	graph := NewGraphHandlers(deps.Service, deps.Scope)
	persons := NewPersonHandlers(deps.Service, deps.Scope)
	conflicts := NewConflictHandlers(store, deps.Conflicts, deps.Scope)
	vizHandlers := NewVizHandlers(viz.NewGraphGenerator(store), deps.Scope)
	resources := NewResourceHandlers(store, deps.Scope)
	prompts := NewPromptHandlers(store, deps.Scope)
	log := deps.Log

	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contact_by_role",
		Description: "Find the person who holds a role relative to the owner, e.g. sister or boss",
	}, coded(log, "get_contact_by_role", graph.GetContactByRole))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_contact_by_name",
		Description: "Find a person by name or nickname, with optional role and category hints",
	}, coded(log, "get_contact_by_name", graph.GetContactByName))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_interests_by_role",
		Description: "List the interests of the person who holds a role relative to the owner",
	}, coded(log, "get_interests_by_role", graph.GetInterestsByRole))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "traverse",
		Description: "Follow a chain of roles, e.g. [sister, husband], from the owner or a start person",
	}, coded(log, "traverse", graph.Traverse))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search over names, notes, company and interests",
	}, coded(log, "search", graph.Search))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "most_contacted",
		Description: "Rank the owner's contacts by number of interactions",
	}, coded(log, "most_contacted", graph.MostContacted))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "mention",
		Description: "Record a conversational mention; creates a placeholder when a role is given and nobody matches",
	}, coded(log, "mention", graph.Mention))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_person",
		Description: "Add a person, optionally linking them to the owner with a role",
	}, coded(log, "add_person", persons.AddPerson))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link_persons",
		Description: "Create a relationship between two people with a role pair",
	}, coded(log, "link_persons", persons.LinkPersons))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "end_relationship",
		Description: "Mark a relationship as ended without deleting its history",
	}, coded(log, "end_relationship", persons.EndRelationship))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "log_interaction",
		Description: "Log a call, meeting or text on a relationship",
	}, coded(log, "log_interaction", persons.LogInteraction))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_conflicts",
		Description: "List sync conflicts awaiting review",
	}, coded(log, "list_conflicts", conflicts.ListConflicts))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_conflict",
		Description: "Resolve a sync conflict with keep_local, keep_remote, merge or create_new",
	}, coded(log, "resolve_conflict", conflicts.ResolveConflict))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "network_graph",
		Description: "Render the relationship network around a person as GraphViz DOT",
	}, coded(log, "network_graph", vizHandlers.NetworkGraph))

	server.AddResource(&mcp.Resource{
		URI:         "kith://people",
		Name:        "people",
		Description: "Everyone in the owner's graph",
		MIMEType:    "application/json",
	}, resources.ReadResource)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "kith://people/{id}",
		Name:        "person",
		Description: "One person with their relationships",
		MIMEType:    "application/json",
	}, resources.ReadResource)
	server.AddResource(&mcp.Resource{
		URI:         "kith://conflicts",
		Name:        "conflicts",
		Description: "Pending sync conflicts",
		MIMEType:    "application/json",
	}, resources.ReadResource)
	server.AddResource(&mcp.Resource{
		URI:         "kith://dashboard",
		Name:        "dashboard",
		Description: "Network overview and people needing attention",
		MIMEType:    "text/plain",
	}, resources.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "person-briefing",
		Description: "Brief me on a person before a conversation",
		Arguments: []*mcp.PromptArgument{
			{Name: "person_id", Description: "Person to brief on", Required: true},
		},
	}, prompts.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "reconnect-suggestions",
		Description: "Suggest people to get back in touch with",
	}, prompts.GetPrompt)
	server.AddPrompt(&mcp.Prompt{
		Name:        "conflict-review",
		Description: "Walk through pending sync conflicts",
	}, prompts.GetPrompt)

	return server
}

// coded prefixes tool errors with their stable error code so agents can
// branch on it, and logs the failure without its message.
func coded[In, Out any](log zerolog.Logger, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		res, out, err := h(ctx, req, in)
		if err != nil {
			code := models.ErrorCode(err)
			log.Warn().Str("tool", name).Str("code", code).Msg("tool call failed")
			return res, out, fmt.Errorf("%s: %w", code, err)
		}
		log.Debug().Str("tool", name).Msg("tool call")
		return res, out, nil
	}
}
