// ABOUTME: MCP server subcommand
// ABOUTME: Serves the kith tool, resource and prompt surface on stdio for agent hosts
package cli

import (
	"os/signal"
	"syscall"

	"github.com/harperreed/kith/handlers"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// mcpActor is recorded in the audit log for tool calls unless --actor is set.
const mcpActor = "mcp"

func newMCPCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			if app.actor == "" {
				scope = models.NewScope(scope.OwnerID, mcpActor)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := handlers.NewServer(handlers.Deps{
				Service:   app.service(),
				Conflicts: app.conflictService(),
				Scope:     scope,
				Log:       app.log,
			}, app.version)

			app.log.Info().Str("owner_id", scope.OwnerID.String()).Msg("starting MCP server on stdio")
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
