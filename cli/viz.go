// ABOUTME: Visualization CLI commands
// ABOUTME: Writes the relationship graph as DOT and prints the terminal dashboard
package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/harperreed/kith/viz"
	"github.com/spf13/cobra"
)

func newVizCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "viz", Short: "Visualize your network"}
	cmd.AddCommand(newVizGraphCommand(app), newVizDashboardCommand(app))
	return cmd
}

func newVizGraphCommand(app *App) *cobra.Command {
	var center, output string
	var opts viz.GraphOptions
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the relationship graph around a person as GraphViz DOT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			opts.Center = uuid.Nil
			if center != "" {
				if opts.Center, err = parseUUIDArg("center", center); err != nil {
					return err
				}
			}
			dot, stats, err := viz.NewGraphGenerator(app.store).GenerateNetworkGraph(cmd.Context(), scope, opts)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprint(app.out, dot)
				return err
			}
			if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write graph: %w", err)
			}
			app.log.Info().Int("nodes", stats.Nodes).Int("edges", stats.Edges).Msg("wrote graph")
			return app.printJSON(map[string]any{"output": output, "nodes": stats.Nodes, "edges": stats.Edges})
		},
	}
	cmd.Flags().StringVar(&center, "center", "", "Person at the center (default: you)")
	cmd.Flags().IntVar(&opts.Depth, "depth", viz.DefaultDepth, "Hops from the center")
	cmd.Flags().BoolVar(&opts.IncludeEnded, "include-ended", false, "Include ended relationships")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write DOT to this file instead of stdout")
	return cmd
}

func newVizDashboardCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show circles, stale relationships and sync health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			stats, err := viz.GenerateDashboardStats(cmd.Context(), app.store, scope)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(app.out, viz.RenderDashboard(stats))
			return err
		},
	}
}
