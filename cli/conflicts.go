// ABOUTME: Sync conflict CLI commands
// ABOUTME: Lists pending conflicts, resolves one by strategy, or opens the review TUI
package cli

import (
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/sync"
	"github.com/harperreed/kith/tui"
	"github.com/spf13/cobra"
)

func newConflictsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "conflicts", Short: "Review and resolve sync conflicts"}
	cmd.AddCommand(
		newConflictsListCommand(app),
		newConflictsResolveCommand(app),
		newConflictsReviewCommand(app),
	)
	return cmd
}

func newConflictsListCommand(app *App) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sync conflicts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			conflicts, err := app.store.ListConflicts(cmd.Context(), scope, status, limit)
			if err != nil {
				return err
			}
			if conflicts == nil {
				conflicts = []models.SyncConflict{}
			}
			return app.printJSON(conflicts)
		},
	}
	cmd.Flags().StringVar(&status, "status", models.ConflictPending, "pending, resolved, or empty for all")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of conflicts")
	return cmd
}

func newConflictsResolveCommand(app *App) *cobra.Command {
	var d sync.Decision
	cmd := &cobra.Command{
		Use:   "resolve CONFLICT_ID",
		Short: "Resolve one conflict: keep_local, keep_remote, merge (with --value) or create_new",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			id, err := parseUUIDArg("conflict_id", args[0])
			if err != nil {
				return err
			}
			res, err := app.conflictService().Resolve(cmd.Context(), scope, id, d)
			if err != nil {
				return err
			}
			return app.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&d.Strategy, "strategy", "", "keep_local, keep_remote, merge or create_new (required)")
	cmd.Flags().StringVar(&d.Value, "value", "", "Merged value for the merge strategy")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

func newConflictsReviewCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Review pending conflicts in a full-screen terminal UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), app.store, app.conflictService(), scope)
		},
	}
}
