// ABOUTME: Audit log CLI command
// ABOUTME: Prints the owner's most recent access and mutation records
package cli

import (
	"github.com/harperreed/kith/models"
	"github.com/spf13/cobra"
)

func newAuditCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			entries, err := app.store.ListAudit(cmd.Context(), scope, limit)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []models.AuditEntry{}
			}
			return app.printJSON(entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of entries")
	return cmd
}
