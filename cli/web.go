// ABOUTME: Web UI subcommand
// ABOUTME: Serves the local dashboard, people list and network graph until interrupted
package cli

import (
	"os/signal"
	"syscall"

	"github.com/harperreed/kith/web"
	"github.com/spf13/cobra"
)

func newWebCommand(app *App) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the local web UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			server, err := web.NewServer(app.store, scope, app.log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return server.Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", web.DefaultAddr, "Listen address")
	return cmd
}
