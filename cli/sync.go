// ABOUTME: Contact sync CLI commands
// ABOUTME: Handles OAuth setup, one-shot runs, the daemon and operator actions on sync state
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/sync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
)

func newSyncCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{Use: "sync", Short: "Contact provider sync"}
	cmd.AddCommand(
		newSyncAuthCommand(app),
		newSyncRunCommand(app),
		newSyncDaemonCommand(app),
		newSyncStatusCommand(app),
		newSyncResumeCommand(app),
		newSyncResetCursorCommand(app),
	)
	return cmd
}

// providers builds every configured provider.
func (a *App) providers(ctx context.Context) ([]sync.Provider, error) {
	if !a.cfg.GoogleConfigured() {
		return nil, &models.FatalConfigError{
			Provider: sync.GoogleProviderName,
			Reason:   "missing_credentials",
			Err:      fmt.Errorf("set KITH_GOOGLE_CLIENT_ID and KITH_GOOGLE_CLIENT_SECRET"),
		}
	}
	google, err := sync.NewGoogleProviderFromConfig(ctx, a.cfg.GoogleClientID, a.cfg.GoogleClientSecret, a.cfg.GoogleTokenPath)
	if err != nil {
		return nil, err
	}
	return []sync.Provider{google}, nil
}

func newSyncAuthCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Contacts access and store the token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config := sync.NewOAuthConfig(app.cfg.GoogleClientID, app.cfg.GoogleClientSecret)
			if err := sync.RequireCredentials(config); err != nil {
				return err
			}

			callbackChan := make(chan *oauth2.Token, 1)
			errChan := make(chan error, 1)

			mux := http.NewServeMux()
			mux.HandleFunc(sync.CallbackPath, func(w http.ResponseWriter, r *http.Request) {
				code := r.URL.Query().Get("code")
				if code == "" {
					errChan <- fmt.Errorf("no authorization code received")
					return
				}
				token, err := config.Exchange(ctx, code)
				if err != nil {
					errChan <- fmt.Errorf("failed to exchange code: %w", err)
					return
				}
				callbackChan <- token
				_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
			})

			server := &http.Server{Addr: sync.CallbackAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errChan <- err
				}
			}()
			defer func() { _ = server.Shutdown(context.Background()) }()

			authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline)
			fmt.Fprintln(cmd.ErrOrStderr(), "Opening browser for Google OAuth...")
			fmt.Fprintf(cmd.ErrOrStderr(), "\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)
			_ = openBrowser(authURL)

			select {
			case token := <-callbackChan:
				if err := sync.SaveToken(app.cfg.GoogleTokenPath, token); err != nil {
					return err
				}
				app.log.Info().Str("provider", sync.GoogleProviderName).Msg("stored oauth token")
				return app.printJSON(map[string]any{"authorized": true, "token_path": app.cfg.GoogleTokenPath})
			case err := <-errChan:
				return fmt.Errorf("OAuth flow failed: %w", err)
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

func newSyncRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation per configured provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			providers, err := app.providers(cmd.Context())
			if err != nil {
				return err
			}
			rec := app.reconciler()
			results := map[string]any{}
			var firstErr error
			for _, p := range providers {
				stats, err := rec.Run(cmd.Context(), scope, p)
				if err != nil {
					results[p.Name()] = map[string]any{"error": models.ErrorCode(err), "stats": stats}
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				results[p.Name()] = map[string]any{"stats": stats}
			}
			if err := app.printJSON(results); err != nil {
				return err
			}
			return firstErr
		},
	}
}

func newSyncDaemonCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Sync every provider on KITH_SYNC_INTERVAL until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			providers, err := app.providers(ctx)
			if err != nil {
				return err
			}
			if app.cfg.MetricsAddr != "" {
				srv := serveMetrics(app.cfg.MetricsAddr)
				defer func() { _ = srv.Shutdown(context.Background()) }()
				app.log.Info().Str("addr", app.cfg.MetricsAddr).Msg("serving metrics")
			}
			daemon := sync.NewDaemon(app.reconciler(), scope, app.cfg.SyncInterval, app.log, providers...)
			return daemon.Run(ctx)
		},
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

func newSyncStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state per provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			states, err := app.store.ListSyncStates(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if states == nil {
				states = []models.SyncState{}
			}
			return app.printJSON(states)
		},
	}
}

func newSyncResumeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume PROVIDER",
		Short: "Return a paused or failed provider to idle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			if err := app.store.Resume(cmd.Context(), scope, args[0]); err != nil {
				return err
			}
			st, err := app.store.GetSyncState(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return app.printJSON(st)
		},
	}
}

func newSyncResetCursorCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cursor PROVIDER",
		Short: "Drop the stored cursor so the next run is a full sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := app.scope()
			if err != nil {
				return err
			}
			if err := app.store.ResetCursor(cmd.Context(), scope, args[0]); err != nil {
				return err
			}
			st, err := app.store.GetSyncState(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return app.printJSON(st)
		},
	}
}

// openBrowser attempts to open URL in default browser
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		cmd = "xdg-open"
		args = []string{url}
	}

	return exec.Command(cmd, args...).Start()
}
