// ABOUTME: Root cobra command and shared command context
// ABOUTME: Loads configuration, builds the logger and opens the store before any subcommand runs
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/logging"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/query"
	"github.com/harperreed/kith/sync"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// App is the state shared by every subcommand after PersistentPreRunE.
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   *db.Store
	version string
	out     io.Writer

	dbPath   string
	owner    string
	actor    string
	logLevel string
}

// NewRootCommand builds the kith command tree.
func NewRootCommand(version string) *cobra.Command {
	app := &App{version: version}

	root := &cobra.Command{
		Use:           "kith",
		Short:         "Personal relationship graph with contact sync and an agent tool surface",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if app.store != nil {
				return app.store.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&app.dbPath, "db-path", "", "Database path (default: $XDG_DATA_HOME/kith/kith.db)")
	root.PersistentFlags().StringVar(&app.owner, "owner", "", "Owner ID every command acts for (env KITH_OWNER)")
	root.PersistentFlags().StringVar(&app.actor, "actor", "", "Actor recorded in the audit log (default: cli)")
	root.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	root.AddCommand(
		newInitOwnerCommand(app),
		newPersonCommand(app),
		newRelCommand(app),
		newResolveCommand(app),
		newTraverseCommand(app),
		newSearchCommand(app),
		newMostContactedCommand(app),
		newInterestsCommand(app),
		newMentionCommand(app),
		newSyncCommand(app),
		newConflictsCommand(app),
		newAuditCommand(app),
		newVizCommand(app),
		newMCPCommand(app),
		newWebCommand(app),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	root := NewRootCommand(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", models.ErrorCode(err), err)
		return 1
	}
	return 0
}

func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.owner != "" {
		cfg.Owner = a.owner
	}
	if a.actor != "" {
		cfg.Actor = a.actor
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.log = logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	a.store = store
	a.log.Debug().Str("command", cmd.CommandPath()).Msg("store opened")
	return nil
}

// scope returns the configured owner scope or a validation error when no owner is set.
func (a *App) scope() (models.Scope, error) {
	if a.cfg.Owner == "" {
		return models.Scope{}, models.NewValidationError("owner_required", "owner", "pass --owner or set KITH_OWNER (see kith init-owner)")
	}
	id, err := uuid.Parse(a.cfg.Owner)
	if err != nil {
		return models.Scope{}, models.NewValidationError("uuid", "owner", "owner must be a UUID")
	}
	return models.NewScope(id, a.cfg.Actor), nil
}

func (a *App) service() *query.Service {
	return query.NewService(a.store, a.cfg.QueryOptions(), a.log)
}

func (a *App) reconciler() *sync.Reconciler {
	return sync.NewReconciler(a.store, a.cfg.SyncOptions(), a.log)
}

func (a *App) conflictService() *sync.ConflictService {
	return sync.NewConflictService(a.store, a.log)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseUUIDArg(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, models.NewValidationError("uuid", field, field+" must be a UUID")
	}
	return id, nil
}
