// ABOUTME: Migration utility that imports a legacy CRM database into an owner's kith graph
// ABOUTME: Provides dry-run and backup capabilities; re-running skips contacts already imported

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/logging"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
)

func main() {
	legacyPath := flag.String("legacy", "", "Path to the legacy CRM database (required)")
	dbPath := flag.String("db", "", "Path to the kith database (default: KITH_DB_PATH or XDG data dir)")
	owner := flag.String("owner", "", "Owner ID to import into (default: KITH_OWNER)")
	role := flag.String("role", "acquaintance", "Role every imported contact gets relative to you")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Create backup of the kith database before importing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", models.ErrorCode(err), err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *owner != "" {
		cfg.Owner = *owner
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	opts := options{
		legacyPath: *legacyPath,
		dbPath:     cfg.DBPath,
		owner:      cfg.Owner,
		actor:      "migrate",
		role:       *role,
		dryRun:     *dryRun,
		backup:     *backup,
	}
	report, err := run(context.Background(), opts, log)
	if err != nil {
		log.Error().Str("code", models.ErrorCode(err)).Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().
		Int("contacts", report.Contacts).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("relationships", report.Relationships).
		Int("relationships_skipped", report.RelationshipsSkipped).
		Bool("dry_run", opts.dryRun).
		Msg("migration completed")
}

type options struct {
	legacyPath string
	dbPath     string
	owner      string
	actor      string
	role       string
	dryRun     bool
	backup     bool
}

func (o options) validate() (models.Scope, error) {
	if o.legacyPath == "" {
		return models.Scope{}, models.NewValidationError("required", "legacy", "-legacy flag is required")
	}
	if o.owner == "" {
		return models.Scope{}, models.NewValidationError("owner_required", "owner", "pass -owner or set KITH_OWNER")
	}
	id, err := uuid.Parse(o.owner)
	if err != nil {
		return models.Scope{}, models.NewValidationError("uuid", "owner", "owner must be a UUID")
	}
	if _, ok := models.CanonicalRole(o.role); !ok {
		return models.Scope{}, models.NewValidationError("role", "role", "unknown role "+o.role)
	}
	return models.NewScope(id, o.actor), nil
}

func run(ctx context.Context, opts options, log zerolog.Logger) (Report, error) {
	scope, err := opts.validate()
	if err != nil {
		return Report{}, err
	}
	if _, err := os.Stat(opts.legacyPath); os.IsNotExist(err) {
		return Report{}, fmt.Errorf("legacy database does not exist: %s", opts.legacyPath)
	}

	legacy, err := readLegacy(ctx, opts.legacyPath)
	if err != nil {
		return Report{}, err
	}
	log.Info().Int("contacts", len(legacy.Contacts)).Int("relationships", len(legacy.Relationships)).Msg("read legacy database")

	if opts.dryRun {
		log.Info().Msg("[DRY RUN] no changes written")
		return Report{Contacts: len(legacy.Contacts)}, nil
	}

	if opts.backup {
		if err := backupFile(opts.dbPath); err != nil {
			return Report{}, err
		}
	}

	store, err := db.Open(opts.dbPath)
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = store.Close() }()

	im := &Importer{store: store, scope: scope, role: opts.role, log: log}
	return im.Import(ctx, legacy)
}

// backupFile copies an existing database before the import touches it.
func backupFile(path string) error {
	input, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}
	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, input, 0o600); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	return nil
}
