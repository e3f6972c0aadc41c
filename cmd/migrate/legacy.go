// ABOUTME: Reads contacts and relationships out of a legacy CRM database
// ABOUTME: Importer turns them into Persons linked to the core user plus the legacy edges between them

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

type legacyContact struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	Company         string
	Notes           string
	LastContactedAt *time.Time
}

type legacyRelationship struct {
	ID   string
	From string
	To   string
	Type string
}

// defaultLegacyRole labels legacy edges whose type is not a known role.
const defaultLegacyRole = "acquaintance"

type legacyData struct {
	Contacts      []legacyContact
	Relationships []legacyRelationship
}

// readLegacy opens the legacy database read-only and loads every contact and contact-to-contact edge.
func readLegacy(ctx context.Context, path string) (*legacyData, error) {
	database, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer func() { _ = database.Close() }()

	tables, err := getCurrentTables(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed to get current tables: %w", err)
	}
	if !tables["contacts"] {
		return nil, models.NewValidationError("legacy_schema", "legacy", "no contacts table; not a legacy CRM database")
	}

	var out legacyData
	if out.Contacts, err = readContacts(ctx, database, tables["companies"]); err != nil {
		return nil, err
	}
	if tables["relationships"] {
		if out.Relationships, err = readRelationships(ctx, database); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func getCurrentTables(ctx context.Context, database *sql.DB) (map[string]bool, error) {
	rows, err := database.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func readContacts(ctx context.Context, database *sql.DB, hasCompanies bool) ([]legacyContact, error) {
	query := `SELECT c.id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''), '', COALESCE(c.notes, ''), c.last_contacted_at
		FROM contacts c ORDER BY c.created_at, c.id`
	if hasCompanies {
		query = `SELECT c.id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''), COALESCE(co.name, ''), COALESCE(c.notes, ''), c.last_contacted_at
			FROM contacts c LEFT JOIN companies co ON co.id = c.company_id ORDER BY c.created_at, c.id`
	}
	rows, err := database.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []legacyContact
	for rows.Next() {
		var c legacyContact
		var last sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Notes, &last); err != nil {
			return nil, fmt.Errorf("failed to scan legacy contact: %w", err)
		}
		if last.Valid {
			c.LastContactedAt = parseLegacyTime(last.String)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func readRelationships(ctx context.Context, database *sql.DB) ([]legacyRelationship, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT id, contact_id_1, contact_id_2, COALESCE(relationship_type, '')
		FROM relationships ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []legacyRelationship
	for rows.Next() {
		var r legacyRelationship
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan legacy relationship: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// legacyTimeLayouts covers the mattn/go-sqlite3 and modernc encodings the legacy CRM wrote over time.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseLegacyTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Report counts what an import did.
type Report struct {
	Contacts             int `json:"contacts"`
	Created              int `json:"created"`
	Skipped              int `json:"skipped"`
	Relationships        int `json:"relationships"`
	RelationshipsSkipped int `json:"relationships_skipped"`
}

// Importer writes legacy records into one owner's graph.
type Importer struct {
	store *db.Store
	scope models.Scope
	role  string
	log   zerolog.Logger
}

func (im *Importer) Import(ctx context.Context, legacy *legacyData) (Report, error) {
	report := Report{Contacts: len(legacy.Contacts)}

	core, err := im.store.GetCoreUser(ctx, im.scope)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return report, models.NewValidationError("owner_required", "owner", "run kith init-owner before importing")
		}
		return report, err
	}

	toRole, _ := models.CanonicalRole(im.role)
	fromRole := models.InverseRole(toRole, core.Gender)

	ids := make(map[string]uuid.UUID, len(legacy.Contacts))
	for _, c := range legacy.Contacts {
		id, created, err := im.importContact(ctx, c)
		if err != nil {
			return report, fmt.Errorf("failed to import contact %s: %w", c.ID, err)
		}
		ids[c.ID] = id
		if !created {
			report.Skipped++
			continue
		}
		report.Created++

		rel := &models.Relationship{FromPersonID: core.ID, ToPersonID: id, FromRole: fromRole, ToRole: toRole}
		if err := im.store.CreateRelationship(ctx, im.scope, rel); err != nil {
			return report, fmt.Errorf("failed to link contact %s: %w", c.ID, err)
		}
		if c.LastContactedAt != nil {
			if err := im.store.RecordInteraction(ctx, im.scope, rel.ID, models.InteractionMeet, *c.LastContactedAt); err != nil {
				return report, err
			}
		}
	}

	for _, lr := range legacy.Relationships {
		from, okFrom := ids[lr.From]
		to, okTo := ids[lr.To]
		if !okFrom || !okTo || from == to {
			report.RelationshipsSkipped++
			continue
		}
		role := defaultLegacyRole
		if canonical, ok := models.CanonicalRole(lr.Type); ok {
			role = canonical
		}
		rel := &models.Relationship{FromPersonID: from, ToPersonID: to, FromRole: models.InverseRole(role, ""), ToRole: role}
		err := im.store.CreateRelationship(ctx, im.scope, rel)
		var ve *models.ValidationError
		if errors.As(err, &ve) && ve.Constraint == "duplicate_relationship" {
			report.RelationshipsSkipped++
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to import relationship %s: %w", lr.ID, err)
		}
		report.Relationships++
	}

	im.log.Info().
		Str("owner_id", im.scope.OwnerID.String()).
		Int("created", report.Created).
		Int("skipped", report.Skipped).
		Int("relationships", report.Relationships).
		Msg("imported legacy data")
	return report, nil
}

// importContact creates a Person for c unless one with the same email or phone
// already exists. Contacts with neither reuse a placeholder of the same name.
func (im *Importer) importContact(ctx context.Context, c legacyContact) (uuid.UUID, bool, error) {
	p := &models.Person{
		Name:          strings.TrimSpace(c.Name),
		PersonalEmail: c.Email,
		PersonalPhone: c.Phone,
		Company:       c.Company,
		Notes:         c.Notes,
	}
	p.IsPlaceholder = !p.HasRealContact()

	lookups := []struct{ kind, value string }{
		{db.ContactEmail, models.NormalizeEmail(c.Email)},
		{db.ContactPhone, models.NormalizePhone(c.Phone)},
	}
	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		existing, err := im.store.FindByContact(ctx, im.scope, l.kind, l.value)
		if err != nil {
			return uuid.Nil, false, err
		}
		if len(existing) > 0 {
			return existing[0].ID, false, nil
		}
	}
	if p.IsPlaceholder {
		existing, err := im.store.FindByName(ctx, im.scope, p.Name)
		if err != nil {
			return uuid.Nil, false, err
		}
		for _, e := range existing {
			if e.IsPlaceholder {
				return e.ID, false, nil
			}
		}
	}

	if err := im.store.CreatePerson(ctx, im.scope, p); err != nil {
		return uuid.Nil, false, err
	}
	return p.ID, true, nil
}
