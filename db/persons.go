// ABOUTME: Person operations for the graph store
// ABOUTME: Create/get/update/archive, exact name and alias lookup, contact lookup and FTS5 ranked search
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

const personColumns = `
	p.id, p.owner_id, p.name, p.aliases,
	COALESCE(p.work_email, ''), COALESCE(p.personal_email, ''),
	COALESCE(p.work_phone, ''), COALESCE(p.personal_phone, ''), COALESCE(p.secondary_phone, ''),
	COALESCE(p.company, ''), COALESCE(p.title, ''), p.expertise,
	COALESCE(p.city, ''), COALESCE(p.state, ''), COALESCE(p.country, ''),
	p.birthday, COALESCE(p.gender, ''), COALESCE(p.pronouns, ''),
	p.interests, COALESCE(p.notes, ''), p.status,
	p.is_core_user, p.is_placeholder, p.placeholder_email, p.placeholder_phone,
	p.created_at, p.updated_at`

// PersonFields lists the field names recorded against whole-record reads.
var PersonFields = []string{
	"name", "aliases", "work_email", "personal_email", "work_phone", "personal_phone", "secondary_phone",
	"company", "title", "expertise", "city", "state", "country", "birthday", "gender", "pronouns",
	"interests", "notes", "status", "is_core_user", "is_placeholder", "placeholder_flags",
}

func scanPerson(row scanner) (*models.Person, error) {
	var p models.Person
	var aliases, expertise, interests string

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &aliases,
		&p.WorkEmail, &p.PersonalEmail,
		&p.WorkPhone, &p.PersonalPhone, &p.SecondaryPhone,
		&p.Company, &p.Title, &expertise,
		&p.City, &p.State, &p.Country,
		&p.Birthday, &p.Gender, &p.Pronouns,
		&interests, &p.Notes, &p.Status,
		&p.IsCoreUser, &p.IsPlaceholder, &p.PlaceholderFlags.Email, &p.PlaceholderFlags.Phone,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	utc(&p.CreatedAt, &p.UpdatedAt)
	utcPtr(&p.Birthday)

	if err := json.Unmarshal([]byte(aliases), &p.Aliases); err != nil {
		return nil, fmt.Errorf("failed to decode aliases: %w", err)
	}
	if err := json.Unmarshal([]byte(expertise), &p.Expertise); err != nil {
		return nil, fmt.Errorf("failed to decode expertise: %w", err)
	}
	if err := json.Unmarshal([]byte(interests), &p.Interests); err != nil {
		return nil, fmt.Errorf("failed to decode interests: %w", err)
	}
	return &p, nil
}

func collectPersons(rows *sql.Rows) ([]models.Person, error) {
	defer rows.Close()
	var persons []models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// CreatePerson validates and inserts a person with its lookup and search indexes.
func (s *Store) CreatePerson(ctx context.Context, scope models.Scope, p *models.Person) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createPerson(ctx, tx, scope, p)
	})
}

func (s *Store) createPerson(ctx context.Context, q execer, scope models.Scope, p *models.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.OwnerID = scope.OwnerID
	if p.Status == "" {
		p.Status = models.StatusActive
	}
	p.Aliases = models.NormalizeAliases(p.Aliases)
	now := s.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := models.ValidatePerson(p); err != nil {
		return err
	}
	if err := s.checkCoreUser(ctx, q, scope, p); err != nil {
		return err
	}

	aliases, expertise, interests, err := encodePersonLists(p)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO persons (
			id, owner_id, name, name_norm, aliases, work_email, personal_email, work_phone, personal_phone,
			secondary_phone, company, title, expertise, city, state, country, birthday, gender, pronouns,
			interests, notes, status, is_core_user, is_placeholder, placeholder_email, placeholder_phone,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID.String(), scope.OwnerID.String(), p.Name, models.NormalizeName(p.Name), aliases,
		p.WorkEmail, p.PersonalEmail, p.WorkPhone, p.PersonalPhone, p.SecondaryPhone,
		p.Company, p.Title, expertise, p.City, p.State, p.Country, tsPtr(p.Birthday), p.Gender, p.Pronouns,
		interests, p.Notes, p.Status, boolInt(p.IsCoreUser), boolInt(p.IsPlaceholder),
		boolInt(p.PlaceholderFlags.Email), boolInt(p.PlaceholderFlags.Phone), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}

	if err := s.indexPerson(ctx, q, scope, p); err != nil {
		return err
	}
	return s.audit(ctx, q, scope, models.ActionCreate, models.ResourcePerson, p.ID.String(), populatedPersonFields(p))
}

// GetPerson returns a fully formed person or a NotFoundError.
func (s *Store) GetPerson(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	p, err := s.getPerson(ctx, s.db, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourcePerson, id.String(), PersonFields); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) getPerson(ctx context.Context, q execer, scope models.Scope, id uuid.UUID) (*models.Person, error) {
	row := q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons p WHERE p.id = ? AND p.owner_id = ?`,
		id.String(), scope.OwnerID.String())
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourcePerson, id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// GetPersons batch-loads persons by id. Missing ids are absent from the map.
func (s *Store) GetPersons(ctx context.Context, scope models.Scope, ids []uuid.UUID) (map[uuid.UUID]models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.Person, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := []any{scope.OwnerID.String()}
	for _, id := range ids {
		args = append(args, id.String())
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons p
		WHERE p.owner_id = ? AND p.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load persons: %w", err)
	}
	persons, err := collectPersons(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to load persons: %w", err)
	}
	for _, p := range persons {
		out[p.ID] = p
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourcePerson, "", PersonFields); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePerson replaces the mutable fields of an existing person.
// The audit entry names only the fields whose values changed.
func (s *Store) UpdatePerson(ctx context.Context, scope models.Scope, p *models.Person) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updatePerson(ctx, tx, scope, p)
	})
}

func (s *Store) updatePerson(ctx context.Context, q execer, scope models.Scope, p *models.Person) error {
	current, err := s.getPerson(ctx, q, scope, p.ID)
	if err != nil {
		return err
	}

	p.OwnerID = scope.OwnerID
	p.CreatedAt = current.CreatedAt
	p.Aliases = models.NormalizeAliases(p.Aliases)
	if p.Status == "" {
		p.Status = current.Status
	}
	if err := models.ValidatePerson(p); err != nil {
		return err
	}
	if err := s.checkCoreUser(ctx, q, scope, p); err != nil {
		return err
	}

	changed := diffPersonFields(current, p)
	if len(changed) == 0 {
		*p = *current
		return nil
	}
	p.UpdatedAt = s.Now()

	aliases, expertise, interests, err := encodePersonLists(p)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE persons SET
			name = ?, name_norm = ?, aliases = ?, work_email = ?, personal_email = ?, work_phone = ?,
			personal_phone = ?, secondary_phone = ?, company = ?, title = ?, expertise = ?, city = ?,
			state = ?, country = ?, birthday = ?, gender = ?, pronouns = ?, interests = ?, notes = ?,
			status = ?, is_core_user = ?, is_placeholder = ?, placeholder_email = ?, placeholder_phone = ?,
			updated_at = ?
		WHERE id = ? AND owner_id = ?
	`, p.Name, models.NormalizeName(p.Name), aliases, p.WorkEmail, p.PersonalEmail, p.WorkPhone,
		p.PersonalPhone, p.SecondaryPhone, p.Company, p.Title, expertise, p.City,
		p.State, p.Country, tsPtr(p.Birthday), p.Gender, p.Pronouns, interests, p.Notes,
		p.Status, boolInt(p.IsCoreUser), boolInt(p.IsPlaceholder), boolInt(p.PlaceholderFlags.Email),
		boolInt(p.PlaceholderFlags.Phone), p.UpdatedAt, p.ID.String(), scope.OwnerID.String())
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}

	if err := s.indexPerson(ctx, q, scope, p); err != nil {
		return err
	}
	return s.audit(ctx, q, scope, models.ActionUpdate, models.ResourcePerson, p.ID.String(), changed)
}

// ArchivePerson moves a person to archived status. Persons are never deleted.
func (s *Store) ArchivePerson(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPerson(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if p.IsCoreUser {
			return models.NewValidationError("archive_core_user", "status", "the core user cannot be archived")
		}
		if p.Status == models.StatusArchived {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE persons SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
			models.StatusArchived, s.Now(), id.String(), scope.OwnerID.String())
		if err != nil {
			return fmt.Errorf("failed to archive person: %w", err)
		}
		return s.audit(ctx, tx, scope, models.ActionArchive, models.ResourcePerson, id.String(), []string{"status"})
	})
}

// AddAlias appends one alias to a person.
func (s *Store) AddAlias(ctx context.Context, scope models.Scope, id uuid.UUID, alias string) (*models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if models.NormalizeName(alias) == "" {
		return nil, models.NewValidationError("required", "aliases", "alias must not be empty")
	}
	var out *models.Person
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPerson(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		p.Aliases = append(p.Aliases, alias)
		if err := s.updatePerson(ctx, tx, scope, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// GetCoreUser returns the owner's single core-user person.
func (s *Store) GetCoreUser(ctx context.Context, scope models.Scope) (*models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons p WHERE p.owner_id = ? AND p.is_core_user = 1`,
		scope.OwnerID.String())
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError(models.ResourcePerson, "core_user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get core user: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionRead, models.ResourcePerson, p.ID.String(), PersonFields); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPersonsOptions filters ListPersons.
type ListPersonsOptions struct {
	Status          string
	IncludeArchived bool
	Limit           int
}

func (s *Store) ListPersons(ctx context.Context, scope models.Scope, opts ListPersonsOptions) ([]models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT ` + personColumns + ` FROM persons p WHERE p.owner_id = ?`
	args := []any{scope.OwnerID.String()}
	switch {
	case opts.Status != "":
		query += ` AND p.status = ?`
		args = append(args, opts.Status)
	case !opts.IncludeArchived:
		query += ` AND p.status <> 'archived'`
	}
	query += ` ORDER BY p.name_norm, p.id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	persons, err := collectPersons(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionList, models.ResourcePerson, "", PersonFields); err != nil {
		return nil, err
	}
	return persons, nil
}

// FindByName returns non-archived persons whose normalized name equals name.
func (s *Store) FindByName(ctx context.Context, scope models.Scope, name string) ([]models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons p
		WHERE p.owner_id = ? AND p.name_norm = ? AND p.status <> 'archived'
		ORDER BY p.id`, scope.OwnerID.String(), models.NormalizeName(name))
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by name: %w", err)
	}
	persons, err := collectPersons(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by name: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionSearch, models.ResourcePerson, "", []string{"name"}); err != nil {
		return nil, err
	}
	return persons, nil
}

// FindByAlias returns non-archived persons carrying alias.
func (s *Store) FindByAlias(ctx context.Context, scope models.Scope, alias string) ([]models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+personColumns+` FROM persons p
		JOIN person_aliases a ON a.person_id = p.id
		WHERE a.owner_id = ? AND p.owner_id = ? AND a.alias = ? AND p.status <> 'archived'
		ORDER BY p.id`, scope.OwnerID.String(), scope.OwnerID.String(), models.NormalizeName(alias))
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by alias: %w", err)
	}
	persons, err := collectPersons(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by alias: %w", err)
	}
	if err := s.auditRead(ctx, scope, models.ActionSearch, models.ResourcePerson, "", []string{"aliases"}); err != nil {
		return nil, err
	}
	return persons, nil
}

// Contact kinds in the normalized contact index.
const (
	ContactEmail = "email"
	ContactPhone = "phone"
)

// FindByContact matches a normalized email or phone against real contact values.
func (s *Store) FindByContact(ctx context.Context, scope models.Scope, kind, value string) ([]models.Person, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.findByContact(ctx, s.db, scope, kind, value, true)
}

func (s *Store) findByContact(ctx context.Context, q execer, scope models.Scope, kind, value string, audited bool) ([]models.Person, error) {
	norm := normalizeContact(kind, value)
	if norm == "" {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT `+personColumns+` FROM persons p
		JOIN person_contacts c ON c.person_id = p.id
		WHERE c.owner_id = ? AND p.owner_id = ? AND c.kind = ? AND c.value_norm = ?
		ORDER BY p.id`, scope.OwnerID.String(), scope.OwnerID.String(), kind, norm)
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by contact: %w", err)
	}
	persons, err := collectPersons(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to find persons by contact: %w", err)
	}
	if audited {
		field := "email"
		if kind == ContactPhone {
			field = "phone"
		}
		if err := s.audit(ctx, q, scope, models.ActionSearch, models.ResourcePerson, "", []string{field}); err != nil {
			return nil, err
		}
	}
	return persons, nil
}

// SearchHit is one ranked full-text match. Lower Score ranks higher (bm25).
type SearchHit struct {
	Person models.Person `json:"person"`
	Score  float64       `json:"score"`
}

// SearchPersons runs a ranked FTS5 query over name, aliases, expertise,
// company, title and interest names.
func (s *Store) SearchPersons(ctx context.Context, scope models.Scope, text string, limit int) ([]SearchHit, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	match := ftsQuery(text)
	if match == "" {
		return nil, models.NewValidationError("empty_query", "text", "search text must contain at least one term")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+personColumns+`, bm25(persons_fts, 0, 0, 10, 8, 2, 3, 3, 2) AS score
		FROM persons_fts
		JOIN persons p ON p.id = persons_fts.person_id
		WHERE persons_fts MATCH ? AND persons_fts.owner_id = ? AND p.owner_id = ? AND p.status <> 'archived'
		ORDER BY score, p.name_norm, p.id
		LIMIT ?
	`, match, scope.OwnerID.String(), scope.OwnerID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search persons: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var score float64
		p, err := scanPerson(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &score)...)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, SearchHit{Person: *p, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to search persons: %w", err)
	}
	rows.Close()

	if err := s.auditRead(ctx, scope, models.ActionSearch, models.ResourcePerson, "",
		[]string{"name", "aliases", "expertise", "company", "title", "interests"}); err != nil {
		return nil, err
	}
	return hits, nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// ftsQuery quotes each term and allows prefix matches, so user text never
// reaches FTS5 as query syntax.
func ftsQuery(text string) string {
	var terms []string
	for _, w := range strings.Fields(text) {
		w = strings.ReplaceAll(w, `"`, "")
		if w == "" {
			continue
		}
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

// checkCoreUser enforces one core user per owner inside the write transaction.
func (s *Store) checkCoreUser(ctx context.Context, q execer, scope models.Scope, p *models.Person) error {
	if !p.IsCoreUser {
		return nil
	}
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons WHERE owner_id = ? AND is_core_user = 1 AND id <> ?`,
		scope.OwnerID.String(), p.ID.String()).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check core user: %w", err)
	}
	if count > 0 {
		return models.NewValidationError("duplicate_core_user", "is_core_user", "owner already has a core user")
	}
	return nil
}

// indexPerson rebuilds the alias, contact and full-text rows for p.
func (s *Store) indexPerson(ctx context.Context, q execer, scope models.Scope, p *models.Person) error {
	id := p.ID.String()
	owner := scope.OwnerID.String()

	for _, stmt := range []string{
		`DELETE FROM person_aliases WHERE person_id = ?`,
		`DELETE FROM person_contacts WHERE person_id = ?`,
		`DELETE FROM persons_fts WHERE person_id = ?`,
	} {
		if _, err := q.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to clear person index: %w", err)
		}
	}

	for _, alias := range p.Aliases {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO person_aliases (person_id, owner_id, alias) VALUES (?, ?, ?)`,
			id, owner, alias); err != nil {
			return fmt.Errorf("failed to index alias: %w", err)
		}
	}

	for _, email := range p.RealEmails() {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO person_contacts (person_id, owner_id, kind, value_norm) VALUES (?, ?, ?, ?)`,
			id, owner, ContactEmail, models.NormalizeEmail(email)); err != nil {
			return fmt.Errorf("failed to index email: %w", err)
		}
	}
	for _, phone := range p.RealPhones() {
		if _, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO person_contacts (person_id, owner_id, kind, value_norm) VALUES (?, ?, ?, ?)`,
			id, owner, ContactPhone, models.NormalizePhone(phone)); err != nil {
			return fmt.Errorf("failed to index phone: %w", err)
		}
	}

	interestNames := make([]string, 0, len(p.Interests))
	for _, in := range p.Interests {
		interestNames = append(interestNames, in.Name)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO persons_fts (person_id, owner_id, name, aliases, expertise, company, title, interests)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, owner, p.Name, strings.Join(p.Aliases, " "), strings.Join(p.Expertise, " "),
		p.Company, p.Title, strings.Join(interestNames, " "))
	if err != nil {
		return fmt.Errorf("failed to index person for search: %w", err)
	}
	return nil
}

func normalizeContact(kind, value string) string {
	switch kind {
	case ContactEmail:
		return models.NormalizeEmail(value)
	case ContactPhone:
		return models.NormalizePhone(value)
	}
	return ""
}

func encodePersonLists(p *models.Person) (aliases, expertise, interests string, err error) {
	if aliases, err = marshalList(p.Aliases); err != nil {
		return "", "", "", fmt.Errorf("failed to encode aliases: %w", err)
	}
	if expertise, err = marshalList(p.Expertise); err != nil {
		return "", "", "", fmt.Errorf("failed to encode expertise: %w", err)
	}
	if interests, err = marshalList(p.Interests); err != nil {
		return "", "", "", fmt.Errorf("failed to encode interests: %w", err)
	}
	return aliases, expertise, interests, nil
}

// populatedPersonFields names the fields a create actually set.
func populatedPersonFields(p *models.Person) []string {
	return diffPersonFields(&models.Person{}, p)
}

// diffPersonFields names the fields whose values differ between a and b.
func diffPersonFields(a, b *models.Person) []string {
	var out []string
	add := func(name string, changed bool) {
		if changed {
			out = append(out, name)
		}
	}
	add("name", a.Name != b.Name)
	add("aliases", !equalStrings(a.Aliases, b.Aliases))
	add("work_email", a.WorkEmail != b.WorkEmail)
	add("personal_email", a.PersonalEmail != b.PersonalEmail)
	add("work_phone", a.WorkPhone != b.WorkPhone)
	add("personal_phone", a.PersonalPhone != b.PersonalPhone)
	add("secondary_phone", a.SecondaryPhone != b.SecondaryPhone)
	add("company", a.Company != b.Company)
	add("title", a.Title != b.Title)
	add("expertise", !equalStrings(a.Expertise, b.Expertise))
	add("city", a.City != b.City)
	add("state", a.State != b.State)
	add("country", a.Country != b.Country)
	add("birthday", !equalTimePtr(a.Birthday, b.Birthday))
	add("gender", a.Gender != b.Gender)
	add("pronouns", a.Pronouns != b.Pronouns)
	add("interests", !(len(a.Interests) == 0 && len(b.Interests) == 0) && !reflect.DeepEqual(a.Interests, b.Interests))
	add("notes", a.Notes != b.Notes)
	add("status", a.Status != b.Status)
	add("is_core_user", a.IsCoreUser != b.IsCoreUser)
	add("is_placeholder", a.IsPlaceholder != b.IsPlaceholder)
	add("placeholder_flags", a.PlaceholderFlags != b.PlaceholderFlags)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return ts(*a).Equal(ts(*b))
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
