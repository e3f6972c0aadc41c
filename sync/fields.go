// ABOUTME: Mapping between Person fields and provider field names
// ABOUTME: Only these fields take part in three-way comparison and push
package sync

import (
	"strings"

	"github.com/harperreed/kith/models"
)

// Synced field names.
const (
	FieldName          = "name"
	FieldPersonalEmail = "personal_email"
	FieldWorkEmail     = "work_email"
	FieldPersonalPhone = "personal_phone"
	FieldWorkPhone     = "work_phone"
	FieldCompany       = "company"
	FieldTitle         = "title"
	FieldCity          = "city"
	FieldState         = "state"
	FieldCountry       = "country"
	FieldNotes         = "notes"
)

// SyncedFields is the comparison order; it is stable so conflicts are created deterministically.
var SyncedFields = []string{
	FieldName, FieldPersonalEmail, FieldWorkEmail, FieldPersonalPhone, FieldWorkPhone,
	FieldCompany, FieldTitle, FieldCity, FieldState, FieldCountry, FieldNotes,
}

func fieldPtr(p *models.Person, field string) *string {
	switch field {
	case FieldName:
		return &p.Name
	case FieldPersonalEmail:
		return &p.PersonalEmail
	case FieldWorkEmail:
		return &p.WorkEmail
	case FieldPersonalPhone:
		return &p.PersonalPhone
	case FieldWorkPhone:
		return &p.WorkPhone
	case FieldCompany:
		return &p.Company
	case FieldTitle:
		return &p.Title
	case FieldCity:
		return &p.City
	case FieldState:
		return &p.State
	case FieldCountry:
		return &p.Country
	case FieldNotes:
		return &p.Notes
	}
	return nil
}

// GetField returns the local value of a synced field.
func GetField(p *models.Person, field string) string {
	if ptr := fieldPtr(p, field); ptr != nil {
		return *ptr
	}
	return ""
}

// SetField sets a synced field. Unknown fields are ignored.
func SetField(p *models.Person, field, value string) {
	if ptr := fieldPtr(p, field); ptr != nil {
		*ptr = value
	}
}

func isContactField(field string) bool {
	switch field {
	case FieldPersonalEmail, FieldWorkEmail, FieldPersonalPhone, FieldWorkPhone:
		return true
	}
	return false
}

// equalField compares values the way matching does: contacts are normalized, text is trimmed.
func equalField(field, a, b string) bool {
	switch field {
	case FieldPersonalEmail, FieldWorkEmail:
		return models.NormalizeEmail(a) == models.NormalizeEmail(b)
	case FieldPersonalPhone, FieldWorkPhone:
		return models.NormalizePhone(a) == models.NormalizePhone(b)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// acceptRemote reports whether a remote value can be stored in field.
// Malformed emails are dropped rather than failing the whole record.
func acceptRemote(field, value string) bool {
	switch field {
	case FieldPersonalEmail, FieldWorkEmail:
		v := strings.TrimSpace(value)
		return v == "" || models.ValidEmail(v)
	}
	return true
}

// foldOrphanTitle moves a title with no company into the notes so the record
// still passes validation.
func foldOrphanTitle(p *models.Person) {
	if p.Title == "" || strings.TrimSpace(p.Company) != "" {
		return
	}
	line := "Title: " + p.Title
	if p.Notes == "" {
		p.Notes = line
	} else if !strings.Contains(p.Notes, line) {
		p.Notes += "\n" + line
	}
	p.Title = ""
}

// personFromRecord builds a new person from remote fields. Records with no
// usable contact method become placeholders.
func personFromRecord(rec RemoteRecord) *models.Person {
	p := &models.Person{}
	for _, f := range SyncedFields {
		if v, ok := rec.Fields[f]; ok && acceptRemote(f, v) {
			SetField(p, f, strings.TrimSpace(v))
		}
	}
	foldOrphanTitle(p)
	if !p.HasRealContact() {
		p.IsPlaceholder = true
	}
	return p
}

// recordFields renders the synced fields of p for a push.
func recordFields(p *models.Person) map[string]string {
	out := make(map[string]string, len(SyncedFields))
	for _, f := range SyncedFields {
		if v := GetField(p, f); v != "" {
			out[f] = v
		}
	}
	return out
}

// remoteSnapshot keeps only synced fields from a remote record.
func remoteSnapshot(rec RemoteRecord) map[string]string {
	out := make(map[string]string, len(rec.Fields))
	for _, f := range SyncedFields {
		if v, ok := rec.Fields[f]; ok {
			out[f] = v
		}
	}
	return out
}
