// ABOUTME: Write-time invariant checks for Person and Relationship records
// ABOUTME: Struct tags are checked by validator/v10; cross-field rules are checked by hand
package models

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidatePerson checks the record-local invariants. Owner-wide rules
// (one core user per owner) are enforced by the store inside its transaction.
func ValidatePerson(p *Person) error {
	if err := structError(validate.Struct(p)); err != nil {
		return err
	}
	if strings.TrimSpace(p.Title) != "" && strings.TrimSpace(p.Company) == "" {
		return NewValidationError("title_requires_company", "title", "a title requires a company")
	}
	if p.IsCoreUser && p.IsPlaceholder {
		return NewValidationError("core_user_placeholder", "is_placeholder", "the core user cannot be a placeholder")
	}
	if !p.IsCoreUser && !p.IsPlaceholder && !p.HasRealContact() {
		return NewValidationError("missing_contact_method", "contact", "a non-placeholder person needs at least one real email or phone")
	}
	return nil
}

// ValidEmail reports whether s passes the same email check ValidatePerson applies.
func ValidEmail(s string) bool {
	return validate.Var(s, "email") == nil
}

func ValidateRelationship(r *Relationship) error {
	if err := structError(validate.Struct(r)); err != nil {
		return err
	}
	if r.FromPersonID == r.ToPersonID {
		return NewValidationError("self_relationship", "to_person_id", "a person cannot be related to themselves")
	}
	if r.EndedAt != nil && r.IsActive {
		return NewValidationError("ended_but_active", "is_active", "an ended relationship cannot be active")
	}
	return nil
}

func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(fe.Tag(), toSnake(fe.Field()), "field failed "+fe.Tag()+" check")
	}
	return NewValidationError("invalid", "", err.Error())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
