// ABOUTME: Tests for contact predicates and normalization helpers
// ABOUTME: Covers explicit placeholder flags and the legacy sentinel values
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasRealContact(t *testing.T) {
	tests := []struct {
		name   string
		person Person
		want   bool
	}{
		{"email", Person{PersonalEmail: "jamie@example.com"}, true},
		{"phone", Person{WorkPhone: "+1 (312) 555-0199"}, true},
		{"nothing", Person{}, false},
		{"placeholder_with_email", Person{IsPlaceholder: true, PersonalEmail: "jamie@example.com"}, false},
		{"flagged_email", Person{PersonalEmail: "jamie@example.com", PlaceholderFlags: PlaceholderFlags{Email: true}}, false},
		{"legacy_email_sentinel", Person{PersonalEmail: "someone@placeholder.local"}, false},
		{"legacy_phone_sentinel", Person{PersonalPhone: "555-555-5555"}, false},
		{"all_zero_phone", Person{PersonalPhone: "000-000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.person.HasRealContact())
		})
	}
}

func TestNeedsCompletion(t *testing.T) {
	assert.True(t, (&Person{Name: "Sam", IsPlaceholder: true}).NeedsCompletion())
	assert.False(t, (&Person{Name: "Alex", IsCoreUser: true}).NeedsCompletion())
	assert.False(t, (&Person{Name: "Jamie", PersonalEmail: "jamie@example.com"}).NeedsCompletion())
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "jamie@example.com", NormalizeEmail("  Jamie@Example.COM "))
	assert.Equal(t, "3125550199", NormalizePhone("+1 (312) 555-0199"))
	assert.Equal(t, "4479460958", NormalizePhone("44 7946 0958"))
	assert.Equal(t, "jamie rivera", NormalizeName("  Jamie   RIVERA "))
	assert.Equal(t, []string{"jj", "jamie"}, NormalizeAliases([]string{"JJ", " jj ", "", "Jamie"}))
}
