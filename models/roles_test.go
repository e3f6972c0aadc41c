// ABOUTME: Tests for role normalization, generalization and inverse derivation
// ABOUTME: Table-driven over the role vocabulary
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalRole(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		known bool
	}{
		{"sister", "sister", true},
		{"Sis", "sister", true},
		{"my sister's", "sister", true},
		{"  MOM ", "mother", true},
		{"colleague", "coworker", true},
		{"best_friend", "best friend", true},
		{"Significant   Other", "partner", true},
		{"Mother in law", "mother-in-law", true},
		{"son-in-law", "child-in-law", true},
		{"former colleague", "ex-coworker", true},
		{"archnemesis", "archnemesis", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, known := CanonicalRole(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestRoleCategory(t *testing.T) {
	cat, ok := RoleCategory("hubby")
	assert.True(t, ok)
	assert.Equal(t, CategoryFamily, cat)

	cat, ok = RoleCategory("manager")
	assert.True(t, ok)
	assert.Equal(t, CategoryWork, cat)

	_, ok = RoleCategory("archnemesis")
	assert.False(t, ok)
}

func TestRoleMatches(t *testing.T) {
	tests := []struct {
		query, edge string
		want        bool
	}{
		{"sister", "sister", true},
		{"sis", "sister", true},
		{"sibling", "sister", true},
		{"sister", "sibling", false},
		{"partner", "wife", true},
		{"spouse", "husband", true},
		{"parent", "mom", true},
		{"brother", "sister", false},
		{"archnemesis", "archnemesis", true},
		{"", "sister", false},
	}
	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.edge, func(t *testing.T) {
			assert.Equal(t, tt.want, RoleMatches(tt.query, tt.edge))
		})
	}
}

func TestInverseRole(t *testing.T) {
	tests := []struct {
		role, gender, want string
	}{
		{"sister", "male", "brother"},
		{"sister", "female", "sister"},
		{"sister", "", "sibling"},
		{"husband", "female", "wife"},
		{"mom", "male", "son"},
		{"daughter", "", "parent"},
		{"boss", "", "report"},
		{"friend", "male", "friend"},
		{"archnemesis", "", "archnemesis"},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.gender, func(t *testing.T) {
			assert.Equal(t, tt.want, InverseRole(tt.role, tt.gender))
		})
	}
}

func TestKnownRolesSorted(t *testing.T) {
	roles := KnownRoles()
	assert.Contains(t, roles, "sister")
	assert.IsIncreasing(t, roles)
}
