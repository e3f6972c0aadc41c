// ABOUTME: Category to canonical-role table with synonyms, generalizations and inverses
// ABOUTME: Role matching is table lookup plus normalized string equality; new roles are added here
package models

import (
	"sort"
	"strings"
)

type roleDef struct {
	category string
	synonyms []string
	// generic roles matched by this role (sister matches sibling queries)
	generalizes []string
	// inverse role keyed by the gender of the person holding it ("" = neutral)
	inverse map[string]string
}

// roleTable is the single source of truth for relationship role vocabulary.
var roleTable = map[string]roleDef{
	// family
	"sister":      {CategoryFamily, []string{"sis", "sisters"}, []string{"sibling"}, siblingInverse},
	"brother":     {CategoryFamily, []string{"bro", "brothers"}, []string{"sibling"}, siblingInverse},
	"sibling":     {CategoryFamily, []string{"siblings"}, nil, siblingInverse},
	"mother":      {CategoryFamily, []string{"mom", "mum", "mama", "mommy", "ma"}, []string{"parent"}, childInverse},
	"father":      {CategoryFamily, []string{"dad", "papa", "daddy", "pa"}, []string{"parent"}, childInverse},
	"parent":      {CategoryFamily, []string{"parents"}, nil, childInverse},
	"daughter":    {CategoryFamily, []string{"daughters"}, []string{"child"}, parentInverse},
	"son":         {CategoryFamily, []string{"sons"}, []string{"child"}, parentInverse},
	"child":       {CategoryFamily, []string{"children", "kid", "kids"}, nil, parentInverse},
	"wife":        {CategoryFamily, nil, []string{"spouse", "partner"}, spouseInverse},
	"husband":     {CategoryFamily, []string{"hubby"}, []string{"spouse", "partner"}, spouseInverse},
	"spouse":      {CategoryFamily, nil, []string{"partner"}, spouseInverse},
	"partner":     {CategoryFamily, []string{"significant other"}, nil, partnerInverse},
	"girlfriend":  {CategoryFamily, []string{"gf"}, []string{"partner"}, partnerInverse},
	"boyfriend":   {CategoryFamily, []string{"bf"}, []string{"partner"}, partnerInverse},
	"fiance":      {CategoryFamily, []string{"fiancee", "fiancé", "fiancée"}, []string{"partner"}, map[string]string{"": "fiance"}},
	"grandmother": {CategoryFamily, []string{"grandma", "granny", "nana"}, []string{"grandparent"}, grandchildInverse},
	"grandfather": {CategoryFamily, []string{"grandpa", "granddad", "gramps"}, []string{"grandparent"}, grandchildInverse},
	"grandparent": {CategoryFamily, []string{"grandparents"}, nil, grandchildInverse},
	"grandchild":  {CategoryFamily, []string{"grandchildren", "grandkid", "granddaughter", "grandson"}, nil, grandparentInverse},
	"aunt":        {CategoryFamily, []string{"auntie", "aunty"}, nil, niblingInverse},
	"uncle":       {CategoryFamily, nil, nil, niblingInverse},
	"niece":       {CategoryFamily, nil, nil, auntUncleInverse},
	"nephew":      {CategoryFamily, nil, nil, auntUncleInverse},
	"cousin":      {CategoryFamily, []string{"cousins"}, nil, map[string]string{"": "cousin"}},

	// in-laws
	"mother-in-law":  {CategoryFamily, []string{"mother in law"}, []string{"parent-in-law"}, childInLawInverse},
	"father-in-law":  {CategoryFamily, []string{"father in law"}, []string{"parent-in-law"}, childInLawInverse},
	"parent-in-law":  {CategoryFamily, []string{"in-laws", "in laws"}, nil, childInLawInverse},
	"sister-in-law":  {CategoryFamily, []string{"sister in law"}, []string{"sibling-in-law"}, siblingInLawInverse},
	"brother-in-law": {CategoryFamily, []string{"brother in law"}, []string{"sibling-in-law"}, siblingInLawInverse},
	"sibling-in-law": {CategoryFamily, nil, nil, siblingInLawInverse},
	"child-in-law":   {CategoryFamily, []string{"son-in-law", "daughter-in-law", "son in law", "daughter in law"}, nil, parentInLawInverse},

	// friends
	"friend":      {CategoryFriends, []string{"friends", "buddy", "pal", "mate"}, nil, map[string]string{"": "friend"}},
	"best friend": {CategoryFriends, []string{"bestie", "bff", "best-friend"}, []string{"friend"}, map[string]string{"": "best friend"}},
	"roommate":    {CategoryFriends, []string{"roomie", "flatmate", "housemate"}, nil, map[string]string{"": "roommate"}},

	// work
	"coworker":    {CategoryWork, []string{"co-worker", "colleague", "workmate", "coworkers", "colleagues"}, nil, map[string]string{"": "coworker"}},
	"boss":        {CategoryWork, []string{"manager", "supervisor"}, nil, map[string]string{"": "report"}},
	"report":      {CategoryWork, []string{"direct report", "employee", "reports"}, nil, map[string]string{"": "boss"}},
	"mentor":      {CategoryWork, nil, nil, map[string]string{"": "mentee"}},
	"mentee":      {CategoryWork, []string{"protege", "protégé"}, nil, map[string]string{"": "mentor"}},
	"client":      {CategoryWork, []string{"customer"}, nil, map[string]string{"": "vendor"}},
	"vendor":      {CategoryWork, []string{"supplier"}, nil, map[string]string{"": "client"}},
	"cofounder":   {CategoryWork, []string{"co-founder"}, []string{"coworker"}, map[string]string{"": "cofounder"}},
	"ex-coworker": {CategoryWork, []string{"former coworker", "former colleague", "ex-colleague"}, nil, map[string]string{"": "ex-coworker"}},

	// acquaintance
	"acquaintance": {CategoryAcquaintance, []string{"acquaintances"}, nil, map[string]string{"": "acquaintance"}},
	"neighbor":     {CategoryAcquaintance, []string{"neighbour", "neighbors", "neighbours"}, nil, map[string]string{"": "neighbor"}},
	"classmate":    {CategoryAcquaintance, []string{"classmates", "schoolmate"}, nil, map[string]string{"": "classmate"}},
	"doctor":       {CategoryAcquaintance, []string{"physician", "gp"}, nil, map[string]string{"": "patient"}},
	"patient":      {CategoryAcquaintance, nil, nil, map[string]string{"": "doctor"}},
}

var (
	siblingInverse      = map[string]string{"": "sibling", "female": "sister", "male": "brother"}
	childInverse        = map[string]string{"": "child", "female": "daughter", "male": "son"}
	parentInverse       = map[string]string{"": "parent", "female": "mother", "male": "father"}
	spouseInverse       = map[string]string{"": "spouse", "female": "wife", "male": "husband"}
	partnerInverse      = map[string]string{"": "partner", "female": "girlfriend", "male": "boyfriend"}
	grandchildInverse   = map[string]string{"": "grandchild"}
	grandparentInverse  = map[string]string{"": "grandparent", "female": "grandmother", "male": "grandfather"}
	niblingInverse      = map[string]string{"": "nibling", "female": "niece", "male": "nephew"}
	auntUncleInverse    = map[string]string{"": "aunt/uncle", "female": "aunt", "male": "uncle"}
	childInLawInverse   = map[string]string{"": "child-in-law"}
	parentInLawInverse  = map[string]string{"": "parent-in-law", "female": "mother-in-law", "male": "father-in-law"}
	siblingInLawInverse = map[string]string{"": "sibling-in-law", "female": "sister-in-law", "male": "brother-in-law"}
)

// synonymIndex maps every normalized spelling to its canonical role.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string]string {
	idx := make(map[string]string, len(roleTable)*3)
	for canonical, def := range roleTable {
		idx[canonical] = canonical
		for _, syn := range def.synonyms {
			idx[normalizeRoleText(syn)] = canonical
		}
	}
	return idx
}

// normalizeRoleText lowercases, strips possessives and a leading "my", and collapses whitespace.
func normalizeRoleText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.TrimSuffix(s, "'s")
	s = strings.TrimSuffix(s, "'")
	s = strings.TrimPrefix(s, "my ")
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '_' || r == '\t' }), " ")
	return s
}

// CanonicalRole returns the canonical form of a role and whether it is in the table.
// Unknown roles normalize to their cleaned text so free-form roles still compare by equality.
func CanonicalRole(role string) (string, bool) {
	n := normalizeRoleText(role)
	if c, ok := synonymIndex[n]; ok {
		return c, true
	}
	return n, false
}

// RoleCategory returns the category a known role belongs to.
func RoleCategory(role string) (string, bool) {
	c, ok := CanonicalRole(role)
	if !ok {
		return "", false
	}
	return roleTable[c].category, true
}

// RoleMatches reports whether an edge role satisfies a query token.
// A specific role satisfies its generalizations: "sister" satisfies "sibling".
func RoleMatches(query, edgeRole string) bool {
	q, _ := CanonicalRole(query)
	e, _ := CanonicalRole(edgeRole)
	if q == "" || e == "" {
		return false
	}
	if q == e {
		return true
	}
	return generalizes(e, q, 0)
}

func generalizes(role, target string, depth int) bool {
	if depth > 4 {
		return false
	}
	for _, g := range roleTable[role].generalizes {
		if g == target || generalizes(g, target, depth+1) {
			return true
		}
	}
	return false
}

// InverseRole returns the role the other party holds, gendered by holderGender when known.
func InverseRole(role, holderGender string) string {
	c, ok := CanonicalRole(role)
	if !ok {
		return c
	}
	inv := roleTable[c].inverse
	if g, ok := inv[strings.ToLower(holderGender)]; ok {
		return g
	}
	return inv[""]
}

// KnownRoles lists canonical roles, sorted, for help output and tool descriptions.
func KnownRoles() []string {
	roles := make([]string, 0, len(roleTable))
	for r := range roleTable {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}
