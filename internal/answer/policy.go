package answer

import (
	"regexp"
	"strings"
)

// Policy describes how answers for a card category are judged.
type Policy struct {
	// Semantic enables the similarity fallback when literal matching fails.
	Semantic bool
}

// PolicyTable maps category families to policies. A card category matches
// a family when its normalized form starts with the family name, singular
// or plural.
type PolicyTable map[string]Policy

var levelSuffix = regexp.MustCompile(`\s*(level|lvl)\s*\d+\s*$`)

// DefaultPolicyTable enables semantic matching for the word-relationship
// families where many answers are acceptable.
func DefaultPolicyTable() PolicyTable {
	return NewPolicyTable([]string{"synonyms", "antonyms", "opposites", "describing words"})
}

// NewPolicyTable builds a table with Semantic enabled for each family.
func NewPolicyTable(semanticFamilies []string) PolicyTable {
	t := make(PolicyTable, len(semanticFamilies))
	for _, f := range semanticFamilies {
		if f = NormalizeCategory(f); f != "" {
			t[f] = Policy{Semantic: true}
		}
	}
	return t
}

// NormalizeCategory lowercases a category and drops any trailing
// "Level N" marker, so "Synonyms Level 2" becomes "synonyms".
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = levelSuffix.ReplaceAllString(c, "")
	return strings.Join(strings.Fields(c), " ")
}

// Lookup returns the policy for a card category. Unknown categories get
// the zero Policy (literal matching only).
func (t PolicyTable) Lookup(category string) Policy {
	c := NormalizeCategory(category)
	if c == "" {
		return Policy{}
	}
	if p, ok := t[c]; ok {
		return p
	}
	for family, p := range t {
		if strings.HasPrefix(c, strings.TrimSuffix(family, "s")) {
			return p
		}
	}
	return Policy{}
}
