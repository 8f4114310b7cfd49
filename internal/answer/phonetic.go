package answer

import (
	"strings"
	"unicode"
)

// PhoneticTable maps a target word to the mis-hearings speech recognition
// commonly produces for it.
type PhoneticTable map[string][]string

// DefaultPhoneticTable returns the built-in mis-hearing table. Variations
// that are themselves likely answers to another card ("what", "low") are
// left out.
func DefaultPhoneticTable() PhoneticTable {
	return PhoneticTable{
		"cold":  {"called", "coal", "code"},
		"hot":   {"hat", "hut"},
		"big":   {"pig", "bag", "dig"},
		"small": {"smaller", "mall", "smell"},
		"happy": {"hoppy", "happen"},
		"sad":   {"said", "sat"},
		"fast":  {"vast", "pass"},
		"slow":  {"snow", "flow"},
		"up":    {"hop"},
		"down":  {"town", "dawn"},
		"wet":   {"vet", "wed"},
		"dry":   {"try", "die"},
		"loud":  {"cloud", "lout"},
		"quiet": {"quite", "diet"},
		"night": {"knight", "nice"},
		"day":   {"they", "dey"},
		"tall":  {"toll", "doll"},
		"short": {"sort", "shot"},
		"full":  {"fool", "fall"},
		"empty": {"empti", "entry"},
	}
}

// Variations returns the mis-hearings recorded for target.
func (t PhoneticTable) Variations(target string) []string {
	return t[normalize(target)]
}

// Merge returns a table holding t's entries overlaid by other's.
func (t PhoneticTable) Merge(other PhoneticTable) PhoneticTable {
	out := make(PhoneticTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[normalize(k)] = v
	}
	return out
}

// matchesVariation reports whether any variation of a target appears as
// whole words in the response, so "hop" does not match "shop".
func (t PhoneticTable) matchesVariation(response string, targets []string) bool {
	padded := " " + strings.Join(words(response), " ") + " "
	for _, target := range targets {
		for _, v := range t.Variations(target) {
			w := words(v)
			if len(w) > 0 && strings.Contains(padded, " "+strings.Join(w, " ")+" ") {
				return true
			}
		}
	}
	return false
}

// words splits s into lowercase words. Apostrophes stay inside a word.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
