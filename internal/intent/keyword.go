// Package intent turns a child's free-text response into intent and
// emotion signals (wanting a break, wanting to stop, frustration, distress).
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/abhisek/chatterbox/internal/safety"
)

// Analyzer extracts intent signals from a transcription.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (safety.SignalSet, error)
}

// KeywordRules maps each intent signal to the phrases that trigger it.
type KeywordRules map[safety.Signal][]string

// DefaultKeywordRules returns the built-in phrase lists.
func DefaultKeywordRules() KeywordRules {
	return KeywordRules{
		safety.SignalWantsBreak: {
			"break", "tired", "rest", "sleepy", "pause", "wait a minute",
			"need a minute", "stop for a bit",
		},
		safety.SignalWantsQuit: {
			"quit", "stop", "i'm done", "im done", "no more", "go home",
			"don't want to play", "dont want to play", "all done", "finished",
		},
		safety.SignalFrustration: {
			"too hard", "so hard", "can't do", "cant do", "stupid", "hate",
			"ugh", "annoying", "boring", "grr",
		},
		safety.SignalDistress: {
			"scared", "afraid", "hurts", "it hurt", "help me", "mommy", "daddy",
			"i want my mom", "i want my dad", "crying", "don't like this",
		},
	}
}

type keywordMatcher struct {
	signal  safety.Signal
	pattern *regexp.Regexp
}

// KeywordAnalyzer matches whole-word phrases. It never returns an error.
type KeywordAnalyzer struct {
	matchers []keywordMatcher
}

// NewKeywordAnalyzer compiles rules into an analyzer.
func NewKeywordAnalyzer(rules KeywordRules) *KeywordAnalyzer {
	a := &KeywordAnalyzer{}
	for _, sig := range safety.IntentSignals() {
		phrases := rules[sig]
		if len(phrases) == 0 {
			continue
		}
		quoted := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if p = normalizeText(p); p != "" {
				quoted = append(quoted, regexp.QuoteMeta(p))
			}
		}
		a.matchers = append(a.matchers, keywordMatcher{
			signal:  sig,
			pattern: regexp.MustCompile(`(^|\s)(` + strings.Join(quoted, "|") + `)($|\s)`),
		})
	}
	return a
}

// Analyze implements Analyzer.
func (a *KeywordAnalyzer) Analyze(_ context.Context, text string) (safety.SignalSet, error) {
	return a.Match(text), nil
}

// Match returns the signals whose phrases occur in text.
func (a *KeywordAnalyzer) Match(text string) safety.SignalSet {
	out := safety.NewSignalSet()
	norm := normalizeText(text)
	if norm == "" {
		return out
	}
	for _, m := range a.matchers {
		if m.pattern.MatchString(norm) {
			out.Add(m.signal)
		}
	}
	return out
}

// normalizeText lowercases, turns curly apostrophes straight, and replaces
// punctuation other than apostrophes with spaces.
func normalizeText(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\'':
			return r
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// StripTargets removes whole-word occurrences of the card's target answers
// from text, so "stop" is not read as a wish to quit when it is the answer.
func StripTargets(text string, targets []string) string {
	norm := normalizeText(text)
	for _, t := range targets {
		t = normalizeText(t)
		if t == "" {
			continue
		}
		re := regexp.MustCompile(`(^|\s)` + regexp.QuoteMeta(t) + `($|\s)`)
		for re.MatchString(norm) {
			norm = re.ReplaceAllString(norm, " ")
		}
		norm = strings.Join(strings.Fields(norm), " ")
	}
	return norm
}
