package composer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLineLength bounds the coach line and the choice presentation.
const MaxLineLength = 160

// Validator checks a composition before it is spoken to the child.
// Implementations should be stateless and safe for concurrent use.
type Validator interface {
	// Name returns a short identifier used in Check records.
	Name() string

	// Validate returns nil if the composition passes.
	Validate(c *Composition, in Input) *ValidationError
}

// ValidationError describes why a composition failed a check.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// DefaultValidators returns the standard chain in run order.
func DefaultValidators() []Validator {
	return []Validator{
		&NonEmptyValidator{},
		&LengthValidator{Max: MaxLineLength},
		NewCalmVocabularyValidator(DefaultAlarmingWords()),
		&ChoiceCoverageValidator{},
	}
}

// Validate runs every validator and collects the verdicts. The first
// failure becomes the Reason.
func Validate(c *Composition, in Input, validators []Validator) Validation {
	v := Validation{Valid: true, Checks: make([]Check, 0, len(validators))}
	for _, val := range validators {
		check := Check{Name: val.Name(), Passed: true}
		if err := val.Validate(c, in); err != nil {
			check.Passed = false
			check.Detail = err.Message
			if v.Valid {
				v.Valid = false
				v.Reason = err.Error()
			}
		}
		v.Checks = append(v.Checks, check)
	}
	return v
}

// NonEmptyValidator requires a coach line.
type NonEmptyValidator struct{}

func (v *NonEmptyValidator) Name() string { return "non-empty" }

func (v *NonEmptyValidator) Validate(c *Composition, _ Input) *ValidationError {
	if strings.TrimSpace(c.CoachLine) == "" {
		return &ValidationError{Validator: v.Name(), Message: "coach_line is empty"}
	}
	return nil
}

// LengthValidator bounds the spoken text so the avatar stays brief.
type LengthValidator struct {
	Max int
}

func (v *LengthValidator) Name() string { return "max-length" }

func (v *LengthValidator) Validate(c *Composition, _ Input) *ValidationError {
	if n := utf8.RuneCountInString(c.CoachLine); n > v.Max {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("coach_line is %d characters, limit %d", n, v.Max),
		}
	}
	if n := utf8.RuneCountInString(c.ChoicePresentation); n > v.Max {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("choice_presentation is %d characters, limit %d", n, v.Max),
		}
	}
	return nil
}

// DefaultAlarmingWords lists words that must never be spoken to the child.
func DefaultAlarmingWords() []string {
	return []string{
		"wrong", "bad", "fail", "failed", "failure", "stupid", "dumb",
		"hurry", "quick", "danger", "dangerous", "emergency", "scary",
		"terrible", "awful", "punish", "never", "give up", "lazy",
	}
}

// CalmVocabularyValidator rejects alarming or shaming words.
type CalmVocabularyValidator struct {
	pattern *regexp.Regexp
}

// NewCalmVocabularyValidator compiles a whole-word matcher for words.
func NewCalmVocabularyValidator(words []string) *CalmVocabularyValidator {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	return &CalmVocabularyValidator{
		pattern: regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`),
	}
}

func (v *CalmVocabularyValidator) Name() string { return "calm-vocabulary" }

func (v *CalmVocabularyValidator) Validate(c *Composition, _ Input) *ValidationError {
	text := strings.ToLower(c.CoachLine + " " + c.ChoicePresentation)
	if m := v.pattern.FindString(text); m != "" {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("contains alarming word %q", m),
		}
	}
	return nil
}

// ChoiceCoverageValidator requires the choices to be presented whenever
// the menu is non-empty.
type ChoiceCoverageValidator struct{}

func (v *ChoiceCoverageValidator) Name() string { return "choice-coverage" }

func (v *ChoiceCoverageValidator) Validate(c *Composition, in Input) *ValidationError {
	if len(in.Interventions) == 0 {
		return nil
	}
	if strings.TrimSpace(c.ChoicePresentation) == "" {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("%d choices offered but choice_presentation is empty", len(in.Interventions)),
		}
	}
	return nil
}
