package composer

import (
	"context"
	"strings"

	"github.com/abhisek/chatterbox/internal/safety"
)

// Lines keyed by tone, rotated by attempt number.
var (
	praiseLines = map[string][]string{
		safety.TonePlayful:     {"Woohoo, you got it!", "Yes! Super job!", "Amazing, that's right!"},
		safety.ToneEncouraging: {"Yes, you got it! Great work.", "That's right! Well done."},
		safety.ToneCalm:        {"That's right. Nice and steady."},
		safety.ToneSoothing:    {"That's right. You're doing so well."},
	}
	retryLines = map[string][]string{
		safety.TonePlayful:     {"Ooh, nice try! Let's try again.", "Good guess! Want to try once more?"},
		safety.ToneEncouraging: {"That one is tricky. You can do it!"},
		safety.ToneCalm:        {"That's okay. Let's slow down together."},
		safety.ToneSoothing:    {"That's okay. Let's take a little rest."},
	}
	inactiveLines = map[string][]string{
		safety.TonePlayful:     {"Are you still there? Take your time!"},
		safety.ToneEncouraging: {"I'm here when you're ready."},
		safety.ToneCalm:        {"It's okay to take your time."},
		safety.ToneSoothing:    {"I'm right here with you."},
	}
)

var calmingLines = map[safety.Level]string{
	safety.LevelOrange: "Let's take a slow breath together.",
	safety.LevelRed:    "Let's take a little rest. A grown-up can come help us.",
}

// Spoken labels for each intervention.
var choiceLabels = map[safety.Intervention]string{
	safety.InterventionRetryCard:       "try again",
	safety.InterventionSkipCard:        "try a new one",
	safety.InterventionStartBreak:      "take a break",
	safety.InterventionBubbleBreathing: "blow some bubbles",
	safety.InterventionCallGrownup:     "get a grown-up",
	safety.InterventionEndGame:         "stop playing for today",
}

// TemplateComposer builds deterministic lines from fixed tables. It is
// also the fallback whenever another composer fails.
type TemplateComposer struct {
	validators []Validator
}

// NewTemplateComposer creates a template composer with the default
// validator chain.
func NewTemplateComposer() *TemplateComposer {
	return &TemplateComposer{validators: DefaultValidators()}
}

// Compose implements Composer. It never returns an error.
func (t *TemplateComposer) Compose(_ context.Context, in Input) (Composition, error) {
	return t.Build(in), nil
}

// Build composes without a context.
func (t *TemplateComposer) Build(in Input) Composition {
	c := Composition{
		CoachLine:          coachLine(in),
		ChoicePresentation: PresentChoices(in.Interventions),
	}
	c.Validation = Validate(&c, in, t.validators)
	return c
}

func coachLine(in Input) string {
	tone := in.Config.AvatarTone
	if tone == "" {
		tone = safety.Adapt(in.Level).AvatarTone
	}

	var line string
	switch {
	case in.Event.Kind == safety.EventChildInactive:
		line = pick(inactiveLines, tone, in.Task.AttemptNumber)
	case in.Event.IsCorrect():
		line = pick(praiseLines, tone, in.Task.AttemptNumber)
	default:
		line = pick(retryLines, tone, in.Task.AttemptNumber)
	}

	if calm, ok := calmingLines[in.Level]; ok && !in.Event.IsCorrect() {
		line = calm
	}
	if in.Signals.Has(safety.SignalDistress) || in.Signals.HasAny(safety.SignalScreaming, safety.SignalCrying) {
		line = calmingLines[safety.LevelRed]
	}
	return line
}

func pick(table map[string][]string, tone string, n int) string {
	lines, ok := table[tone]
	if !ok || len(lines) == 0 {
		lines = table[safety.ToneEncouraging]
	}
	if n < 0 {
		n = 0
	}
	return lines[n%len(lines)]
}

// PresentChoices renders the menu as one spoken sentence, in menu order.
// An empty menu yields "".
func PresentChoices(menu []safety.Intervention) string {
	labels := make([]string, 0, len(menu))
	for _, iv := range menu {
		if l, ok := choiceLabels[iv]; ok {
			labels = append(labels, l)
		}
	}

	switch len(labels) {
	case 0:
		return ""
	case 1:
		return "We can " + labels[0] + "."
	case 2:
		return "We can " + labels[0] + " or " + labels[1] + "."
	default:
		return "We can " + strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1] + "."
	}
}
