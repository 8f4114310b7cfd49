package composer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

// LLMConfig holds configuration for the LLM composer.
type LLMConfig struct {
	MaxTokens   int
	Temperature float64
	Validators  []Validator
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:   200,
		Temperature: 0.7,
		Validators:  DefaultValidators(),
	}
}

// LLMComposer writes coach lines with an LLM. Its output always carries a
// Validation; callers fall back when it is not Valid.
type LLMComposer struct {
	provider llm.Provider
	cfg      LLMConfig
}

// NewLLMComposer creates an LLM-backed composer.
func NewLLMComposer(provider llm.Provider, cfg LLMConfig) *LLMComposer {
	if cfg.Validators == nil {
		cfg.Validators = DefaultValidators()
	}
	return &LLMComposer{provider: provider, cfg: cfg}
}

type coachOutput struct {
	CoachLine          string `json:"coach_line"`
	ChoicePresentation string `json:"choice_presentation"`
}

// Compose implements Composer.
func (l *LLMComposer) Compose(ctx context.Context, in Input) (Composition, error) {
	ctx = llm.WithPurpose(ctx, "coach-line")

	resp, err := l.provider.Generate(ctx, llm.Request{
		System: coachSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildCoachMessage(in)},
		},
		Schema:      CoachLineSchema,
		MaxTokens:   l.cfg.MaxTokens,
		Temperature: l.cfg.Temperature,
	})
	if err != nil {
		return Composition{}, fmt.Errorf("LLM composition failed: %w", err)
	}

	var raw coachOutput
	if err := json.Unmarshal(resp.Content, &raw); err != nil {
		return Composition{}, fmt.Errorf("failed to parse coach line response: %w", err)
	}

	c := Composition{
		CoachLine:          strings.TrimSpace(raw.CoachLine),
		ChoicePresentation: strings.TrimSpace(raw.ChoicePresentation),
	}
	c.Validation = Validate(&c, in, l.cfg.Validators)
	return c, nil
}

const coachSystemPrompt = `You are the friendly avatar in a speech-therapy word game for young children (ages 4-8).

Rules:
- Speak in one or two short sentences, under 160 characters.
- Use simple, warm words. Never say an answer was wrong or bad, never rush the child, never mention danger.
- Match the requested tone.
- When choices are listed, offer all of them in one sentence in choice_presentation. When none are listed, leave it empty.
- Do not ask a question in coach_line when choices are offered.`

func buildCoachMessage(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tone: %s\n", in.Config.AvatarTone)
	fmt.Fprintf(&b, "Energy (0-3): %d\n", in.Config.PromptIntensity)

	switch {
	case in.Event.Kind == safety.EventChildInactive:
		b.WriteString("What happened: the child has been quiet for a while\n")
	case in.Event.IsCorrect():
		fmt.Fprintf(&b, "What happened: the child answered correctly (%q)\n", in.Event.Response)
	default:
		fmt.Fprintf(&b, "What happened: the child's answer did not match (%q)\n", in.Event.Response)
	}

	if card := in.Task.Card; card != nil {
		fmt.Fprintf(&b, "Card: %s\n", card.Question)
		if card.Category != "" {
			fmt.Fprintf(&b, "Card type: %s\n", card.Category)
		}
	}
	if in.Task.AttemptNumber > 0 {
		fmt.Fprintf(&b, "Attempt: %d\n", in.Task.AttemptNumber)
	}

	if sigs := in.Signals.List(); len(sigs) > 0 {
		names := make([]string, len(sigs))
		for i, s := range sigs {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, "Observed: %s\n", strings.Join(names, ", "))
	}

	b.WriteString("\nChoices to offer:\n")
	if len(in.Interventions) == 0 {
		b.WriteString("None\n")
	}
	for _, iv := range in.Interventions {
		fmt.Fprintf(&b, "- %s\n", choiceLabels[iv])
	}
	return b.String()
}
