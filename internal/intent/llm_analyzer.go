package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

// LLMConfig holds configuration for the LLM intent analyzer.
type LLMConfig struct {
	MaxTokens     int
	Temperature   float64
	MinConfidence float64
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:     128,
		Temperature:   0,
		MinConfidence: 0.6,
	}
}

// LLMAnalyzer classifies responses with an LLM.
type LLMAnalyzer struct {
	provider llm.Provider
	cfg      LLMConfig
}

// NewLLMAnalyzer creates an LLM-backed analyzer.
func NewLLMAnalyzer(provider llm.Provider, cfg LLMConfig) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider, cfg: cfg}
}

type intentOutput struct {
	Signals    []string `json:"signals"`
	Confidence float64  `json:"confidence"`
}

// Analyze implements Analyzer.
func (a *LLMAnalyzer) Analyze(ctx context.Context, text string) (safety.SignalSet, error) {
	ctx = llm.WithPurpose(ctx, "intent-analysis")

	resp, err := a.provider.Generate(ctx, llm.Request{
		System: intentSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf("Child said: %q", text)},
		},
		Schema:      IntentSchema,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM intent analysis failed: %w", err)
	}

	var out intentOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to parse intent response: %w", err)
	}

	signals := safety.NewSignalSet()
	if out.Confidence < a.cfg.MinConfidence {
		return signals, nil
	}
	allowed := safety.NewSignalSet(safety.IntentSignals()...)
	for _, s := range out.Signals {
		if sig := safety.Signal(s); allowed.Has(sig) {
			signals.Add(sig)
		}
	}
	return signals, nil
}

const intentSystemPrompt = `You listen to a young child playing a speech-therapy word game. Their words were transcribed by speech recognition.

Instructions:
- Report only signals the child clearly expresses: WANTS_BREAK (wants to rest or pause), WANTS_QUIT (wants to stop playing), FRUSTRATION (annoyed or finds it too hard), DISTRESS (upset, scared, hurt, or asking for a parent).
- An attempt at answering the question is not a signal.
- Return an empty list when nothing applies.`

// DefaultLLMTimeout bounds one LLM classification.
const DefaultLLMTimeout = 2 * time.Second

// RuleFirst runs keyword rules and consults the LLM only when the rules
// find nothing. LLM failures fall back to the rule result.
type RuleFirst struct {
	rules   *KeywordAnalyzer
	model   Analyzer
	timeout time.Duration
	logger  *slog.Logger
}

// NewRuleFirst combines keyword rules with an optional model analyzer.
// A nil model gives a rules-only analyzer.
func NewRuleFirst(rules *KeywordAnalyzer, model Analyzer, timeout time.Duration, logger *slog.Logger) *RuleFirst {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleFirst{rules: rules, model: model, timeout: timeout, logger: logger}
}

// Analyze implements Analyzer. It never returns an error.
func (r *RuleFirst) Analyze(ctx context.Context, text string) (safety.SignalSet, error) {
	signals := r.rules.Match(text)
	if len(signals) > 0 || r.model == nil || text == "" {
		return signals, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	modelSignals, err := r.model.Analyze(ctx, text)
	if err != nil {
		r.logger.Warn("intent model failed, using keyword result", "error", err)
		return signals, nil
	}
	return signals.Merge(modelSignals), nil
}
