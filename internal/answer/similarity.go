package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/chatterbox/internal/llm"
)

// EvalContext carries what the evaluator knows about the card.
type EvalContext struct {
	Category string
	Question string
	Images   []string
}

// SimilarityChecker decides whether a response means the same as a target
// in the context of a card.
type SimilarityChecker interface {
	Similar(ctx context.Context, response, target string, evalCtx *EvalContext) (bool, error)
}

// SimilarityConfig holds configuration for the LLM similarity checker.
type SimilarityConfig struct {
	MaxTokens     int
	Temperature   float64
	MinConfidence float64
}

// DefaultSimilarityConfig returns sensible defaults.
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		MaxTokens:     128,
		Temperature:   0,
		MinConfidence: 0.5,
	}
}

// LLMSimilarity asks an LLM whether a child's answer is acceptable.
type LLMSimilarity struct {
	provider llm.Provider
	cfg      SimilarityConfig
}

// NewLLMSimilarity creates an LLM-backed similarity checker.
func NewLLMSimilarity(provider llm.Provider, cfg SimilarityConfig) *LLMSimilarity {
	return &LLMSimilarity{provider: provider, cfg: cfg}
}

type similarityOutput struct {
	Equivalent bool    `json:"equivalent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Similar implements SimilarityChecker.
func (s *LLMSimilarity) Similar(ctx context.Context, response, target string, evalCtx *EvalContext) (bool, error) {
	ctx = llm.WithPurpose(ctx, "answer-similarity")

	userMsg, err := buildSimilarityMessage(response, target, evalCtx)
	if err != nil {
		return false, fmt.Errorf("build similarity prompt: %w", err)
	}

	resp, err := s.provider.Generate(ctx, llm.Request{
		System: similaritySystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      SimilaritySchema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return false, fmt.Errorf("LLM similarity failed: %w", err)
	}

	var out similarityOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return false, fmt.Errorf("failed to parse similarity response: %w", err)
	}
	return out.Equivalent && out.Confidence >= s.cfg.MinConfidence, nil
}

const similaritySystemPrompt = `You judge answers in a speech-therapy word game for young children. The child's answer was transcribed by speech recognition and may contain small transcription errors.

Instructions:
- Decide whether the child's answer should be accepted for the card.
- Accept answers that mean the same as the expected answer for this card type (for example another valid synonym or opposite).
- Do not accept unrelated words, even if they sound similar.
- Keep reasoning to one sentence.`

type similarityPrompt struct {
	Response string
	Target   string
	Category string
	Question string
}

var similarityUserTemplate = template.Must(template.New("similarity").Parse(`Card type: {{.Category}}
{{if .Question}}Question: {{.Question}}
{{end}}Expected answer: {{.Target}}
Child said: {{.Response}}`))

func buildSimilarityMessage(response, target string, evalCtx *EvalContext) (string, error) {
	p := similarityPrompt{
		Response: strings.TrimSpace(response),
		Target:   target,
		Category: "unknown",
	}
	if evalCtx != nil {
		if evalCtx.Category != "" {
			p.Category = evalCtx.Category
		}
		p.Question = evalCtx.Question
	}

	var buf bytes.Buffer
	if err := similarityUserTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
