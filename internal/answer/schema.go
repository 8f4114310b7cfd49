package answer

import "github.com/abhisek/chatterbox/internal/llm"

// SimilaritySchema defines the JSON schema for LLM answer-equivalence checks.
var SimilaritySchema = &llm.Schema{
	Name:        "answer-similarity",
	Description: "Judgement of whether a child's spoken answer is equivalent to the expected answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"equivalent": map[string]any{
				"type":        "boolean",
				"description": "True if the answer should be accepted as correct for this card",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "Confidence (0.0-1.0) in the judgement",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One short sentence explaining the judgement",
			},
		},
		"required":             []any{"equivalent", "confidence", "reasoning"},
		"additionalProperties": false,
	},
}
