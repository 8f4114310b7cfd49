package intent

import (
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

// IntentSchema defines the JSON schema for LLM intent classification.
var IntentSchema = &llm.Schema{
	Name:        "child-intent",
	Description: "Intent and emotion signals expressed in a child's spoken response",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"signals": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
					"enum": signalEnum(),
				},
				"description": "Signals clearly expressed by the child; empty when none apply",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0.0,
				"maximum":     1.0,
				"description": "Confidence (0.0-1.0) in the classification",
			},
		},
		"required":             []any{"signals", "confidence"},
		"additionalProperties": false,
	},
}

func signalEnum() []any {
	sigs := safety.IntentSignals()
	out := make([]any, len(sigs))
	for i, s := range sigs {
		out[i] = string(s)
	}
	return out
}
