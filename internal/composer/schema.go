package composer

import "github.com/abhisek/chatterbox/internal/llm"

// CoachLineSchema defines the JSON schema for LLM-composed coach lines.
var CoachLineSchema = &llm.Schema{
	Name:        "coach-line",
	Description: "What the game avatar says to the child this turn",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"coach_line": map[string]any{
				"type":        "string",
				"maxLength":   MaxLineLength,
				"description": "One or two short, warm sentences for the child",
			},
			"choice_presentation": map[string]any{
				"type":        "string",
				"maxLength":   MaxLineLength,
				"description": "One sentence offering the listed choices, or empty when there are none",
			},
		},
		"required":             []any{"coach_line", "choice_presentation"},
		"additionalProperties": false,
	},
}
