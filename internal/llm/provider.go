// Package llm is the model access layer shared by the gate's optional
// language stages: semantic answer matching, intent analysis and coach
// line composition. Every stage treats a Provider error as "fall back to
// the rules", so implementations only need to fail fast and typed.
package llm

import (
	"context"
	"encoding/json"
)

// Provider generates one structured reply per call. Content in a
// successful Response has already been checked against Request.Schema.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	ModelID() string
}

// Request is a single-turn prompt. Gate stages send one user message and
// keep MaxTokens small; Temperature zero means the provider default.
type Request struct {
	System      string
	Messages    []Message
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema names a JSON Schema. Name doubles as the cache key for the
// compiled validator and as the structured-output name sent to OpenAI,
// so it must be unique per shape, e.g. "coach-line".
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is a validated reply. StopReason is normalized to "end" or
// "max_tokens".
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// resolveModel maps a friendly model name to a provider model ID. Names
// not in the table are passed through as literal IDs.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
