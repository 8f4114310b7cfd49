package llm

import (
	"reflect"
	"testing"

	"google.golang.org/genai"
)

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"matches":    map[string]any{"type": "boolean"},
			"intent":     map[string]any{"type": "string", "enum": []any{"WANTS_BREAK", "WANTS_QUIT"}},
			"coach_line": map[string]any{"type": "string", "maxLength": 160},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"signals":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"weird":      map[string]any{"type": "null"},
		},
		"required": []any{"matches", "confidence"},
	}

	schema := buildGeminiSchema(def)
	props := schema.Properties

	if schema.Type != genai.TypeObject || len(props) != 6 {
		t.Fatalf("schema = %s with %d properties", schema.Type, len(props))
	}
	types := map[string]genai.Type{
		"matches":    genai.TypeBoolean,
		"intent":     genai.TypeString,
		"confidence": genai.TypeNumber,
		"signals":    genai.TypeArray,
		"weird":      genai.TypeString,
	}
	for name, want := range types {
		if props[name].Type != want {
			t.Errorf("%s type = %s, want %s", name, props[name].Type, want)
		}
	}
	if props["signals"].Items.Type != genai.TypeString {
		t.Errorf("items type = %s", props["signals"].Items.Type)
	}
	if !reflect.DeepEqual(props["intent"].Enum, []string{"WANTS_BREAK", "WANTS_QUIT"}) {
		t.Errorf("enum = %v", props["intent"].Enum)
	}
	if !reflect.DeepEqual(schema.Required, []string{"matches", "confidence"}) {
		t.Errorf("required = %v", schema.Required)
	}

	if ml := props["coach_line"].MaxLength; ml == nil || *ml != 160 {
		t.Errorf("maxLength = %v, want 160", ml)
	}
	c := props["confidence"]
	if c.Minimum == nil || *c.Minimum != 0 || c.Maximum == nil || *c.Maximum != 1 {
		t.Errorf("bounds = %v..%v, want 0..1", c.Minimum, c.Maximum)
	}
}

func TestGeminiConfig(t *testing.T) {
	cfg := geminiConfig(Request{System: "sys", MaxTokens: 64, Temperature: 0.3, Schema: coachSchema()})
	if cfg.MaxOutputTokens != 64 || cfg.Temperature == nil || *cfg.Temperature != float32(0.3) {
		t.Errorf("limits = %d / %v", cfg.MaxOutputTokens, cfg.Temperature)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "sys" {
		t.Error("system instruction not set")
	}
	if cfg.ResponseMIMEType != "application/json" || cfg.ResponseSchema == nil {
		t.Error("structured output not configured")
	}

	bare := geminiConfig(Request{MaxTokens: 16})
	if bare.Temperature != nil || bare.SystemInstruction != nil || bare.ResponseSchema != nil {
		t.Errorf("unexpected fields on a bare request: %+v", bare)
	}
}

func TestGeminiModels(t *testing.T) {
	if got := resolveModel("gemini-flash", geminiModels); got != "gemini-2.0-flash" {
		t.Errorf("gemini-flash -> %q", got)
	}
}
