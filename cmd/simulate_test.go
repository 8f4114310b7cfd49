package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/chatterbox/internal/config"
	"github.com/abhisek/chatterbox/internal/gate"
	"github.com/abhisek/chatterbox/internal/session"
)

const coldScenario = `
session: sim-1
steps:
  - card:
      id: opp-1
      category: Opposites Level 1
      question: What is the opposite of hot?
      target_answers: [cold]
  - say: warm
  - wait: 25s
  - say: it's cold!
  - card:
      id: opp-2
      category: Opposites Level 1
      question: What is the opposite of up?
      target_answers: [down]
  - wait: 61s
`

func runLines(t *testing.T, yamlText string) []map[string]any {
	t.Helper()
	sc, err := parseScenario([]byte(yamlText))
	if err != nil {
		t.Fatalf("parseScenario: %v", err)
	}

	clock := session.NewManualClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	f, err := gate.NewFactory(config.Default(), nil, nil, gate.WithClock(clock))
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}

	var buf bytes.Buffer
	if err := runScenario(context.Background(), sc, f, clock, newSimWriter(&buf, false)); err != nil {
		t.Fatalf("runScenario: %v", err)
	}

	var out []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func kinds(lines []map[string]any) string {
	var ks []string
	for _, l := range lines {
		ks = append(ks, l["kind"].(string))
	}
	return strings.Join(ks, ",")
}

func TestRunScenario(t *testing.T) {
	lines := runLines(t, coldScenario)

	// Second card shown at 25s: the prompt fires at 55s and re-arms for
	// 85s, where the task timer (armed first) wins and stops it.
	if got := kinds(lines); got != "card,response,response,card,inactivity,task_timeout,summary" {
		t.Fatalf("kinds = %s", got)
	}

	correct := lines[2]["result"].(map[string]any)
	if correct["is_correct"] != true {
		t.Errorf("second response should be correct: %v", correct)
	}
	for _, l := range lines {
		if l["kind"] == "task_timeout" {
			r := l["result"].(map[string]any)
			if r["feedback_text"] != session.TaskTimeoutMessage {
				t.Errorf("task timeout feedback = %v", r["feedback_text"])
			}
		}
	}
}

func TestRunScenario_WaitWithinInactivityIsQuiet(t *testing.T) {
	lines := runLines(t, `
steps:
  - card: {target_answers: [cold]}
  - wait: 29s
  - end: true
`)
	if got := kinds(lines); got != "card,summary" {
		t.Errorf("kinds = %s", got)
	}
}

func TestRunScenario_SpeakingDefersInactivity(t *testing.T) {
	lines := runLines(t, `
steps:
  - card: {target_answers: [cold]}
  - speaking: true
  - wait: 45s
  - speaking: false
  - wait: 10s
`)
	// Locked at 30s, so the prompt is pushed back to 60s.
	if got := kinds(lines); got != "card,summary" {
		t.Errorf("kinds = %s", got)
	}
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", `steps: []`, "no steps"},
		{"two actions", "steps:\n  - say: hi\n    end: true\n", "exactly one action"},
		{"no action", "steps:\n  - {}\n", "exactly one action"},
		{"audio alone", "steps:\n  - audio: {crying: true}\n", "exactly one action"},
		{"card without targets", "steps:\n  - card: {question: '?'}\n", "target_answers"},
		{"bad yaml", "steps: [", "parse scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScenario([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
