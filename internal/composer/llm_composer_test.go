package composer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

func TestLLMComposer_Valid(t *testing.T) {
	resp := json.RawMessage(`{"coach_line":"Good thinking! That one is tricky.","choice_presentation":"We can try again, try a new one, take a break, or blow bubbles."}`)
	mock := llm.NewMockProvider(llm.MockResponse{Content: resp})
	lc := NewLLMComposer(mock, DefaultLLMConfig())

	in := input(safety.NewResponseEvent(false, "hot", nil, nil, nil, time.Now()), safety.LevelYellow, safety.NewSignalSet(safety.SignalConsecutiveErrors))
	in.Task.Card = &safety.CardContext{Question: "What is the opposite of hot?", Category: "Opposites"}

	c, err := lc.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !c.Validation.Valid {
		t.Errorf("expected valid, reason %q", c.Validation.Reason)
	}

	req := mock.Calls[0]
	if req.Schema != CoachLineSchema {
		t.Error("request did not use CoachLineSchema")
	}
	msg := req.Messages[0].Content
	for _, want := range []string{"Tone: encouraging", "What is the opposite of hot?", "- try again", "CONSECUTIVE_ERRORS"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
}

func TestLLMComposer_InvalidOutputFlagged(t *testing.T) {
	resp := json.RawMessage(`{"coach_line":"Wrong! Hurry up.","choice_presentation":""}`)
	lc := NewLLMComposer(llm.NewMockProvider(llm.MockResponse{Content: resp}), DefaultLLMConfig())

	in := input(safety.NewResponseEvent(false, "x", nil, nil, nil, time.Now()), safety.LevelYellow, safety.NewSignalSet())
	c, err := lc.Compose(context.Background(), in)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if c.Validation.Valid {
		t.Error("alarming output should be invalid")
	}
}

func TestLLMComposer_ProviderError(t *testing.T) {
	lc := NewLLMComposer(llm.NewMockProvider(), DefaultLLMConfig())
	in := input(safety.NewInactiveEvent(time.Now()), safety.LevelGreen, safety.NewSignalSet())
	if _, err := lc.Compose(context.Background(), in); err == nil {
		t.Error("expected error")
	}
}
