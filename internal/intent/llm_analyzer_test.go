package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

func TestLLMAnalyzer_Signals(t *testing.T) {
	resp := json.RawMessage(`{"signals":["WANTS_BREAK","FRUSTRATION"],"confidence":0.8}`)
	mock := llm.NewMockProvider(llm.MockResponse{Content: resp})
	a := NewLLMAnalyzer(mock, DefaultLLMConfig())

	sigs, err := a.Analyze(context.Background(), "my brain is sleepy and this is yucky")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if !sigs.Has(safety.SignalWantsBreak) || !sigs.Has(safety.SignalFrustration) || len(sigs) != 2 {
		t.Errorf("signals = %v", sigs.List())
	}
	if mock.Calls[0].Schema != IntentSchema {
		t.Error("request did not use IntentSchema")
	}
}

func TestLLMAnalyzer_FiltersUnknownAndLowConfidence(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"signals":["SCREAMING","DISTRESS"],"confidence":0.9}`)},
		llm.MockResponse{Content: json.RawMessage(`{"signals":["DISTRESS"],"confidence":0.2}`)},
	)
	a := NewLLMAnalyzer(mock, DefaultLLMConfig())

	sigs, err := a.Analyze(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if sigs.Has(safety.SignalScreaming) || !sigs.Has(safety.SignalDistress) {
		t.Errorf("only intent signals may come from text, got %v", sigs.List())
	}

	sigs, err = a.Analyze(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 {
		t.Errorf("low confidence should yield no signals, got %v", sigs.List())
	}
}

type fakeModel struct {
	sigs  safety.SignalSet
	err   error
	calls int
}

func (f *fakeModel) Analyze(context.Context, string) (safety.SignalSet, error) {
	f.calls++
	return f.sigs, f.err
}

func TestRuleFirst(t *testing.T) {
	rules := NewKeywordAnalyzer(DefaultKeywordRules())

	t.Run("rules win", func(t *testing.T) {
		model := &fakeModel{sigs: safety.NewSignalSet(safety.SignalDistress)}
		r := NewRuleFirst(rules, model, time.Second, nil)
		sigs, _ := r.Analyze(context.Background(), "I'm tired")
		if !sigs.Has(safety.SignalWantsBreak) || sigs.Has(safety.SignalDistress) {
			t.Errorf("signals = %v", sigs.List())
		}
		if model.calls != 0 {
			t.Error("model consulted although rules matched")
		}
	})

	t.Run("model fills gap", func(t *testing.T) {
		model := &fakeModel{sigs: safety.NewSignalSet(safety.SignalDistress)}
		r := NewRuleFirst(rules, model, time.Second, nil)
		sigs, _ := r.Analyze(context.Background(), "my tummy feels funny")
		if !sigs.Has(safety.SignalDistress) {
			t.Errorf("signals = %v", sigs.List())
		}
	})

	t.Run("model error falls back", func(t *testing.T) {
		model := &fakeModel{err: errors.New("down")}
		r := NewRuleFirst(rules, model, time.Second, nil)
		sigs, err := r.Analyze(context.Background(), "banana")
		if err != nil {
			t.Fatalf("RuleFirst must not return errors: %v", err)
		}
		if len(sigs) != 0 {
			t.Errorf("signals = %v", sigs.List())
		}
	})

	t.Run("rules only", func(t *testing.T) {
		r := NewRuleFirst(rules, nil, 0, nil)
		sigs, _ := r.Analyze(context.Background(), "no more")
		if !sigs.Has(safety.SignalWantsQuit) {
			t.Errorf("signals = %v", sigs.List())
		}
	})
}
