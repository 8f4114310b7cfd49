package gate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/chatterbox/internal/config"
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

func card(category string, targets ...string) safety.CardContext {
	return safety.CardContext{ID: "c1", Category: category, Question: "What is the opposite of hot?", TargetAnswers: targets}
}

func TestNewFactory_RulesOnly(t *testing.T) {
	f, err := NewFactory(config.Default(), nil, nil)
	require.NoError(t, err)

	s := f.NewSession("")
	defer s.End()
	assert.Len(t, s.ID(), 36, "expected a generated UUID")

	s.SetCurrentCard(card("Opposites Level 1", "cold"))
	r := s.ProcessChildResponse(context.Background(), "it's cold!", nil)
	assert.True(t, r.IsCorrect)
	assert.False(t, r.UIPackage.UsedFallback)
	assert.NotEmpty(t, r.FeedbackText)
}

func TestNewFactory_RequiresProviderForLLMStages(t *testing.T) {
	cfg := config.Default()
	cfg.Gate.LLMComposer = true
	_, err := NewFactory(cfg, nil, nil)
	assert.Error(t, err)
}

func TestNewFactory_ConfiguredTables(t *testing.T) {
	cfg := config.Default()
	cfg.Answer.PhoneticVariations = map[string][]string{"frog": {"fog"}}
	cfg.Intent.Keywords = map[string][]string{string(safety.SignalWantsBreak): {"snack time"}}

	f, err := NewFactory(cfg, nil, nil)
	require.NoError(t, err)

	s := f.NewSession("s-tables")
	defer s.End()

	s.SetCurrentCard(card("Animals", "frog"))
	r := s.ProcessChildResponse(context.Background(), "fog", nil)
	assert.True(t, r.IsCorrect, "configured phonetic variation should be accepted")

	s.SetCurrentCard(card("Animals", "dog"))
	r = s.ProcessChildResponse(context.Background(), "is it snack time", nil)
	assert.False(t, r.IsCorrect)
	assert.True(t, r.UIPackage.Signals.Has(safety.SignalWantsBreak))
	assert.Equal(t, safety.LevelYellow, r.UIPackage.Level)
}

func TestNewFactory_LLMStages(t *testing.T) {
	cfg := config.Default()
	cfg.Gate.LLMSimilarity = true
	cfg.Gate.LLMComposer = true

	mock := llm.NewMockProvider(
		llm.MockResponse{Content: json.RawMessage(`{"equivalent":true,"confidence":0.9,"reasoning":"freezing means very cold"}`)},
		llm.MockResponse{Content: json.RawMessage(`{"coach_line":"Freezing works! Great thinking.","choice_presentation":""}`)},
	)
	f, err := NewFactory(cfg, mock, nil)
	require.NoError(t, err)

	s := f.NewSession("s-llm")
	defer s.End()

	s.SetCurrentCard(card("Antonyms", "cold"))
	r := s.ProcessChildResponse(context.Background(), "freezing", nil)
	assert.True(t, r.IsCorrect)
	assert.Equal(t, "Freezing works! Great thinking.", r.FeedbackText)
	assert.False(t, r.UIPackage.UsedFallback)
	assert.Equal(t, 2, mock.CallCount())
}
