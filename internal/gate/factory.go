// Package gate assembles sessions from configuration: the answer
// evaluator, intent analyzer and composer are built once and shared by
// every session the factory creates.
package gate

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/abhisek/chatterbox/internal/answer"
	"github.com/abhisek/chatterbox/internal/composer"
	"github.com/abhisek/chatterbox/internal/config"
	"github.com/abhisek/chatterbox/internal/intent"
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
	"github.com/abhisek/chatterbox/internal/session"
)

// Factory creates configured sessions. It is safe for concurrent use.
type Factory struct {
	cfg       config.GateConfig
	evaluator *answer.Evaluator
	intents   intent.Analyzer
	composer  composer.Composer
	clock     session.Clock
	logger    *slog.Logger
}

// Option customizes a Factory.
type Option func(*Factory)

// WithClock sets the clock handed to every session.
func WithClock(c session.Clock) Option {
	return func(f *Factory) { f.clock = c }
}

// NewFactory wires the pipeline stages from cfg. provider may be nil
// when no LLM stage is enabled.
func NewFactory(cfg config.Config, provider llm.Provider, logger *slog.Logger, opts ...Option) (*Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LLMEnabled() && provider == nil {
		return nil, errors.New("gate: an LLM stage is enabled but no provider was given")
	}

	f := &Factory{
		cfg:    cfg.Gate,
		logger: logger,
	}
	for _, o := range opts {
		o(f)
	}

	f.evaluator = buildEvaluator(cfg, provider, logger)
	f.intents = buildIntents(cfg, provider, logger)
	if cfg.Gate.LLMComposer {
		f.composer = composer.NewLLMComposer(provider, composer.DefaultLLMConfig())
	}
	return f, nil
}

func buildEvaluator(cfg config.Config, provider llm.Provider, logger *slog.Logger) *answer.Evaluator {
	opts := []answer.Option{
		answer.WithPhoneticTable(answer.DefaultPhoneticTable().Merge(answer.PhoneticTable(cfg.Answer.PhoneticVariations))),
		answer.WithPolicies(answer.NewPolicyTable(cfg.Answer.SemanticCategories)),
		answer.WithSimilarityTimeout(cfg.Gate.SimilarityTimeout),
		answer.WithLogger(logger),
	}
	if cfg.Gate.LLMSimilarity {
		simCfg := answer.DefaultSimilarityConfig()
		simCfg.MinConfidence = cfg.Answer.MinConfidence
		opts = append(opts, answer.WithSimilarity(answer.NewLLMSimilarity(provider, simCfg)))
	}
	return answer.NewEvaluator(opts...)
}

func buildIntents(cfg config.Config, provider llm.Provider, logger *slog.Logger) intent.Analyzer {
	rules := intent.DefaultKeywordRules()
	for sig, phrases := range cfg.Intent.Keywords {
		s := safety.Signal(sig)
		rules[s] = append(rules[s], phrases...)
	}
	keywords := intent.NewKeywordAnalyzer(rules)
	if !cfg.Gate.LLMIntent {
		return keywords
	}

	llmCfg := intent.DefaultLLMConfig()
	llmCfg.MinConfidence = cfg.Intent.MinConfidence
	return intent.NewRuleFirst(keywords, intent.NewLLMAnalyzer(provider, llmCfg), cfg.Gate.IntentTimeout, logger)
}

// NewSession creates a session. An empty id gets a fresh UUID.
func (f *Factory) NewSession(id string) *session.Session {
	if id == "" {
		id = uuid.NewString()
	}
	return session.New(session.Options{
		ID:              id,
		Clock:           f.clock,
		Evaluator:       f.evaluator,
		Intents:         f.intents,
		Composer:        f.composer,
		ComposerTimeout: f.cfg.ComposerTimeout,
		TaskTimeout:     f.cfg.TaskTimeout,
		Logger:          f.logger,
	})
}
