// Package answer decides whether a transcribed spoken response matches a
// card's target answers.
package answer

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// MinReverseContainment is the shortest response for which a target
// containing the response counts as a match.
const MinReverseContainment = 3

// DefaultSimilarityTimeout bounds one semantic-similarity call.
const DefaultSimilarityTimeout = 3 * time.Second

// Evaluator checks transcriptions against target answers. Literal rules run
// first; the similarity checker is consulted only for semantic categories.
type Evaluator struct {
	phonetic   PhoneticTable
	policies   PolicyTable
	similarity SimilarityChecker
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithPhoneticTable replaces the mis-hearing table.
func WithPhoneticTable(t PhoneticTable) Option {
	return func(e *Evaluator) { e.phonetic = t }
}

// WithPolicies replaces the category policy table.
func WithPolicies(t PolicyTable) Option {
	return func(e *Evaluator) { e.policies = t }
}

// WithSimilarity sets the semantic similarity fallback.
func WithSimilarity(s SimilarityChecker) Option {
	return func(e *Evaluator) { e.similarity = s }
}

// WithSimilarityTimeout bounds each similarity call.
func WithSimilarityTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an evaluator with the default tables.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		phonetic: DefaultPhoneticTable(),
		policies: DefaultPolicyTable(),
		timeout:  DefaultSimilarityTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate reports whether transcription answers the card. The first
// matching rule wins:
//
//  1. exact match after trim and lowercase
//  2. containment in either direction (reverse only for responses of at
//     least MinReverseContainment characters)
//  3. a phonetic mis-hearing of a target appears in the response
//  4. semantic similarity, for categories whose policy enables it
//
// A similarity failure or timeout counts as incorrect.
func (e *Evaluator) Evaluate(ctx context.Context, transcription string, targets []string, evalCtx *EvalContext) bool {
	response := normalize(transcription)
	if response == "" || len(targets) == 0 {
		return false
	}

	if matchLiteral(response, targets) {
		return true
	}
	if e.phonetic.matchesVariation(response, targets) {
		return true
	}

	if e.similarity == nil || evalCtx == nil || !e.policies.Lookup(evalCtx.Category).Semantic {
		return false
	}

	ok, err := e.checkSimilar(ctx, transcription, targets[0], evalCtx)
	if err != nil {
		e.logger.Warn("semantic similarity failed, treating answer as incorrect",
			"category", evalCtx.Category,
			"target", targets[0],
			"error", err)
		return false
	}
	return ok
}

type similarityResult struct {
	ok  bool
	err error
}

// checkSimilar runs the checker under the evaluator timeout. A checker that
// ignores its context is abandoned when the deadline passes.
func (e *Evaluator) checkSimilar(ctx context.Context, response, target string, evalCtx *EvalContext) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan similarityResult, 1)
	go func() {
		ok, err := e.similarity.Similar(ctx, response, target, evalCtx)
		done <- similarityResult{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func matchLiteral(response string, targets []string) bool {
	for _, t := range targets {
		target := normalize(t)
		if target == "" {
			continue
		}
		if response == target || strings.Contains(response, target) {
			return true
		}
		if len(response) >= MinReverseContainment && strings.Contains(target, response) {
			return true
		}
	}
	return false
}

// normalize lowercases, trims, and strips surrounding punctuation.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
