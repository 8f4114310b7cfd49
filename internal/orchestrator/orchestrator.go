// Package orchestrator runs one Safety-Gate pipeline pass per event:
// detect, update, assess, select, adapt, compose.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/abhisek/chatterbox/internal/composer"
	"github.com/abhisek/chatterbox/internal/safety"
)

// DefaultComposerTimeout bounds one composition.
const DefaultComposerTimeout = 4 * time.Second

// UIPackage is the output of one pipeline pass.
type UIPackage struct {
	Level              safety.Level          `json:"level"`
	Signals            safety.SignalSet      `json:"signals"`
	State              safety.State          `json:"state"`
	Interventions      []safety.Intervention `json:"interventions"`
	SessionConfig      safety.SessionConfig  `json:"session_config"`
	CoachLine          string                `json:"coach_line"`
	ChoicePresentation string                `json:"choice_presentation,omitempty"`
	Validation         composer.Validation   `json:"validation"`
	Overlay            Overlay               `json:"overlay"`
	UsedFallback       bool                  `json:"used_fallback"`
}

// Overlay is the debug view shown to therapists.
type Overlay struct {
	Signals     []safety.Signal `json:"signals"`
	State       safety.State    `json:"state"`
	SafetyLevel string          `json:"safety_level"`
}

// Options configures an Orchestrator.
type Options struct {
	Composer        composer.Composer
	ComposerTimeout time.Duration
	Logger          *slog.Logger
}

// Orchestrator owns one session's State. It is not safe for concurrent
// use; the session serializes calls.
type Orchestrator struct {
	state    safety.State
	updater  *safety.Updater
	composer composer.Composer
	fallback *composer.TemplateComposer
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an orchestrator whose state starts at now.
// A nil Composer means the template composer is used directly.
func New(now time.Time, opts Options) *Orchestrator {
	o := &Orchestrator{
		state:    safety.NewState(now),
		updater:  safety.NewUpdater(),
		composer: opts.Composer,
		fallback: composer.NewTemplateComposer(),
		timeout:  opts.ComposerTimeout,
		logger:   opts.Logger,
	}
	if o.timeout <= 0 {
		o.timeout = DefaultComposerTimeout
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() safety.State {
	return o.state
}

// ProcessEvent runs the full pipeline for one event and commits the new
// state. Composer failures never fail the pass.
func (o *Orchestrator) ProcessEvent(ctx context.Context, evt safety.Event, task safety.TaskContext) UIPackage {
	// Signals observed against the state the event arrived in drive the
	// update; signals against the updated state drive the assessment.
	observed := safety.Detect(evt, o.state)
	o.state = o.updater.Update(o.state, evt, observed)
	signals := safety.Detect(evt, o.state)

	level := safety.Assess(o.state, signals)
	menu := safety.SelectInterventions(level, signals)
	cfg := safety.Adapt(level)

	in := composer.Input{
		Event:         evt,
		Level:         level,
		Signals:       signals,
		State:         o.state,
		Interventions: menu,
		Config:        cfg,
		Task:          task,
	}
	comp, usedFallback := o.compose(ctx, in)

	o.logger.Debug("pipeline pass",
		"event", evt.Kind,
		"level", level.String(),
		"signals", signals.List(),
		"interventions", menu,
		"fallback", usedFallback)

	return UIPackage{
		Level:              level,
		Signals:            signals,
		State:              o.state,
		Interventions:      menu,
		SessionConfig:      cfg,
		CoachLine:          comp.CoachLine,
		ChoicePresentation: comp.ChoicePresentation,
		Validation:         comp.Validation,
		Overlay: Overlay{
			Signals:     signals.List(),
			State:       o.state,
			SafetyLevel: level.String(),
		},
		UsedFallback: usedFallback,
	}
}

type composeResult struct {
	comp composer.Composition
	err  error
}

func (o *Orchestrator) compose(ctx context.Context, in composer.Input) (composer.Composition, bool) {
	if o.composer == nil {
		return o.fallback.Build(in), false
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan composeResult, 1)
	go func() {
		c, err := o.composer.Compose(ctx, in)
		done <- composeResult{comp: c, err: err}
	}()

	var r composeResult
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	switch {
	case r.err != nil:
		o.logger.Warn("composer failed, using template", "error", r.err)
	case !r.comp.Validation.Valid:
		o.logger.Warn("composer output rejected, using template", "reason", r.comp.Validation.Reason)
	default:
		return r.comp, false
	}
	return o.fallback.Build(in), true
}

// ApplyBreak records that the child took a break.
func (o *Orchestrator) ApplyBreak(now time.Time) {
	o.state = o.updater.ApplyBreak(o.state, now)
}

// ResetForNewCard clears the per-card error streak.
func (o *Orchestrator) ResetForNewCard() {
	o.state = o.updater.ResetForNewCard(o.state)
}

// Reset discards all state, as for a new game starting at now.
func (o *Orchestrator) Reset(now time.Time) {
	o.state = safety.NewState(now)
}
