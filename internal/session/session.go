// Package session is the per-game controller: it owns the current card,
// the response history, the inactivity and task-timeout timers, and runs
// the Safety-Gate pipeline for each child response or timer fire.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/chatterbox/internal/answer"
	"github.com/abhisek/chatterbox/internal/composer"
	"github.com/abhisek/chatterbox/internal/intent"
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/orchestrator"
	"github.com/abhisek/chatterbox/internal/safety"
)

// DefaultTaskTimeout caps the time allowed on one card.
const DefaultTaskTimeout = 60 * time.Second

// Phase is where the session is in the turn cycle.
type Phase int

const (
	PhaseIdle               Phase = iota // No active card
	PhaseWaitingForResponse              // Card shown, timers armed
	PhaseEvaluating                      // A response is being processed
	PhaseChoicesShown                    // Intervention menu on screen
	PhasePaused                          // Break or grown-up until resumed
	PhaseEnded                           // Game over
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "idle",
	PhaseWaitingForResponse: "waiting_for_response",
	PhaseEvaluating:         "evaluating",
	PhaseChoicesShown:       "choices_shown",
	PhasePaused:             "paused",
	PhaseEnded:              "ended",
}

func (p Phase) String() string {
	if n, ok := phaseNames[p]; ok {
		return n
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// AnswerEvaluator judges a transcription against a card's targets.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, transcription string, targets []string, evalCtx *answer.EvalContext) bool
}

// Options configures a Session. Zero values get defaults.
type Options struct {
	ID              string
	Clock           Clock
	Evaluator       AnswerEvaluator
	Intents         intent.Analyzer
	Composer        composer.Composer
	ComposerTimeout time.Duration
	Gate            InterruptGate
	TaskTimeout     time.Duration
	Logger          *slog.Logger
}

// Session is safe for concurrent use. All operations and timer fires are
// serialized; callbacks run after the session lock is released.
type Session struct {
	mu sync.Mutex

	id          string
	clock       Clock
	orch        *orchestrator.Orchestrator
	evaluator   AnswerEvaluator
	intents     intent.Analyzer
	gate        InterruptGate
	taskTimeout time.Duration
	logger      *slog.Logger

	card          *safety.CardContext
	cardGen       uint64
	attempts      int
	history       []string
	cardStarted   time.Time
	sessionStart  time.Time
	waiting       bool
	phase         Phase
	inactivity    timerSlot
	task          timerSlot
	lastConfig    safety.SessionConfig
	lastLevel     safety.Level
	menu          []safety.Intervention
	summary       Summary
	onInactivity  func(Result)
	onTaskTimeout func(Result)
}

// New creates a session in the Idle phase.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Evaluator == nil {
		opts.Evaluator = answer.NewEvaluator(answer.WithLogger(opts.Logger))
	}
	if opts.Gate == nil {
		opts.Gate = NewMutexGate()
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger
	if opts.ID != "" {
		logger = logger.With("session", opts.ID)
	}

	now := opts.Clock.Now()
	return &Session{
		id:    opts.ID,
		clock: opts.Clock,
		orch: orchestrator.New(now, orchestrator.Options{
			Composer:        opts.Composer,
			ComposerTimeout: opts.ComposerTimeout,
			Logger:          logger,
		}),
		evaluator:    opts.Evaluator,
		intents:      opts.Intents,
		gate:         opts.Gate,
		taskTimeout:  opts.TaskTimeout,
		logger:       logger,
		sessionStart: now,
		phase:        PhaseIdle,
		lastConfig:   safety.Adapt(safety.LevelGreen),
		lastLevel:    safety.LevelGreen,
		summary:      newSummary(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Gate returns the session's interrupt gate.
func (s *Session) Gate() InterruptGate { return s.gate }

// SetInactivityCallback registers the receiver for inactivity results.
func (s *Session) SetInactivityCallback(cb func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInactivity = cb
}

// SetTaskTimeoutCallback registers the receiver for task-timeout results.
func (s *Session) SetTaskTimeoutCallback(cb func(Result)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTaskTimeout = cb
}

// SetCurrentCard shows a new card: both timers are cancelled, then armed
// afresh for the new card. Attempt count and history carry over.
func (s *Session) SetCurrentCard(card safety.CardContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseEnded {
		s.logger.Warn("card set on ended session ignored", "card", card.ID)
		return
	}

	s.stopTimersLocked()
	s.menu = nil
	c := card
	c.TargetAnswers = slices.Clone(card.TargetAnswers)
	c.Images = slices.Clone(card.Images)
	s.card = &c
	s.cardGen++
	s.cardStarted = s.clock.Now()
	s.summary.Cards++
	s.startWaitingLocked()

	s.logger.Debug("card shown", "card", c.ID, "category", c.Category)
}

// startWaitingLocked enters WaitingForResponse and arms both timers.
func (s *Session) startWaitingLocked() {
	s.phase = PhaseWaitingForResponse
	s.waiting = true
	s.armTaskLocked()
	s.armInactivityLocked()
}

func (s *Session) taskDuration() time.Duration {
	d := s.taskTimeout
	if m := s.lastConfig.MaxTaskTime; m > 0 && m < d {
		d = m
	}
	return d
}

func (s *Session) armTaskLocked() {
	cardGen := s.cardGen
	s.task.arm(s.clock, s.taskDuration(), func(gen uint64) {
		s.fireTaskTimeout(gen, cardGen)
	})
}

func (s *Session) armInactivityLocked() {
	cardGen := s.cardGen
	s.inactivity.arm(s.clock, s.lastConfig.InactivityTimeout, func(gen uint64) {
		s.fireInactivity(gen, cardGen)
	})
}

func (s *Session) stopTimersLocked() {
	s.inactivity.stop()
	s.task.stop()
	s.waiting = false
}

// StopInactivityTimer cancels the inactivity timer. Repeated calls are
// no-ops; the session is no longer waiting afterwards.
func (s *Session) StopInactivityTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactivity.stop()
	s.waiting = false
}

// StopTaskTimer cancels the task-timeout timer. Repeated calls are no-ops.
func (s *Session) StopTaskTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task.stop()
}

// ProcessChildResponse evaluates one transcription and runs the pipeline.
// It always returns a usable Result.
func (s *Session) ProcessChildResponse(ctx context.Context, transcription string, audio *safety.AudioSignals) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseEnded {
		s.logger.Warn("response on ended session ignored")
		return s.quietResultLocked(transcription)
	}

	// The inactivity timer restarts after evaluation if the card stays open.
	s.inactivity.stop()
	s.waiting = false
	prevPhase := s.phase
	paused := prevPhase == PhasePaused
	s.phase = PhaseEvaluating
	now := s.clock.Now()

	targets := s.targetsLocked()

	correct, intents := s.analyzeLocked(ctx, transcription, !paused)

	var evt safety.Event
	switch {
	case paused:
		// Speech during a break or grown-up call carries signals only. The
		// card stays parked until ResumeSession.
		evt = safety.NewResponseEvent(false, transcription, s.history, audio, intents, now)
		evt.Correct = nil
	case s.card != nil:
		s.attempts++
		evt = safety.NewResponseEvent(correct, transcription, s.history, audio, intents, now)
	default:
		// Free speech with no card on screen carries signals but no
		// correctness.
		evt = safety.NewResponseEvent(false, transcription, s.history, audio, intents, now)
		evt.Correct = nil
	}
	s.history = append(s.history, transcription)

	pkg := s.runPipelineLocked(ctx, evt)
	if !paused {
		s.summary.recordResponse(evt.IsCorrect())
	}

	switch {
	case paused:
		s.stopTimersLocked()
		s.phase = PhasePaused
		if len(pkg.Interventions) > 0 {
			s.menu = pausedMenu(pkg.Interventions)
		}
	case len(pkg.Interventions) > 0:
		s.stopTimersLocked()
		s.phase = PhaseChoicesShown
		s.menu = slices.Clone(pkg.Interventions)
	case s.card == nil:
		s.phase = prevPhase
		if s.phase == PhaseEvaluating {
			s.phase = PhaseIdle
		}
	case correct:
		s.stopTimersLocked()
		s.phase = PhaseIdle
		s.menu = nil
	case prevPhase == PhaseChoicesShown:
		// The earlier menu is still on screen; only RETRY_CARD reopens
		// the card.
		s.stopTimersLocked()
		s.phase = PhaseChoicesShown
	default:
		s.phase = PhaseWaitingForResponse
		s.waiting = true
		if !s.task.active() {
			s.armTaskLocked()
		}
		s.armInactivityLocked()
	}

	return Result{
		UIPackage:       pkg,
		IsCorrect:       evt.IsCorrect(),
		ShouldSpeak:     true,
		FeedbackText:    withChoicePrompt(pkg.CoachLine, pkg.Level, pkg.Interventions),
		ChoiceMessage:   pkg.ChoicePresentation,
		ChildSaid:       transcription,
		TargetAnswers:   targets,
		AttemptNumber:   s.attempts,
		ResponseHistory: slices.Clone(s.history),
	}
}

// pausedMenu drops the card actions from a menu raised during a pause.
func pausedMenu(menu []safety.Intervention) []safety.Intervention {
	return slices.DeleteFunc(slices.Clone(menu), func(iv safety.Intervention) bool {
		return iv == safety.InterventionRetryCard || iv == safety.InterventionSkipCard
	})
}

// analyzeLocked runs intent analysis and, when evaluate is set, answer
// evaluation concurrently.
func (s *Session) analyzeLocked(ctx context.Context, transcription string, evaluate bool) (bool, safety.SignalSet) {
	var (
		correct bool
		intents safety.SignalSet
	)

	g, gctx := errgroup.WithContext(llm.WithSession(ctx, s.id))
	if card := s.card; card != nil && evaluate {
		evalCtx := &answer.EvalContext{
			Category: card.Category,
			Question: card.Question,
			Images:   card.Images,
		}
		g.Go(func() error {
			correct = s.evaluator.Evaluate(gctx, transcription, card.TargetAnswers, evalCtx)
			return nil
		})
	}
	if s.intents != nil {
		text := transcription
		if s.card != nil {
			text = intent.StripTargets(transcription, s.card.TargetAnswers)
		}
		g.Go(func() error {
			sigs, err := s.intents.Analyze(gctx, text)
			if err != nil {
				s.logger.Warn("intent analysis failed", "error", err)
				return nil
			}
			intents = sigs
			return nil
		})
	}
	_ = g.Wait()
	return correct, intents
}

func (s *Session) targetsLocked() []string {
	if s.card == nil {
		return nil
	}
	return slices.Clone(s.card.TargetAnswers)
}

func (s *Session) runPipelineLocked(ctx context.Context, evt safety.Event) orchestrator.UIPackage {
	task := safety.TaskContext{Card: s.card, AttemptNumber: s.attempts}
	pkg := s.orch.ProcessEvent(llm.WithSession(ctx, s.id), evt, task)
	s.lastConfig = pkg.SessionConfig
	s.lastLevel = pkg.Level
	s.summary.recordLevel(pkg.Level)
	return pkg
}

func (s *Session) fireInactivity(gen, cardGen uint64) {
	s.mu.Lock()
	result, cb, ok := s.inactivityLocked(gen, cardGen)
	s.mu.Unlock()

	if ok && cb != nil {
		cb(result)
	}
}

func (s *Session) inactivityLocked(gen, cardGen uint64) (Result, func(Result), bool) {
	if !s.inactivity.current(gen) || !s.waiting || s.cardGen != cardGen || s.phase != PhaseWaitingForResponse {
		s.logger.Debug("stale inactivity timer ignored")
		return Result{}, nil, false
	}
	s.inactivity.fired()

	if s.gate.IsLocked() {
		s.logger.Debug("avatar speaking, deferring inactivity check")
		s.armInactivityLocked()
		return Result{}, nil, false
	}

	pkg := s.runPipelineLocked(context.Background(), safety.NewInactiveEvent(s.clock.Now()))
	s.summary.Inactivity++

	if pkg.Level == safety.LevelGreen && len(pkg.Interventions) == 0 {
		s.armInactivityLocked()
	} else {
		s.stopTimersLocked()
		s.phase = PhaseChoicesShown
		s.menu = slices.Clone(pkg.Interventions)
	}

	return Result{
		UIPackage:       pkg,
		ShouldSpeak:     true,
		FeedbackText:    withChoicePrompt(pkg.CoachLine, pkg.Level, pkg.Interventions),
		ChoiceMessage:   pkg.ChoicePresentation,
		TargetAnswers:   s.targetsLocked(),
		AttemptNumber:   s.attempts,
		ResponseHistory: slices.Clone(s.history),
	}, s.onInactivity, true
}

func (s *Session) fireTaskTimeout(gen, cardGen uint64) {
	s.mu.Lock()
	result, cb, ok := s.taskTimeoutLocked(gen, cardGen)
	s.mu.Unlock()

	if ok && cb != nil {
		cb(result)
	}
}

func (s *Session) taskTimeoutLocked(gen, cardGen uint64) (Result, func(Result), bool) {
	if !s.task.current(gen) || !s.waiting || s.card == nil || s.cardGen != cardGen {
		s.logger.Debug("stale task timer ignored")
		return Result{}, nil, false
	}
	s.task.fired()
	s.inactivity.stop()

	card := s.card
	evt := safety.NewResponseEvent(false, TaskTimeoutResponse, s.history, nil, nil, s.clock.Now())
	pkg := s.runPipelineLocked(context.Background(), evt)
	s.summary.TaskTimeouts++

	// The card is force-skipped.
	s.orch.ResetForNewCard()
	s.stopTimersLocked()
	s.card = nil
	s.cardGen++
	s.phase = PhaseIdle
	s.menu = nil

	s.logger.Info("task time exceeded", "card", card.ID)

	return Result{
		UIPackage:        pkg,
		ShouldSpeak:      true,
		TaskTimeExceeded: true,
		FeedbackText:     TaskTimeoutMessage,
		TargetAnswers:    slices.Clone(card.TargetAnswers),
		AttemptNumber:    s.attempts,
		ResponseHistory:  slices.Clone(s.history),
	}, s.onTaskTimeout, true
}

// HandleChoiceSelection applies the child's pick from the intervention
// menu last offered. END_GAME is always honoured. Anything else off the
// menu, unknown actions included, stops the inactivity timer and is
// reported as not accepted.
func (s *Session) HandleChoiceSelection(action string) ChoiceOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	iv := safety.Intervention(action)
	out := ChoiceOutcome{Action: iv}

	if s.phase == PhaseEnded {
		s.logger.Warn("choice on ended session ignored", "action", action)
		out.Phase = s.phase
		return out
	}

	if iv != safety.InterventionEndGame && !slices.Contains(s.menu, iv) {
		if _, known := choiceMessages[iv]; known {
			s.logger.Warn("choice not on offer", "action", action, "menu", s.menu)
		} else {
			s.logger.Warn("unknown choice action", "action", action)
		}
		s.inactivity.stop()
		s.waiting = false
		out.Phase = s.phase
		return out
	}

	now := s.clock.Now()
	switch iv {
	case safety.InterventionRetryCard:
		if s.card == nil {
			s.logger.Warn("retry with no active card", "action", action)
			s.inactivity.stop()
			s.waiting = false
			out.Phase = s.phase
			return out
		}
		s.stopTimersLocked()
		s.cardStarted = now
		s.startWaitingLocked()

	case safety.InterventionSkipCard:
		s.orch.ResetForNewCard()
		s.stopTimersLocked()
		s.card = nil
		s.cardGen++
		s.phase = PhaseIdle

	case safety.InterventionStartBreak, safety.InterventionBubbleBreathing:
		s.orch.ApplyBreak(now)
		s.stopTimersLocked()
		s.phase = PhasePaused
		s.summary.Breaks++

	case safety.InterventionCallGrownup:
		s.stopTimersLocked()
		s.phase = PhasePaused
		s.summary.GrownupCalls++

	case safety.InterventionEndGame:
		s.endLocked()
	}

	s.menu = nil
	s.logger.Debug("choice applied", "action", action, "phase", s.phase.String())
	out.Accepted = true
	out.Phase = s.phase
	out.Message = choiceMessages[iv]
	return out
}

// ResumeSession leaves the Paused phase. With a card still on screen the
// session waits for a response again with fresh timers. Reports whether
// the session was paused.
func (s *Session) ResumeSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePaused {
		return false
	}
	s.menu = nil
	if s.card == nil {
		s.phase = PhaseIdle
		return true
	}
	s.cardStarted = s.clock.Now()
	s.startWaitingLocked()
	return true
}

// End stops both timers and ends the game.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *Session) endLocked() {
	s.stopTimersLocked()
	s.card = nil
	s.cardGen++
	s.menu = nil
	s.phase = PhaseEnded
	s.summary.Duration = s.clock.Now().Sub(s.sessionStart)
}

// NewGame resets attempts, history, and safety state. A session that has
// ended becomes usable again.
func (s *Session) NewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.stopTimersLocked()
	s.card = nil
	s.cardGen++
	s.attempts = 0
	s.history = nil
	s.sessionStart = now
	s.cardStarted = time.Time{}
	s.phase = PhaseIdle
	s.menu = nil
	s.lastConfig = safety.Adapt(safety.LevelGreen)
	s.lastLevel = safety.LevelGreen
	s.summary = newSummary()
	s.orch.Reset(now)
}

func (s *Session) quietResultLocked(transcription string) Result {
	state := s.orch.State()
	return Result{
		UIPackage: orchestrator.UIPackage{
			Level:         s.lastLevel,
			Signals:       safety.NewSignalSet(),
			State:         state,
			SessionConfig: s.lastConfig,
			Overlay: orchestrator.Overlay{
				Signals:     []safety.Signal{},
				State:       state,
				SafetyLevel: s.lastLevel.String(),
			},
		},
		ChildSaid:       transcription,
		AttemptNumber:   s.attempts,
		ResponseHistory: slices.Clone(s.history),
	}
}

// AttemptCount returns the number of responses to cards this game.
func (s *Session) AttemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// ResponseHistory returns a copy of every transcription this game.
func (s *Session) ResponseHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// CardElapsed returns the time since the current card was shown, or zero
// with no card.
func (s *Session) CardElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.card == nil {
		return 0
	}
	return s.clock.Now().Sub(s.cardStarted)
}

// SessionDuration returns the time since the game started.
func (s *Session) SessionDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Now().Sub(s.sessionStart)
}

// Phase returns where the session is in the turn cycle.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// IsWaitingForResponse reports whether a card is open and the timers run.
func (s *Session) IsWaitingForResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting
}

// LastLevel returns the Level from the latest pipeline pass.
func (s *Session) LastLevel() safety.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLevel
}

// Menu returns the interventions the child may currently pick from.
func (s *Session) Menu() []safety.Intervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.menu)
}

// LastConfig returns the session parameters from the latest pipeline pass.
func (s *Session) LastConfig() safety.SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConfig
}

// State returns the current safety state.
func (s *Session) State() safety.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch.State()
}

// CurrentCard returns a copy of the active card, or nil.
func (s *Session) CurrentCard() *safety.CardContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.card == nil {
		return nil
	}
	c := *s.card
	c.TargetAnswers = slices.Clone(s.card.TargetAnswers)
	c.Images = slices.Clone(s.card.Images)
	return &c
}

// TimersActive reports whether the inactivity and task timers are armed.
func (s *Session) TimersActive() (inactivity, task bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inactivity.active(), s.task.active()
}
