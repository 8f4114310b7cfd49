package safety

import (
	"encoding/json"
	"math"
	"time"
)

// Bounds for the continuous state metrics.
const (
	MinMetric = 0.0
	MaxMetric = 10.0

	// InitialEngagement is where a fresh session starts.
	InitialEngagement = 7.0
)

// State deltas applied by the Updater.
const (
	correctEngagementGain     = 1.0
	correctDysregulationDrop  = 1.0
	incorrectEngagementDrop   = 0.5
	incorrectDysregulationAdd = 0.5
	incorrectFatigueAdd       = 0.2
	inactiveEngagementDrop    = 1.5
	repetitiveEngagementDrop  = 0.5
	frustrationDysregulation  = 2.0
	distressDysregulation     = 3.0
	screamingDysregulation    = 3.0
	cryingDysregulation       = 3.0
	silenceEngagementDrop     = 1.0
	wantsBreakFatigueAdd      = 2.0
	wantsQuitEngagementDrop   = 2.0
	fatiguePerMinute          = 0.5

	breakFatigueRelief       = 3.0
	breakDysregulationRelief = 2.0
)

// State holds the continuous per-session metrics.
// Only the Updater produces new States; callers treat them as values.
type State struct {
	EngagementLevel    float64       `json:"engagement_level"`
	DysregulationLevel float64       `json:"dysregulation_level"`
	FatigueLevel       float64       `json:"fatigue_level"`
	ConsecutiveErrors  int           `json:"consecutive_errors"`
	TotalErrors        int           `json:"total_errors"`
	ErrorFrequency     float64       `json:"error_frequency"` // errors per minute
	TimeInSession      time.Duration `json:"time_in_session"`
	TimeSinceBreak     time.Duration `json:"time_since_break"`
	LastActivity       time.Time     `json:"last_activity"`

	startedAt   time.Time
	lastBreakAt time.Time
	updatedAt   time.Time
}

// NewState returns the starting state for a session that begins at now.
func NewState(now time.Time) State {
	return State{
		EngagementLevel: InitialEngagement,
		LastActivity:    now,
		startedAt:       now,
		lastBreakAt:     now,
		updatedAt:       now,
	}
}

// StartedAt returns when the session state was created.
func (s State) StartedAt() time.Time { return s.startedAt }

// Updater produces the next State from an event and its signals.
type Updater struct{}

// NewUpdater creates a state updater.
func NewUpdater() *Updater {
	return &Updater{}
}

// Update applies one event. The input state is not modified.
func (u *Updater) Update(state State, evt Event, signals SignalSet) State {
	next := state
	now := evt.At
	if now.IsZero() || now.Before(next.updatedAt) {
		now = next.updatedAt
	}

	elapsed := now.Sub(next.updatedAt)
	next.FatigueLevel += elapsed.Minutes() * fatiguePerMinute
	next.updatedAt = now

	switch evt.Kind {
	case EventChildResponse:
		next.LastActivity = now
		switch {
		case evt.IsCorrect():
			next.ConsecutiveErrors = 0
			next.EngagementLevel += correctEngagementGain
			next.DysregulationLevel -= correctDysregulationDrop
		case evt.IsIncorrect():
			next.ConsecutiveErrors++
			next.TotalErrors++
			next.EngagementLevel -= incorrectEngagementDrop
			next.DysregulationLevel += incorrectDysregulationAdd
			next.FatigueLevel += incorrectFatigueAdd
		}
	case EventChildInactive:
		next.EngagementLevel -= inactiveEngagementDrop
	}

	if signals.Has(SignalRepetitiveResponse) {
		next.EngagementLevel -= repetitiveEngagementDrop
	}
	if signals.Has(SignalFrustration) {
		next.DysregulationLevel += frustrationDysregulation
	}
	if signals.Has(SignalDistress) {
		next.DysregulationLevel += distressDysregulation
	}
	if signals.Has(SignalScreaming) {
		next.DysregulationLevel += screamingDysregulation
	}
	if signals.Has(SignalCrying) {
		next.DysregulationLevel += cryingDysregulation
	}
	if signals.Has(SignalProlongedSilence) {
		next.EngagementLevel -= silenceEngagementDrop
	}
	if signals.Has(SignalWantsBreak) {
		next.FatigueLevel += wantsBreakFatigueAdd
	}
	if signals.Has(SignalWantsQuit) {
		next.EngagementLevel -= wantsQuitEngagementDrop
	}

	next.advanceClock(now)
	next.clamp()
	return next
}

// ApplyBreak returns the state after the child actually took a break.
func (u *Updater) ApplyBreak(state State, now time.Time) State {
	next := state
	if now.Before(next.updatedAt) {
		now = next.updatedAt
	}
	next.lastBreakAt = now
	next.updatedAt = now
	next.FatigueLevel -= breakFatigueRelief
	next.DysregulationLevel -= breakDysregulationRelief
	next.ConsecutiveErrors = 0
	next.advanceClock(now)
	next.clamp()
	return next
}

// ResetForNewCard clears the per-card error streak. Changing cards alone
// never calls this; it is reserved for skips.
func (u *Updater) ResetForNewCard(state State) State {
	next := state
	next.ConsecutiveErrors = 0
	return next
}

func (s *State) advanceClock(now time.Time) {
	if d := now.Sub(s.startedAt); d > s.TimeInSession {
		s.TimeInSession = d
	}
	s.TimeSinceBreak = max(now.Sub(s.lastBreakAt), 0)
	minutes := math.Max(s.TimeInSession.Minutes(), 1)
	s.ErrorFrequency = float64(s.TotalErrors) / minutes
}

func (s *State) clamp() {
	s.EngagementLevel = clampMetric(s.EngagementLevel)
	s.DysregulationLevel = clampMetric(s.DysregulationLevel)
	s.FatigueLevel = clampMetric(s.FatigueLevel)
	if s.ConsecutiveErrors < 0 {
		s.ConsecutiveErrors = 0
	}
}

func clampMetric(v float64) float64 {
	return math.Max(MinMetric, math.Min(MaxMetric, v))
}

// MarshalJSON reports the clocks in seconds for debug overlays.
func (s State) MarshalJSON() ([]byte, error) {
	type metrics struct {
		EngagementLevel    float64   `json:"engagement_level"`
		DysregulationLevel float64   `json:"dysregulation_level"`
		FatigueLevel       float64   `json:"fatigue_level"`
		ConsecutiveErrors  int       `json:"consecutive_errors"`
		TotalErrors        int       `json:"total_errors"`
		ErrorFrequency     float64   `json:"error_frequency"`
		TimeInSession      float64   `json:"time_in_session"`
		TimeSinceBreak     float64   `json:"time_since_break"`
		LastActivity       time.Time `json:"last_activity"`
	}
	return json.Marshal(metrics{
		EngagementLevel:    s.EngagementLevel,
		DysregulationLevel: s.DysregulationLevel,
		FatigueLevel:       s.FatigueLevel,
		ConsecutiveErrors:  s.ConsecutiveErrors,
		TotalErrors:        s.TotalErrors,
		ErrorFrequency:     s.ErrorFrequency,
		TimeInSession:      s.TimeInSession.Seconds(),
		TimeSinceBreak:     s.TimeSinceBreak.Seconds(),
		LastActivity:       s.LastActivity,
	})
}
