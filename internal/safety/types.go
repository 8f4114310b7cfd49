package safety

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Level is the ordinal safety escalation stage for the current turn.
type Level int

const (
	LevelGreen  Level = iota // Game proceeds normally
	LevelYellow              // Offer a bounded choice set
	LevelOrange              // Calming-biased choices only
	LevelRed                 // Call a grown-up
)

var levelNames = map[Level]string{
	LevelGreen:  "GREEN",
	LevelYellow: "YELLOW",
	LevelOrange: "ORANGE",
	LevelRed:    "RED",
}

// AllLevels returns every level in ascending severity.
func AllLevels() []Level {
	return []Level{LevelGreen, LevelYellow, LevelOrange, LevelRed}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a level name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if strings.EqualFold(n, name) {
			return l, nil
		}
	}
	return LevelGreen, fmt.Errorf("unknown safety level %q", name)
}

// MaxLevel returns the more severe of two levels.
func MaxLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Signal is a discrete observation derived from an event and the current state.
type Signal string

const (
	// State-derived.
	SignalConsecutiveErrors     Signal = "CONSECUTIVE_ERRORS"
	SignalEngagementDrop        Signal = "ENGAGEMENT_DROP"
	SignalFatigueHigh           Signal = "FATIGUE_HIGH"
	SignalDysregulationDetected Signal = "DYSREGULATION_DETECTED"

	// Event pattern.
	SignalRepetitiveResponse Signal = "REPETITIVE_RESPONSE"

	// Intent / emotion.
	SignalWantsBreak       Signal = "WANTS_BREAK"
	SignalWantsQuit        Signal = "WANTS_QUIT"
	SignalFrustration      Signal = "FRUSTRATION"
	SignalDistress         Signal = "DISTRESS"
	SignalScreaming        Signal = "SCREAMING"
	SignalCrying           Signal = "CRYING"
	SignalProlongedSilence Signal = "PROLONGED_SILENCE"
)

// IntentSignals lists the signals a text-intent analyzer may emit.
func IntentSignals() []Signal {
	return []Signal{SignalWantsBreak, SignalWantsQuit, SignalFrustration, SignalDistress}
}

// IsExtreme reports whether the signal is an audio-detected extreme reaction.
func (s Signal) IsExtreme() bool {
	return s == SignalScreaming || s == SignalCrying
}

// SignalSet is an unordered set of signals.
// The zero value is an empty set ready for reads; use NewSignalSet before Add.
type SignalSet map[Signal]struct{}

// NewSignalSet builds a set from the given signals.
func NewSignalSet(signals ...Signal) SignalSet {
	s := make(SignalSet, len(signals))
	for _, sig := range signals {
		s[sig] = struct{}{}
	}
	return s
}

// Add inserts a signal. Adding an existing member is a no-op.
func (s SignalSet) Add(sig Signal) {
	s[sig] = struct{}{}
}

// Has reports membership.
func (s SignalSet) Has(sig Signal) bool {
	_, ok := s[sig]
	return ok
}

// HasAny reports whether any of the given signals is present.
func (s SignalSet) HasAny(sigs ...Signal) bool {
	for _, sig := range sigs {
		if s.Has(sig) {
			return true
		}
	}
	return false
}

// Merge returns a new set holding the members of s and other.
func (s SignalSet) Merge(other SignalSet) SignalSet {
	out := make(SignalSet, len(s)+len(other))
	for sig := range s {
		out[sig] = struct{}{}
	}
	for sig := range other {
		out[sig] = struct{}{}
	}
	return out
}

// List returns the members sorted by name, for stable output.
func (s SignalSet) List() []Signal {
	out := make([]Signal, 0, len(s))
	for sig := range s {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s SignalSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// UnmarshalJSON decodes an array of signal names.
func (s *SignalSet) UnmarshalJSON(data []byte) error {
	var list []Signal
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewSignalSet(list...)
	return nil
}

// Intervention is an offerable remedial action.
type Intervention string

const (
	InterventionRetryCard       Intervention = "RETRY_CARD"
	InterventionSkipCard        Intervention = "SKIP_CARD"
	InterventionStartBreak      Intervention = "START_BREAK"
	InterventionBubbleBreathing Intervention = "BUBBLE_BREATHING"
	InterventionCallGrownup     Intervention = "CALL_GROWNUP"
	InterventionEndGame         Intervention = "END_GAME"
)

// Known reports whether the intervention is part of the vocabulary.
func (i Intervention) Known() bool {
	switch i {
	case InterventionRetryCard, InterventionSkipCard, InterventionStartBreak,
		InterventionBubbleBreathing, InterventionCallGrownup, InterventionEndGame:
		return true
	}
	return false
}

// IsBreak reports whether taking the intervention counts as a break.
func (i Intervention) IsBreak() bool {
	return i == InterventionStartBreak || i == InterventionBubbleBreathing
}

// EventKind identifies what happened in the game.
type EventKind string

const (
	EventChildResponse EventKind = "CHILD_RESPONSE"
	EventChildInactive EventKind = "CHILD_INACTIVE"
)

// AudioSignals is the pre-detected bundle from the upstream voice layer.
type AudioSignals struct {
	Screaming        bool `json:"screaming" yaml:"screaming"`
	Crying           bool `json:"crying" yaml:"crying"`
	ProlongedSilence bool `json:"prolonged_silence" yaml:"prolonged_silence"`
}

// Event is one pipeline input. Events are values and are consumed once.
type Event struct {
	Kind EventKind

	// Correct is nil when correctness does not apply (inactivity).
	Correct *bool

	Response               string
	PreviousResponse       string
	SecondPreviousResponse string

	Audio *AudioSignals

	// Intents holds signals emitted by the text-intent analyzer.
	Intents SignalSet

	At time.Time
}

// NewResponseEvent builds a CHILD_RESPONSE event.
func NewResponseEvent(correct bool, response string, history []string, audio *AudioSignals, intents SignalSet, at time.Time) Event {
	evt := Event{
		Kind:     EventChildResponse,
		Correct:  &correct,
		Response: response,
		Audio:    audio,
		Intents:  intents,
		At:       at,
	}
	if n := len(history); n > 0 {
		evt.PreviousResponse = history[n-1]
		if n > 1 {
			evt.SecondPreviousResponse = history[n-2]
		}
	}
	return evt
}

// NewInactiveEvent builds a CHILD_INACTIVE event.
func NewInactiveEvent(at time.Time) Event {
	return Event{Kind: EventChildInactive, At: at}
}

// IsCorrect reports whether the event is a correct response.
func (e Event) IsCorrect() bool {
	return e.Correct != nil && *e.Correct
}

// IsIncorrect reports whether the event is an incorrect response.
func (e Event) IsIncorrect() bool {
	return e.Correct != nil && !*e.Correct
}

// CardContext is the active question shown to the child.
type CardContext struct {
	ID            string   `json:"id" yaml:"id"`
	Category      string   `json:"category" yaml:"category"`
	Question      string   `json:"question" yaml:"question"`
	TargetAnswers []string `json:"target_answers" yaml:"target_answers"`
	Images        []string `json:"images,omitempty" yaml:"images,omitempty"`
}

// SessionConfig holds the adaptive timing and tone parameters for a level.
type SessionConfig struct {
	PromptIntensity   int           `json:"prompt_intensity"`
	AvatarTone        string        `json:"avatar_tone"`
	InactivityTimeout time.Duration `json:"inactivity_timeout"`
	MaxTaskTime       time.Duration `json:"max_task_time"`
}

// TaskContext is what the pipeline knows about the turn beyond the event.
type TaskContext struct {
	Card          *CardContext
	AttemptNumber int
}
