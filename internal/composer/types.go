// Package composer produces the child-facing coach line and the spoken
// presentation of the intervention menu for one pipeline pass.
package composer

import (
	"context"

	"github.com/abhisek/chatterbox/internal/safety"
)

// Composer turns a pipeline decision into words.
type Composer interface {
	Compose(ctx context.Context, in Input) (Composition, error)
}

// Input is everything a composer may use. It is read-only.
type Input struct {
	Event         safety.Event
	Level         safety.Level
	Signals       safety.SignalSet
	State         safety.State
	Interventions []safety.Intervention
	Config        safety.SessionConfig
	Task          safety.TaskContext
}

// Composition is a composer's output.
type Composition struct {
	CoachLine          string     `json:"coach_line"`
	ChoicePresentation string     `json:"choice_presentation,omitempty"`
	Validation         Validation `json:"validation"`
}

// Validation records the outcome of every validator that ran.
type Validation struct {
	Valid  bool    `json:"valid"`
	Checks []Check `json:"checks"`
	Reason string  `json:"reason,omitempty"`
}

// Check is one validator's verdict.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}
