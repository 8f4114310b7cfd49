package session

import (
	"strings"

	"github.com/abhisek/chatterbox/internal/orchestrator"
	"github.com/abhisek/chatterbox/internal/safety"
)

// Fixed phrases spoken by the session itself.
const (
	ChoicePrompt       = "What would you like to do?"
	TaskTimeoutMessage = "Let's try a different one!"

	// TaskTimeoutResponse is recorded as the response of a timed-out card.
	TaskTimeoutResponse = "[TASK_TIMEOUT]"
)

// Result is everything the game layer needs after one turn.
type Result struct {
	UIPackage        orchestrator.UIPackage `json:"ui_package"`
	IsCorrect        bool                   `json:"is_correct"`
	ShouldSpeak      bool                   `json:"should_speak"`
	TaskTimeExceeded bool                   `json:"task_time_exceeded"`
	FeedbackText     string                 `json:"feedback_text"`
	ChoiceMessage    string                 `json:"choice_message,omitempty"`
	ChildSaid        string                 `json:"child_said"`
	TargetAnswers    []string               `json:"target_answers"`
	AttemptNumber    int                    `json:"attempt_number"`
	ResponseHistory  []string               `json:"response_history"`
}

// ChoiceOutcome reports what a choice selection did.
type ChoiceOutcome struct {
	Action   safety.Intervention `json:"action"`
	Accepted bool                `json:"accepted"`
	Phase    Phase               `json:"phase"`
	Message  string              `json:"message,omitempty"`
}

var choiceMessages = map[safety.Intervention]string{
	safety.InterventionRetryCard:       "Okay, let's try again!",
	safety.InterventionSkipCard:        "Okay, let's try a new one!",
	safety.InterventionStartBreak:      "Let's take a little break.",
	safety.InterventionBubbleBreathing: "Let's blow some bubbles. Breathe in, and out.",
	safety.InterventionCallGrownup:     "Let's get a grown-up to help.",
	safety.InterventionEndGame:         "Great playing today! See you next time.",
}

// withChoicePrompt appends the choice prompt to text when choices are on
// offer and the text does not already end with it.
func withChoicePrompt(text string, level safety.Level, menu []safety.Intervention) string {
	if level < safety.LevelYellow && len(menu) == 0 {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, ChoicePrompt) {
		return trimmed
	}
	trimmed = strings.TrimRight(trimmed, ".!?,;: ")
	if trimmed == "" {
		return ChoicePrompt
	}
	return trimmed + "! " + ChoicePrompt
}
