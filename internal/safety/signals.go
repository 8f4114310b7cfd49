package safety

import "strings"

// Detector thresholds.
const (
	ConsecutiveErrorsThreshold = 3
	EngagementDropThreshold    = 3.0
	FatigueHighThreshold       = 6.0
	DysregulationThreshold     = 5.0
)

// Detect derives the signal set for an event against the given state.
// It never modifies the state.
func Detect(evt Event, state State) SignalSet {
	return EventSignals(evt).Merge(StateSignals(state))
}

// StateSignals returns the signals implied by the state metrics alone.
func StateSignals(state State) SignalSet {
	out := NewSignalSet()
	if state.ConsecutiveErrors >= ConsecutiveErrorsThreshold {
		out.Add(SignalConsecutiveErrors)
	}
	if state.EngagementLevel <= EngagementDropThreshold {
		out.Add(SignalEngagementDrop)
	}
	if state.FatigueLevel >= FatigueHighThreshold {
		out.Add(SignalFatigueHigh)
	}
	if state.DysregulationLevel >= DysregulationThreshold {
		out.Add(SignalDysregulationDetected)
	}
	return out
}

// EventSignals returns the signals carried by or patterned in the event.
func EventSignals(evt Event) SignalSet {
	out := NewSignalSet()

	if evt.Kind == EventChildResponse && isRepeat(evt.Response, evt.PreviousResponse) {
		out.Add(SignalRepetitiveResponse)
	}

	if a := evt.Audio; a != nil {
		if a.Screaming {
			out.Add(SignalScreaming)
		}
		if a.Crying {
			out.Add(SignalCrying)
		}
		if a.ProlongedSilence {
			out.Add(SignalProlongedSilence)
		}
	}

	for sig := range evt.Intents {
		out.Add(sig)
	}
	return out
}

func isRepeat(response, previous string) bool {
	r := strings.TrimSpace(response)
	return r != "" && r == strings.TrimSpace(previous)
}
