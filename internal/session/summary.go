package session

import (
	"time"

	"github.com/abhisek/chatterbox/internal/safety"
)

// Summary is the end-of-game report for the grown-up.
type Summary struct {
	Duration     time.Duration        `json:"duration"`
	Cards        int                  `json:"cards"`
	Responses    int                  `json:"responses"`
	Correct      int                  `json:"correct"`
	Accuracy     float64              `json:"accuracy"`
	Inactivity   int                  `json:"inactivity_prompts"`
	TaskTimeouts int                  `json:"task_timeouts"`
	Breaks       int                  `json:"breaks"`
	GrownupCalls int                  `json:"grownup_calls"`
	PeakLevel    safety.Level         `json:"peak_level"`
	LevelCounts  map[safety.Level]int `json:"-"`
}

func newSummary() Summary {
	return Summary{LevelCounts: make(map[safety.Level]int)}
}

func (s *Summary) recordResponse(correct bool) {
	s.Responses++
	if correct {
		s.Correct++
	}
	s.Accuracy = float64(s.Correct) / float64(s.Responses)
}

func (s *Summary) recordLevel(l safety.Level) {
	s.LevelCounts[l]++
	s.PeakLevel = safety.MaxLevel(s.PeakLevel, l)
}

// Summary returns the running game report. Duration is measured to now
// unless the game has ended.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.summary
	out.LevelCounts = make(map[safety.Level]int, len(s.summary.LevelCounts))
	for l, n := range s.summary.LevelCounts {
		out.LevelCounts[l] = n
	}
	if s.phase != PhaseEnded {
		out.Duration = s.clock.Now().Sub(s.sessionStart)
	}
	return out
}
