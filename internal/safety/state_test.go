package safety

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestUpdate_ConsecutiveErrors(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)

	for i := 1; i <= 4; i++ {
		evt := NewResponseEvent(false, "x", nil, nil, nil, t0.Add(time.Duration(i)*time.Second))
		s = u.Update(s, evt, EventSignals(evt))
		if s.ConsecutiveErrors != i {
			t.Fatalf("after %d wrong answers: ConsecutiveErrors = %d", i, s.ConsecutiveErrors)
		}
	}

	evt := NewResponseEvent(true, "cold", nil, nil, nil, t0.Add(5*time.Second))
	s = u.Update(s, evt, EventSignals(evt))
	if s.ConsecutiveErrors != 0 {
		t.Errorf("correct answer should reset streak, got %d", s.ConsecutiveErrors)
	}
	if s.TotalErrors != 4 {
		t.Errorf("TotalErrors = %d, want 4", s.TotalErrors)
	}
}

func TestUpdate_Clamping(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)

	heavy := NewSignalSet(SignalDistress, SignalScreaming, SignalCrying, SignalFrustration, SignalWantsQuit, SignalWantsBreak)
	for i := 0; i < 10; i++ {
		evt := NewResponseEvent(false, "no", nil, nil, nil, t0.Add(time.Duration(i)*time.Minute*5))
		s = u.Update(s, evt, heavy)
		for name, v := range map[string]float64{
			"engagement":    s.EngagementLevel,
			"dysregulation": s.DysregulationLevel,
			"fatigue":       s.FatigueLevel,
		} {
			if v < MinMetric || v > MaxMetric {
				t.Fatalf("iteration %d: %s = %v out of [0,10]", i, name, v)
			}
		}
	}
	if s.DysregulationLevel != MaxMetric {
		t.Errorf("dysregulation = %v, want clamped at 10", s.DysregulationLevel)
	}
	if s.EngagementLevel != MinMetric {
		t.Errorf("engagement = %v, want clamped at 0", s.EngagementLevel)
	}

	for i := 0; i < 20; i++ {
		evt := NewResponseEvent(true, "yes", nil, nil, nil, s.LastActivity.Add(time.Second))
		s = u.Update(s, evt, NewSignalSet())
	}
	if s.DysregulationLevel != MinMetric {
		t.Errorf("dysregulation = %v, want clamped at 0", s.DysregulationLevel)
	}
}

func TestUpdate_Clocks(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)

	evt := NewResponseEvent(false, "x", nil, nil, nil, t0.Add(2*time.Minute))
	s = u.Update(s, evt, NewSignalSet())
	if s.TimeInSession != 2*time.Minute {
		t.Errorf("TimeInSession = %s, want 2m", s.TimeInSession)
	}
	if s.TimeSinceBreak != 2*time.Minute {
		t.Errorf("TimeSinceBreak = %s, want 2m", s.TimeSinceBreak)
	}
	if s.ErrorFrequency != 0.5 {
		t.Errorf("ErrorFrequency = %v, want 0.5/min", s.ErrorFrequency)
	}
	// 0.5 per minute plus the incorrect-answer bump.
	if s.FatigueLevel != 1.2 {
		t.Errorf("FatigueLevel = %v, want 1.2", s.FatigueLevel)
	}

	// A stale event time never moves the clocks backwards.
	stale := NewInactiveEvent(t0.Add(time.Minute))
	s2 := u.Update(s, stale, NewSignalSet())
	if s2.TimeInSession < s.TimeInSession {
		t.Errorf("TimeInSession went backwards: %s -> %s", s.TimeInSession, s2.TimeInSession)
	}

	s3 := u.ApplyBreak(s2, t0.Add(3*time.Minute))
	if s3.TimeSinceBreak != 0 {
		t.Errorf("TimeSinceBreak after break = %s, want 0", s3.TimeSinceBreak)
	}
	if s3.TimeInSession != 3*time.Minute {
		t.Errorf("TimeInSession after break = %s, want 3m", s3.TimeInSession)
	}

	evt = NewInactiveEvent(t0.Add(4 * time.Minute))
	s4 := u.Update(s3, evt, NewSignalSet())
	if s4.TimeSinceBreak != time.Minute {
		t.Errorf("TimeSinceBreak = %s, want 1m", s4.TimeSinceBreak)
	}
}

func TestUpdate_ErrorFrequencyFloorsAtOneMinute(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)
	for i := 0; i < 3; i++ {
		evt := NewResponseEvent(false, "x", nil, nil, nil, t0.Add(time.Duration(i+1)*time.Second))
		s = u.Update(s, evt, NewSignalSet())
	}
	if s.ErrorFrequency != 3 {
		t.Errorf("ErrorFrequency = %v, want 3 (errors over a one-minute floor)", s.ErrorFrequency)
	}
}

func TestUpdate_InputNotModified(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)
	before := s
	evt := NewResponseEvent(false, "x", nil, nil, nil, t0.Add(time.Minute))
	_ = u.Update(s, evt, NewSignalSet(SignalDistress))
	if s != before {
		t.Error("Update modified its input")
	}
}

func TestApplyBreakAndResetForNewCard(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)
	s.FatigueLevel = 7
	s.DysregulationLevel = 6
	s.ConsecutiveErrors = 4

	b := u.ApplyBreak(s, t0.Add(time.Minute))
	if b.FatigueLevel != 4 || b.DysregulationLevel != 4 || b.ConsecutiveErrors != 0 {
		t.Errorf("after break: %+v", b)
	}

	r := u.ResetForNewCard(s)
	if r.ConsecutiveErrors != 0 {
		t.Errorf("ResetForNewCard kept streak %d", r.ConsecutiveErrors)
	}
	if r.FatigueLevel != s.FatigueLevel {
		t.Error("ResetForNewCard should only touch the error streak")
	}
}

func TestUpdate_InactivityDrainsEngagement(t *testing.T) {
	u := NewUpdater()
	s := NewState(t0)
	for i := 1; i <= 3; i++ {
		s = u.Update(s, NewInactiveEvent(t0.Add(time.Duration(i)*30*time.Second)), NewSignalSet())
	}
	// 7 - 3*1.5
	if s.EngagementLevel != 2.5 {
		t.Errorf("EngagementLevel = %v, want 2.5", s.EngagementLevel)
	}
	if got := Assess(s, StateSignals(s)); got != LevelYellow {
		t.Errorf("Assess() = %s, want YELLOW after three silent timeouts", got)
	}
}
