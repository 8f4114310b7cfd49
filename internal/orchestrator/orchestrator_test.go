package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abhisek/chatterbox/internal/composer"
	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func wrong(at time.Duration) safety.Event {
	return safety.NewResponseEvent(false, "banana", nil, nil, nil, t0.Add(at))
}

func TestProcessEvent_EscalatesWithErrors(t *testing.T) {
	o := New(t0, Options{})
	task := safety.TaskContext{AttemptNumber: 1}

	wantLevels := []safety.Level{
		safety.LevelGreen,  // 1 error
		safety.LevelGreen,  // 2
		safety.LevelYellow, // 3
		safety.LevelYellow, // 4
		safety.LevelOrange, // 5
	}
	for i, want := range wantLevels {
		pkg := o.ProcessEvent(context.Background(), wrong(time.Duration(i+1)*time.Second), task)
		if pkg.Level != want {
			t.Errorf("after %d errors: level = %s, want %s", i+1, pkg.Level, want)
		}
	}

	if o.State().ConsecutiveErrors != 5 {
		t.Errorf("ConsecutiveErrors = %d", o.State().ConsecutiveErrors)
	}
}

func TestProcessEvent_PackageIsConsistent(t *testing.T) {
	o := New(t0, Options{})
	var pkg UIPackage
	for i := 0; i < 3; i++ {
		pkg = o.ProcessEvent(context.Background(), wrong(time.Duration(i+1)*time.Second), safety.TaskContext{})
	}

	if pkg.Level != safety.LevelYellow {
		t.Fatalf("level = %s, want YELLOW", pkg.Level)
	}
	if !pkg.Signals.Has(safety.SignalConsecutiveErrors) {
		t.Errorf("signals = %v", pkg.Signals.List())
	}
	if len(pkg.Interventions) != 4 || pkg.Interventions[0] != safety.InterventionRetryCard {
		t.Errorf("interventions = %v", pkg.Interventions)
	}
	if pkg.SessionConfig != safety.Adapt(safety.LevelYellow) {
		t.Errorf("config = %+v", pkg.SessionConfig)
	}
	if pkg.Overlay.SafetyLevel != "YELLOW" || pkg.Overlay.State != pkg.State {
		t.Errorf("overlay = %+v", pkg.Overlay)
	}
	if pkg.ChoicePresentation == "" || !pkg.Validation.Valid || pkg.UsedFallback {
		t.Errorf("composition = %q/%q valid=%v fallback=%v", pkg.CoachLine, pkg.ChoicePresentation, pkg.Validation.Valid, pkg.UsedFallback)
	}
}

func TestProcessEvent_DistressForcesGrownupMenu(t *testing.T) {
	o := New(t0, Options{})
	evt := safety.NewResponseEvent(false, "I'm scared", nil, nil, safety.NewSignalSet(safety.SignalDistress), t0.Add(time.Second))
	pkg := o.ProcessEvent(context.Background(), evt, safety.TaskContext{})

	if len(pkg.Interventions) == 0 || pkg.Interventions[0] != safety.InterventionCallGrownup {
		t.Errorf("interventions = %v", pkg.Interventions)
	}
}

func TestProcessEvent_WantsBreakReachesMenu(t *testing.T) {
	o := New(t0, Options{})
	evt := safety.NewResponseEvent(true, "cold", nil, nil, safety.NewSignalSet(safety.SignalWantsBreak), t0.Add(time.Second))
	pkg := o.ProcessEvent(context.Background(), evt, safety.TaskContext{})
	if pkg.Level != safety.LevelYellow || len(pkg.Interventions) == 0 {
		t.Errorf("level = %s interventions = %v", pkg.Level, pkg.Interventions)
	}
}

type failingComposer struct{ err error }

func (f failingComposer) Compose(context.Context, composer.Input) (composer.Composition, error) {
	return composer.Composition{}, f.err
}

type slowComposer struct{}

func (slowComposer) Compose(ctx context.Context, _ composer.Input) (composer.Composition, error) {
	<-make(chan struct{})
	return composer.Composition{}, nil
}

func TestProcessEvent_ComposerFallback(t *testing.T) {
	tests := []struct {
		name string
		c    composer.Composer
	}{
		{"error", failingComposer{err: errors.New("boom")}},
		{"timeout", slowComposer{}},
		{"invalid", composer.NewLLMComposer(llm.NewMockProvider(llm.MockResponse{
			Content: json.RawMessage(`{"coach_line":"","choice_presentation":""}`),
		}), composer.DefaultLLMConfig())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(t0, Options{Composer: tt.c, ComposerTimeout: 20 * time.Millisecond})
			pkg := o.ProcessEvent(context.Background(), wrong(time.Second), safety.TaskContext{})
			if !pkg.UsedFallback {
				t.Error("expected fallback")
			}
			if pkg.CoachLine == "" || !pkg.Validation.Valid {
				t.Errorf("fallback composition = %q valid=%v", pkg.CoachLine, pkg.Validation.Valid)
			}
		})
	}
}

func TestProcessEvent_LLMComposerUsed(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"coach_line":"You got it, superstar!","choice_presentation":""}`),
	})
	o := New(t0, Options{Composer: composer.NewLLMComposer(mock, composer.DefaultLLMConfig())})
	evt := safety.NewResponseEvent(true, "cold", nil, nil, nil, t0.Add(time.Second))
	pkg := o.ProcessEvent(context.Background(), evt, safety.TaskContext{})
	if pkg.UsedFallback || pkg.CoachLine != "You got it, superstar!" {
		t.Errorf("coach line = %q fallback=%v", pkg.CoachLine, pkg.UsedFallback)
	}
}

func TestBreakResetAndNewGame(t *testing.T) {
	o := New(t0, Options{})
	for i := 0; i < 4; i++ {
		o.ProcessEvent(context.Background(), wrong(time.Duration(i+1)*time.Second), safety.TaskContext{})
	}

	o.ResetForNewCard()
	if o.State().ConsecutiveErrors != 0 || o.State().TotalErrors != 4 {
		t.Errorf("after reset for new card: %+v", o.State())
	}

	o.ApplyBreak(t0.Add(time.Minute))
	if o.State().TimeSinceBreak != 0 {
		t.Errorf("TimeSinceBreak = %s", o.State().TimeSinceBreak)
	}

	o.Reset(t0.Add(2 * time.Minute))
	if o.State().TotalErrors != 0 || o.State().EngagementLevel != safety.InitialEngagement {
		t.Errorf("after Reset: %+v", o.State())
	}
}
