package safety

import (
	"reflect"
	"testing"
)

func TestSelectInterventions(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		signals SignalSet
		want    []Intervention
	}{
		{"green", LevelGreen, NewSignalSet(), []Intervention{}},
		{
			"yellow", LevelYellow, NewSignalSet(SignalConsecutiveErrors),
			[]Intervention{InterventionRetryCard, InterventionSkipCard, InterventionStartBreak, InterventionBubbleBreathing},
		},
		{
			"orange", LevelOrange, NewSignalSet(),
			[]Intervention{InterventionBubbleBreathing, InterventionStartBreak, InterventionSkipCard},
		},
		{
			"red", LevelRed, NewSignalSet(),
			[]Intervention{InterventionCallGrownup, InterventionStartBreak, InterventionBubbleBreathing},
		},
		{
			"distress on green escalates menu", LevelGreen, NewSignalSet(SignalDistress),
			[]Intervention{InterventionCallGrownup, InterventionStartBreak, InterventionBubbleBreathing},
		},
		{
			"crying on yellow escalates menu", LevelYellow, NewSignalSet(SignalCrying),
			[]Intervention{InterventionCallGrownup, InterventionStartBreak, InterventionBubbleBreathing},
		},
		{
			"wants quit adds end game", LevelYellow, NewSignalSet(SignalWantsQuit),
			[]Intervention{InterventionRetryCard, InterventionSkipCard, InterventionStartBreak, InterventionBubbleBreathing, InterventionEndGame},
		},
		{"wants quit on empty menu", LevelGreen, NewSignalSet(SignalWantsQuit), []Intervention{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectInterventions(tt.level, tt.signals)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SelectInterventions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectInterventions_NoDuplicatesAndFreshSlice(t *testing.T) {
	for _, level := range AllLevels() {
		got := SelectInterventions(level, NewSignalSet(SignalWantsQuit, SignalDistress))
		seen := map[Intervention]bool{}
		for _, iv := range got {
			if seen[iv] {
				t.Errorf("%s: duplicate %s in %v", level, iv, got)
			}
			seen[iv] = true
			if !iv.Known() {
				t.Errorf("%s: unknown intervention %s", level, iv)
			}
		}
	}

	// Callers may mutate the returned menu.
	menu := SelectInterventions(LevelYellow, NewSignalSet())
	menu[0] = InterventionEndGame
	if again := SelectInterventions(LevelYellow, NewSignalSet()); again[0] != InterventionRetryCard {
		t.Errorf("menu table was modified: %v", again)
	}
}
