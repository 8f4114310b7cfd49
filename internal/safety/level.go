package safety

// levelThreshold escalates to Level when a metric crosses Value.
type levelThreshold struct {
	Level Level
	Value float64
}

// Threshold table. Within each metric the entries are ordered by severity;
// the most severe threshold crossed wins.
var (
	consecutiveErrorLevels = []levelThreshold{
		{LevelYellow, 3},
		{LevelOrange, 5},
	}
	fatigueLevels = []levelThreshold{
		{LevelYellow, 6},
		{LevelOrange, 8},
	}
	dysregulationLevels = []levelThreshold{
		{LevelYellow, 5},
		{LevelOrange, 7},
		{LevelRed, 9},
	}
	// Engagement escalates when it falls to or below the value.
	engagementLevels = []levelThreshold{
		{LevelYellow, 3},
	}
)

// Assess maps the state and signals to exactly one level. Each metric is
// judged on its own and the maximum wins; metrics never add up.
func Assess(state State, signals SignalSet) Level {
	level := LevelGreen
	level = MaxLevel(level, atLeast(float64(state.ConsecutiveErrors), consecutiveErrorLevels))
	level = MaxLevel(level, atLeast(state.FatigueLevel, fatigueLevels))
	level = MaxLevel(level, atLeast(state.DysregulationLevel, dysregulationLevels))
	level = MaxLevel(level, atMost(state.EngagementLevel, engagementLevels))

	// A child asking to stop or rest always gets the choice menu.
	if signals.HasAny(SignalWantsBreak, SignalWantsQuit) {
		level = MaxLevel(level, LevelYellow)
	}
	return level
}

func atLeast(v float64, table []levelThreshold) Level {
	level := LevelGreen
	for _, t := range table {
		if v >= t.Value {
			level = MaxLevel(level, t.Level)
		}
	}
	return level
}

func atMost(v float64, table []levelThreshold) Level {
	level := LevelGreen
	for _, t := range table {
		if v <= t.Value {
			level = MaxLevel(level, t.Level)
		}
	}
	return level
}
