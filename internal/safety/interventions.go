package safety

// Intervention menus per level, in display order.
var levelMenus = map[Level][]Intervention{
	LevelGreen: nil,
	LevelYellow: {
		InterventionRetryCard,
		InterventionSkipCard,
		InterventionStartBreak,
		InterventionBubbleBreathing,
	},
	LevelOrange: {
		InterventionBubbleBreathing,
		InterventionStartBreak,
		InterventionSkipCard,
	},
	// No retry or skip on RED.
	LevelRed: {
		InterventionCallGrownup,
		InterventionStartBreak,
		InterventionBubbleBreathing,
	},
}

// SelectInterventions returns the ordered intervention menu for the turn.
// DISTRESS and extreme audio signals force the RED menu whatever the level.
func SelectInterventions(level Level, signals SignalSet) []Intervention {
	menuLevel := level
	if requiresGrownup(signals) {
		menuLevel = LevelRed
	}

	base := levelMenus[menuLevel]
	out := make([]Intervention, 0, len(base)+1)
	out = append(out, base...)

	if len(out) > 0 && signals.Has(SignalWantsQuit) {
		out = append(out, InterventionEndGame)
	}
	return out
}

func requiresGrownup(signals SignalSet) bool {
	if signals.Has(SignalDistress) {
		return true
	}
	for sig := range signals {
		if sig.IsExtreme() {
			return true
		}
	}
	return false
}
