package safety

import (
	"encoding/json"
	"time"
)

// Avatar tones, from most energetic to most soothing.
const (
	TonePlayful     = "playful"
	ToneEncouraging = "encouraging"
	ToneCalm        = "calm"
	ToneSoothing    = "soothing"
)

var sessionConfigs = map[Level]SessionConfig{
	LevelGreen: {
		PromptIntensity:   3,
		AvatarTone:        TonePlayful,
		InactivityTimeout: 30 * time.Second,
		MaxTaskTime:       60 * time.Second,
	},
	LevelYellow: {
		PromptIntensity:   2,
		AvatarTone:        ToneEncouraging,
		InactivityTimeout: 25 * time.Second,
		MaxTaskTime:       60 * time.Second,
	},
	LevelOrange: {
		PromptIntensity:   1,
		AvatarTone:        ToneCalm,
		InactivityTimeout: 20 * time.Second,
		MaxTaskTime:       45 * time.Second,
	},
	LevelRed: {
		PromptIntensity:   0,
		AvatarTone:        ToneSoothing,
		InactivityTimeout: 15 * time.Second,
		MaxTaskTime:       30 * time.Second,
	},
}

// Adapt returns the session parameters in force for a level.
// Unknown levels get the RED parameters.
func Adapt(level Level) SessionConfig {
	if cfg, ok := sessionConfigs[level]; ok {
		return cfg
	}
	return sessionConfigs[LevelRed]
}

type sessionConfigJSON struct {
	PromptIntensity       int     `json:"prompt_intensity"`
	AvatarTone            string  `json:"avatar_tone"`
	InactivityTimeoutSecs float64 `json:"inactivity_timeout"`
	MaxTaskTimeSecs       float64 `json:"max_task_time"`
}

// MarshalJSON encodes the timeouts in seconds, which is what the
// presentation layer reads.
func (c SessionConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(sessionConfigJSON{
		PromptIntensity:       c.PromptIntensity,
		AvatarTone:            c.AvatarTone,
		InactivityTimeoutSecs: c.InactivityTimeout.Seconds(),
		MaxTaskTimeSecs:       c.MaxTaskTime.Seconds(),
	})
}

// UnmarshalJSON decodes timeouts expressed in seconds.
func (c *SessionConfig) UnmarshalJSON(data []byte) error {
	var raw sessionConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = SessionConfig{
		PromptIntensity:   raw.PromptIntensity,
		AvatarTone:        raw.AvatarTone,
		InactivityTimeout: time.Duration(raw.InactivityTimeoutSecs * float64(time.Second)),
		MaxTaskTime:       time.Duration(raw.MaxTaskTimeSecs * float64(time.Second)),
	}
	return nil
}
