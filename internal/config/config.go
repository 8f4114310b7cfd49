// Package config loads the gate's runtime settings from an optional YAML
// file with CHATTERBOX_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/chatterbox/internal/llm"
	"github.com/abhisek/chatterbox/internal/safety"
)

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gate    GateConfig    `yaml:"gate"`
	Answer  AnswerConfig  `yaml:"answer"`
	Intent  IntentConfig  `yaml:"intent"`
	LLM     llm.Config    `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`

	// DB is the SQLite path for the audit trail. Empty uses the XDG
	// default; "-" disables persistence.
	DB string `yaml:"db"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins limits websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GateConfig bounds the pipeline's suspension points and switches the
// optional LLM stages on.
type GateConfig struct {
	TaskTimeout       time.Duration `yaml:"task_timeout"`
	SimilarityTimeout time.Duration `yaml:"similarity_timeout"`
	ComposerTimeout   time.Duration `yaml:"composer_timeout"`
	IntentTimeout     time.Duration `yaml:"intent_timeout"`
	LLMSimilarity     bool          `yaml:"llm_similarity"`
	LLMComposer       bool          `yaml:"llm_composer"`
	LLMIntent         bool          `yaml:"llm_intent"`
}

type AnswerConfig struct {
	// SemanticCategories replaces the built-in list of card families that
	// accept semantically equivalent answers.
	SemanticCategories []string `yaml:"semantic_categories"`
	// PhoneticVariations extends the built-in table of common mishearings.
	PhoneticVariations map[string][]string `yaml:"phonetic_variations"`
	MinConfidence      float64             `yaml:"min_confidence"`
}

type IntentConfig struct {
	// Keywords adds phrases per intent signal, keyed by signal name.
	Keywords      map[string][]string `yaml:"keywords"`
	MinConfidence float64             `yaml:"min_confidence"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Gate: GateConfig{
			TaskTimeout:       60 * time.Second,
			SimilarityTimeout: 3 * time.Second,
			ComposerTimeout:   4 * time.Second,
			IntentTimeout:     2 * time.Second,
		},
		Answer: AnswerConfig{
			SemanticCategories: []string{"synonyms", "antonyms", "opposites", "describing words"},
			MinConfidence:      0.5,
		},
		Intent: IntentConfig{
			MinConfidence: 0.6,
		},
		LLM: llm.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CHATTERBOX_* variables.
func (c *Config) ApplyEnv() error {
	str := func(dst *string, name string) {
		if v := os.Getenv(llm.EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(dst *bool, name string) {
		if v := os.Getenv(llm.EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", llm.EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(dst *time.Duration, name string) {
		if v := os.Getenv(llm.EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", llm.EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Server.Addr, "ADDR")
	str(&c.DB, "DB")
	str(&c.Logging.Level, "LOG_LEVEL")
	str(&c.Logging.Format, "LOG_FORMAT")
	duration(&c.Gate.TaskTimeout, "TASK_TIMEOUT")
	duration(&c.Gate.ComposerTimeout, "COMPOSER_TIMEOUT")
	duration(&c.Gate.SimilarityTimeout, "SIMILARITY_TIMEOUT")
	duration(&c.Gate.IntentTimeout, "INTENT_TIMEOUT")
	boolean(&c.Gate.LLMSimilarity, "LLM_SIMILARITY")
	boolean(&c.Gate.LLMComposer, "LLM_COMPOSER")
	boolean(&c.Gate.LLMIntent, "LLM_INTENT")

	c.LLM.ApplyEnv()
	return errors.Join(errs...)
}

// LLMEnabled reports whether any stage needs a provider.
func (c Config) LLMEnabled() bool {
	return c.Gate.LLMSimilarity || c.Gate.LLMComposer || c.Gate.LLMIntent
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"gate.task_timeout", c.Gate.TaskTimeout},
		{"gate.similarity_timeout", c.Gate.SimilarityTimeout},
		{"gate.composer_timeout", c.Gate.ComposerTimeout},
		{"gate.intent_timeout", c.Gate.IntentTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if v := c.Answer.MinConfidence; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("answer.min_confidence must be within [0,1], got %v", v))
	}
	if v := c.Intent.MinConfidence; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("intent.min_confidence must be within [0,1], got %v", v))
	}
	for sig := range c.Intent.Keywords {
		if !slices.Contains(safety.IntentSignals(), safety.Signal(sig)) {
			errs = append(errs, fmt.Errorf("intent.keywords: %q is not an intent signal", sig))
		}
	}

	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	if c.LLMEnabled() {
		if err := c.LLM.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm: %w", err))
		}
	}

	return errors.Join(errs...)
}
