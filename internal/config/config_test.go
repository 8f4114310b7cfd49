package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatterbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 60*time.Second, cfg.Gate.TaskTimeout)
	assert.Equal(t, 4*time.Second, cfg.Gate.ComposerTimeout)
	assert.False(t, cfg.LLMEnabled())
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Contains(t, cfg.Answer.SemanticCategories, "synonyms")
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
gate:
  task_timeout: 45s
  composer_timeout: 2500ms
  llm_composer: true
answer:
  semantic_categories: [synonyms, rhymes]
  phonetic_variations:
    cat: [cap, kat]
intent:
  keywords:
    WANTS_BREAK: [snack time]
llm:
  provider: openai
  openai:
    api_key: sk-file
    model: gpt-4.1-nano
logging:
  level: debug
  format: json
db: /tmp/gate.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Gate.TaskTimeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.Gate.ComposerTimeout)
	assert.Equal(t, 3*time.Second, cfg.Gate.SimilarityTimeout, "unset fields keep defaults")
	assert.True(t, cfg.Gate.LLMComposer)
	assert.Equal(t, []string{"synonyms", "rhymes"}, cfg.Answer.SemanticCategories)
	assert.Equal(t, []string{"cap", "kat"}, cfg.Answer.PhoneticVariations["cat"])
	assert.Equal(t, []string{"snack time"}, cfg.Intent.Keywords["WANTS_BREAK"])
	assert.Equal(t, "gpt-4.1-nano", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "/tmp/gate.db", cfg.DB)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: :7000\n")
	t.Setenv("CHATTERBOX_ADDR", ":7100")
	t.Setenv("CHATTERBOX_TASK_TIMEOUT", "30s")
	t.Setenv("CHATTERBOX_LLM_INTENT", "true")
	t.Setenv("CHATTERBOX_LLM_PROVIDER", "anthropic")
	t.Setenv("CHATTERBOX_ANTHROPIC_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Gate.TaskTimeout)
	assert.True(t, cfg.Gate.LLMIntent)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-env", cfg.LLM.Anthropic.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorContains(t, err, "read config file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "gate: [not, a, map]\n"))
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("bad env duration", func(t *testing.T) {
		t.Setenv("CHATTERBOX_COMPOSER_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "CHATTERBOX_COMPOSER_TIMEOUT")
	})

	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("CHATTERBOX_LLM_COMPOSER", "sure")
		_, err := Load("")
		assert.ErrorContains(t, err, "CHATTERBOX_LLM_COMPOSER")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero task timeout", func(c *Config) { c.Gate.TaskTimeout = 0 }, "gate.task_timeout"},
		{"negative composer timeout", func(c *Config) { c.Gate.ComposerTimeout = -time.Second }, "gate.composer_timeout"},
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"confidence range", func(c *Config) { c.Answer.MinConfidence = 1.5 }, "answer.min_confidence"},
		{"unknown intent", func(c *Config) { c.Intent.Keywords = map[string][]string{"HUNGRY": {"snack"}} }, "HUNGRY"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"llm key only checked when used", func(c *Config) { c.LLM.Provider = "openai" }, ""},
		{"llm key required when used", func(c *Config) {
			c.LLM.Provider = "openai"
			c.Gate.LLMSimilarity = true
		}, "CHATTERBOX_OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Gate.TaskTimeout = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gate.task_timeout")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "session", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"session":"abc"`)
}

func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "", "warning", "error"} {
		_, err := ParseLogLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}
