package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("GEMINI_API_KEY sets key and provider if empty", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY keeps existing provider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{LLM: LLMConfig{Provider: "genai"}}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.LLM.APIKey)
		assert.Equal(t, "genai", cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY fills the openai key only", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.OpenAIKey)
		assert.Empty(t, cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("CODEX_LLM_PROVIDER wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("CODEX_LLM_PROVIDER", "openai")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.LLM.Provider)
	})
}

func TestEnvOverrides_Paths(t *testing.T) {
	clearEnv(t)
	t.Setenv("CODEX_DATA_DIR", "/tmp/codex-data")
	t.Setenv("CODEX_STORAGE", "sqlite")
	t.Setenv("CODEX_ADDR", ":9999")

	cfg, err := Load("/definitely/not/here.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/codex-data", cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoggingConfig_Categories(t *testing.T) {
	c := LoggingConfig{DebugMode: true, Categories: map[string]bool{"api": false}}
	assert.False(t, c.IsCategoryEnabled("api"))
	assert.True(t, c.IsCategoryEnabled("agent"))

	c.DebugMode = false
	assert.False(t, c.IsCategoryEnabled("agent"))

	lc := LoggingConfig{DebugMode: true, Format: "json", Level: "debug"}.ToLogging()
	assert.True(t, lc.JSONFormat)
	assert.Equal(t, "debug", lc.Level)
}
