package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agile_story_evaluator/critique"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, critique.ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 600, cfg.LLM.MaxTokens)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.LLM.AIEnabled())

	g := cfg.Guard.Guard()
	assert.True(t, g.Captcha)
	require.Len(t, g.Windows, 2)
	assert.Equal(t, 10, g.Windows[0].Limit)
	assert.Equal(t, time.Minute, g.Windows[0].Span)
	assert.Equal(t, 100, g.Windows[1].Limit)
	assert.Equal(t, time.Hour, g.Windows[1].Span)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
llm:
  provider: Gemini
  model: gemini-2.5-flash
  temperature: 0.1
  timeout: 5s
guard:
  minute_limit: 3
logger:
  format: json
`), 0o600))
	t.Setenv("GEMINI_API_KEY", " secret ")
	t.Setenv("STORYEVAL_GUARD_CAPTCHA", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, critique.ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.True(t, cfg.LLM.AIEnabled())
	assert.Equal(t, 5*time.Second, cfg.LLM.Options().Timeout)
	assert.Equal(t, 0.1, cfg.LLM.Options().Temperature)
	assert.Equal(t, 3, cfg.Guard.Guard().Windows[0].Limit)
	assert.False(t, cfg.Guard.Guard().Captcha)
	assert.Equal(t, "json", cfg.Logger.Format)

	s := cfg.LLM.Settings()
	assert.Equal(t, "gemini-2.5-flash", s.Model)
	assert.Equal(t, "secret", s.APIKey)
}

func TestLoad_CustomKeyEnv(t *testing.T) {
	t.Setenv("STORYEVAL_LLM_API_KEY_ENV", "MY_KEY")
	t.Setenv("MY_KEY", "abc")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.LLM.APIKey)
}

func TestLoad_MockNeedsNoKey(t *testing.T) {
	t.Setenv("STORYEVAL_LLM_PROVIDER", "mock")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.APIKeyEnv)
	assert.True(t, cfg.LLM.AIEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORYEVAL_LLM_TEMPERATURE", "3")
	_, err := Load("")
	assert.ErrorContains(t, err, "llm.temperature")

	t.Setenv("STORYEVAL_LLM_TEMPERATURE", "0.2")
	t.Setenv("STORYEVAL_GUARD_MINUTE_LIMIT", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "guard")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
