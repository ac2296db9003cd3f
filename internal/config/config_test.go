package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv hides variables the host may export
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envAliases {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, ".py", cfg.Review.Extension)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codebrew.yaml")
	yaml := `
llm:
  provider: openai
  model: gpt-4o-mini
  max_attempts: 5
  transport_backoff: 500ms
review:
  schema: extended
server:
  workers: 4
  job_retention: 30m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("CODEBREW_LLM_MODEL", "gpt-4.1")
	t.Setenv("CODEBREW_LLM_RETRY_TRANSPORT", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model, "env overrides file")
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
	assert.True(t, cfg.LLM.RetryTransport)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.TransportBackoff)
	assert.Equal(t, "extended", cfg.Review.Schema)
	assert.Equal(t, 4, cfg.Server.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Server.JobRetention)
	assert.Equal(t, "ghp_test", cfg.GitHub.Token)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "plain")
	t.Setenv("CODEBREW_GITHUB_TOKEN", "prefixed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.GitHub.Token)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero attempts", mutate: func(c *Config) { c.LLM.MaxAttempts = 0 }},
		{name: "zero tokens", mutate: func(c *Config) { c.LLM.MaxTokens = 0 }},
		{name: "no workers", mutate: func(c *Config) { c.Server.Workers = 0 }},
		{name: "extension without dot", mutate: func(c *Config) { c.Review.Extension = "py" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Defaults()
	cfg.GitHub.Token = "ghp_secret"
	cfg.SMTP.Password = "hunter2"

	r := cfg.Redacted()
	assert.Equal(t, "********", r.GitHub.Token)
	assert.Equal(t, "********", r.SMTP.Password)
	assert.Empty(t, r.LLM.APIKey)
	assert.Equal(t, "ghp_secret", cfg.GitHub.Token)
}
