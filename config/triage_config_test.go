package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POLL_INTERVAL_SEC", "INFRA_EMAIL", "UNKNOWN_EMAIL", "OPENAI_API_KEY", "MAIL_SENDER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, "infra@example.com", cfg.InfraEmail)
	assert.Equal(t, "unknown@example.com", cfg.UnknownEmail)
	assert.Empty(t, cfg.OpenAIAPIKey)
	assert.Empty(t, cfg.MailSender)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poll_interval_sec: 30
infra_email: ops@corp.example
app_team_email: apps@corp.example
llm_provider: gemini
`), 0o600))

	t.Setenv("APP_TEAM_EMAIL", "dev@corp.example")
	t.Setenv("INFRA_EMAIL", "")
	t.Setenv("POLL_INTERVAL_SEC", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, "ops@corp.example", cfg.InfraEmail)
	assert.Equal(t, "dev@corp.example", cfg.AppTeamEmail)
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRecipientDomainCanBeCleared(t *testing.T) {
	t.Setenv("RECIPIENT_DOMAIN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.RecipientDomain)
}

func TestValidateLLM(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"openai without key", func(c *Config) {}, true},
		{"openai with key", func(c *Config) { c.OpenAIAPIKey = "k" }, false},
		{"openai-compatible base url", func(c *Config) { c.LLMBaseURL = "http://localhost:11434/v1" }, false},
		{"gemini without key", func(c *Config) { c.LLMProvider = ProviderGemini }, true},
		{"gemini with key", func(c *Config) { c.LLMProvider = ProviderGemini; c.GeminiAPIKey = "k" }, false},
		{"unknown provider", func(c *Config) { c.LLMProvider = "hal"; c.OpenAIAPIKey = "k" }, true},
		{"zero timeout", func(c *Config) { c.OpenAIAPIKey = "k"; c.LLMTimeoutSec = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.ValidateLLM()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMailbox(t *testing.T) {
	cfg := Defaults()
	cfg.GoogleCredentialsFile = filepath.Join(t.TempDir(), "absent.json")
	assert.Error(t, cfg.ValidateMailbox())

	cfg.GoogleClientID = "id"
	cfg.GoogleClientSecret = "secret"
	assert.NoError(t, cfg.ValidateMailbox())

	cfg.TokenStore = "vault"
	assert.Error(t, cfg.ValidateMailbox())
}

func TestUploadWriteTimeout(t *testing.T) {
	cfg := &Config{LLMTimeoutSec: 60, UploadMaxRows: 100}
	assert.Equal(t, 101*time.Minute, cfg.UploadWriteTimeout())
	assert.Greater(t, cfg.UploadWriteTimeout(), time.Duration(cfg.UploadMaxRows)*cfg.LLMTimeout())

	cfg.UploadMaxRows = 0
	assert.Zero(t, cfg.UploadWriteTimeout())
}
