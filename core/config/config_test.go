package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimal() *Config {
	return &Config{
		Telegram:  TelegramConfig{Token: "123:abc", RunMode: "polling"},
		Generator: GeneratorConfig{APIKey: "key"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := minimal()
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, ProviderOpenAI, cfg.Generator.Provider)
	assert.Equal(t, defaultOpenAIModel, cfg.Generator.Model)
	assert.Equal(t, "/start", cfg.Dialog.StartKeyword)
	assert.Equal(t, defaultCallTimeoutMS, cfg.Dialog.CallTimeoutMS)
	assert.Equal(t, defaultInfoBaseURL, cfg.InfoSource.BaseURL)
	assert.Equal(t, defaultInfoSelector, cfg.InfoSource.Selectors.Info)
	assert.Equal(t, defaultHackSelector, cfg.InfoSource.Selectors.Hack)
	assert.Equal(t, defaultInfoLimit, cfg.InfoSource.Limit)
	assert.Equal(t, defaultStashTTL, cfg.Stash.TTLSeconds)
	assert.False(t, cfg.Database.Enabled())
	assert.Empty(t, cfg.Database.MigrationsDir)
}

func TestNormalizeRejectsMissingCredentials(t *testing.T) {
	cfg := minimal()
	cfg.Telegram.Token = " "
	assert.ErrorContains(t, Normalize(cfg), "telegram token")

	cfg = minimal()
	cfg.Generator.APIKey = ""
	assert.ErrorContains(t, Normalize(cfg), "generator.api_key")

	cfg = minimal()
	cfg.Generator.Provider = "llama"
	assert.ErrorContains(t, Normalize(cfg), "generator.provider")
}

func TestNormalizeWebhookNeedsSecret(t *testing.T) {
	cfg := minimal()
	cfg.Telegram.RunMode = RunModeWebhook
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com/hook", Port: 8443}
	assert.ErrorContains(t, Normalize(cfg), "webhook.secret")

	cfg.Webhook.Secret = "s3cret"
	cfg.Webhook.Path = "hook"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "/hook", cfg.Webhook.Path)
}

func TestNormalizeGeminiModel(t *testing.T) {
	cfg := minimal()
	cfg.Generator.Provider = "Gemini"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, ProviderGemini, cfg.Generator.Provider)
	assert.Equal(t, defaultGeminiModel, cfg.Generator.Model)
}

func TestNormalizeDatabaseDefaults(t *testing.T) {
	cfg := minimal()
	cfg.Database.Host = "localhost"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, defaultDBMaxConns, cfg.Database.MaxConnections)
	assert.Equal(t, defaultDBSSLMode, cfg.Database.SSLMode)
	assert.Equal(t, defaultMigrationsDir, cfg.Database.MigrationsDir)
}

func TestNormalizeRateLimitExclusions(t *testing.T) {
	cfg := minimal()
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)

	cfg = minimal()
	cfg.RateLimit.ExcludeUpdates = []string{"inline"}
	assert.Error(t, Normalize(cfg))
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
telegram:
  token: "from-file"
  run_mode: longpoll
generator:
  provider: gemini
  api_key: "file-key"
dialog:
  start_keyword: "/go"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, ProviderGemini, cfg.Generator.Provider)
	assert.Equal(t, "/go", cfg.Dialog.StartKeyword)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("GENERATOR_API_KEY", "env-key")
	t.Setenv("TELEGRAM_RUN_MODE", "longpoll")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "env-key", cfg.Generator.APIKey)
}
