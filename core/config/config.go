package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	Path   string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	// Secret is the shared secret Telegram echoes in X-Telegram-Bot-Api-Secret-Token.
	Secret string `yaml:"secret" envconfig:"WEBHOOK_SECRET"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// GeneratorConfig selects and configures the text-generation backend.
type GeneratorConfig struct {
	Provider string `yaml:"provider" envconfig:"GENERATOR_PROVIDER"`
	APIKey   string `yaml:"api_key" envconfig:"GENERATOR_API_KEY"`
	// BaseURL overrides the OpenAI endpoint for compatible providers.
	BaseURL string `yaml:"base_url" envconfig:"GENERATOR_BASE_URL"`
	Model   string `yaml:"model" envconfig:"GENERATOR_MODEL"`
}

// SelectorsConfig maps info topics to CSS selectors on the source page.
type SelectorsConfig struct {
	Info string `yaml:"info" envconfig:"INFOSOURCE_SELECTOR_INFO"`
	Hack string `yaml:"hack" envconfig:"INFOSOURCE_SELECTOR_HACK"`
}

// InfoSourceConfig configures the scraped information source.
type InfoSourceConfig struct {
	BaseURL   string          `yaml:"base_url" envconfig:"INFOSOURCE_BASE_URL"`
	Selectors SelectorsConfig `yaml:"selectors"`
	// Limit caps the extracted snippet length in runes.
	Limit     int    `yaml:"limit" envconfig:"INFOSOURCE_LIMIT"`
	UserAgent string `yaml:"user_agent" envconfig:"INFOSOURCE_USER_AGENT"`
	// CacheDir enables colly's on-disk response cache when set.
	CacheDir string `yaml:"cache_dir" envconfig:"INFOSOURCE_CACHE_DIR"`
}

// DialogConfig tunes the conversation engine.
type DialogConfig struct {
	StartKeyword  string `yaml:"start_keyword" envconfig:"DIALOG_START_KEYWORD"`
	CallTimeoutMS int    `yaml:"call_timeout_ms" envconfig:"DIALOG_CALL_TIMEOUT_MS"`
}

// StashConfig configures storage for callback payloads that exceed the channel limit.
// An empty RedisAddr selects the in-memory stash.
type StashConfig struct {
	RedisAddr     string `yaml:"redis_addr" envconfig:"STASH_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"STASH_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"STASH_REDIS_DB"`
	TTLSeconds    int    `yaml:"ttl_seconds" envconfig:"STASH_TTL_SECONDS"`
}

// DatabaseConfig holds settings of the optional generation journal database.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// Enabled reports whether the journal database is configured.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// ProviderOpenAI selects the OpenAI-compatible chat completions backend.
	ProviderOpenAI = "openai"
	// ProviderGemini selects the Google Gemini backend.
	ProviderGemini = "gemini"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	defaultWebhookPath   = "/webhook"
	defaultInfoBaseURL   = "https://adhd-asd-information.com/"
	defaultInfoSelector  = "p.adhd-info"
	defaultHackSelector  = "p.adhd-hack"
	defaultInfoLimit     = 1300
	defaultStartKeyword  = "/start"
	defaultCallTimeoutMS = 20000
	defaultStashTTL      = 24 * 60 * 60
	defaultMigrationsDir = "migrations"
	defaultDBMaxConns    = 4
	defaultDBSSLMode     = "disable"
	defaultLogMaxSizeMB  = 50
	defaultLogMaxBackups = 5
	defaultGeminiModel   = "gemini-2.5-flash"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Generator  GeneratorConfig  `yaml:"generator"`
	InfoSource InfoSourceConfig `yaml:"infosource"`
	Dialog     DialogConfig     `yaml:"dialog"`
	Stash      StashConfig      `yaml:"stash"`
	Database   DatabaseConfig   `yaml:"database"`
}

// Load reads configuration from a YAML file and environment variables.
// A missing file is tolerated so that the bot can be configured from env only.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs validation of required configuration fields and adjusts defaults.
// Every credential the bot needs mid-conversation is checked here so that a
// misconfiguration aborts startup.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeWebhook
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Secret) == "" {
			return fmt.Errorf("webhook.secret is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Path == "" {
			cfg.Webhook.Path = defaultWebhookPath
		}
		if !strings.HasPrefix(cfg.Webhook.Path, "/") {
			cfg.Webhook.Path = "/" + cfg.Webhook.Path
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeGenerator(&cfg.Generator); err != nil {
		return err
	}
	normalizeInfoSource(&cfg.InfoSource)

	if strings.TrimSpace(cfg.Dialog.StartKeyword) == "" {
		cfg.Dialog.StartKeyword = defaultStartKeyword
	}
	if cfg.Dialog.CallTimeoutMS <= 0 {
		cfg.Dialog.CallTimeoutMS = defaultCallTimeoutMS
	}

	if cfg.Stash.TTLSeconds <= 0 {
		cfg.Stash.TTLSeconds = defaultStashTTL
	}

	if cfg.Database.Enabled() {
		if cfg.Database.MaxConnections <= 0 {
			cfg.Database.MaxConnections = defaultDBMaxConns
		}
		if cfg.Database.SSLMode == "" {
			cfg.Database.SSLMode = defaultDBSSLMode
		}
		if cfg.Database.MigrationsDir == "" {
			cfg.Database.MigrationsDir = defaultMigrationsDir
		}
	}

	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if cfg.Logging.MaxBackups <= 0 {
		cfg.Logging.MaxBackups = defaultLogMaxBackups
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}

func normalizeGenerator(g *GeneratorConfig) error {
	if strings.TrimSpace(g.APIKey) == "" {
		return fmt.Errorf("generator.api_key is required")
	}
	p := strings.ToLower(strings.TrimSpace(g.Provider))
	if p == "" {
		p = ProviderOpenAI
	}
	switch p {
	case ProviderOpenAI:
		if g.Model == "" {
			g.Model = defaultOpenAIModel
		}
	case ProviderGemini:
		if g.Model == "" {
			g.Model = defaultGeminiModel
		}
	default:
		return fmt.Errorf("invalid generator.provider %q; allowed: openai, gemini", g.Provider)
	}
	g.Provider = p
	return nil
}

func normalizeInfoSource(s *InfoSourceConfig) {
	if strings.TrimSpace(s.BaseURL) == "" {
		s.BaseURL = defaultInfoBaseURL
	}
	if s.Selectors.Info == "" {
		s.Selectors.Info = defaultInfoSelector
	}
	if s.Selectors.Hack == "" {
		s.Selectors.Hack = defaultHackSelector
	}
	if s.Limit <= 0 {
		s.Limit = defaultInfoLimit
	}
}

// CoreConfig returns c so that *Config satisfies command runners that accept
// app configs embedding the core one.
func (c *Config) CoreConfig() *Config {
	return c
}
