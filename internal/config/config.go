package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	ZeroBounce ZeroBounceConfig `yaml:"zerobounce" mapstructure:"zerobounce"`
	Resend     ResendConfig     `yaml:"resend" mapstructure:"resend"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Verify     VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ZeroBounceConfig holds email validation API settings.
type ZeroBounceConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ResendConfig holds outbound email settings. ReplyTo is the inbound address
// the confirmation pipeline listens on.
type ResendConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	From    string `yaml:"from" mapstructure:"from"`
	ReplyTo string `yaml:"reply_to" mapstructure:"reply_to"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
	RatesFile   string `yaml:"rates_file" mapstructure:"rates_file"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BrowserConfig configures the headless browser used for profile checks.
type BrowserConfig struct {
	Remote      string `yaml:"remote" mapstructure:"remote"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// NotionConfig holds Notion API credentials and the review database ID.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// VerifyConfig configures batch verification runs.
type VerifyConfig struct {
	Mode        string `yaml:"mode" mapstructure:"mode"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// RetryConfig tunes retry and circuit breaker behavior for vendor API calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP API and inbound webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "prospectkeeper.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("verify.mode", "research")
	v.SetDefault("verify.concurrency", 5)
	v.SetDefault("verify.batch_size", 50)
	v.SetDefault("zerobounce.base_url", "https://api.zerobounce.net/v2")
	v.SetDefault("resend.base_url", "https://api.resend.com")
	v.SetDefault("resend.from", "verify@prospectkeeper.io")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_reset_secs", 30)
	v.SetDefault("browser.timeout_secs", 45)
	v.SetDefault("browser.headless", true)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present and sane.
// Mode names the command about to run.
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(val, name string) {
		if val == "" {
			problems = append(problems, name+" is required")
		}
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" {
		need(c.Store.DatabaseURL, "store.database_url")
	}

	switch mode {
	case "verify":
		need(c.ZeroBounce.Key, "zerobounce.key")
		if c.Verify.Mode != "confirm" && c.Verify.Mode != "research" {
			problems = append(problems, "verify.mode must be confirm or research")
		}
		if c.Verify.Mode == "research" {
			need(c.Anthropic.Key, "anthropic.key")
		}
		if c.Verify.Mode == "confirm" {
			need(c.Resend.Key, "resend.key")
			need(c.Resend.ReplyTo, "resend.reply_to")
		}
		if c.Verify.Concurrency < 1 || c.Verify.Concurrency > 20 {
			problems = append(problems, "verify.concurrency must be between 1 and 20")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		need(c.Anthropic.Key, "anthropic.key")
	case "sync":
		need(c.Salesforce.ClientID, "salesforce.client_id")
		need(c.Salesforce.Username, "salesforce.username")
		need(c.Salesforce.KeyPath, "salesforce.key_path")
	case "review":
		need(c.Notion.Token, "notion.token")
		need(c.Notion.ReviewDB, "notion.review_db")
	case "import", "contacts", "receipts":
		// Store checks above are sufficient.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
