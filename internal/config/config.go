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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Assistant AssistantConfig `yaml:"assistant" mapstructure:"assistant"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the merchant roster backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings for answer composition.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// NotionConfig holds Notion API credentials for the risk-summary export.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	RiskDB string `yaml:"risk_db" mapstructure:"risk_db"`
}

// AssistantConfig tunes the query executors.
type AssistantConfig struct {
	HistorySeed     int64 `yaml:"history_seed" mapstructure:"history_seed"`
	CacheTTLMinutes int   `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// ServerConfig configures the HTTP surface.
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
	v.SetEnvPrefix("MALLOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "mallops.db")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.rps", 5)
	v.SetDefault("assistant.history_seed", 1)
	v.SetDefault("assistant.cache_ttl_minutes", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the fields the given command mode depends on are set.
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	validateStore := func() {
		switch c.Store.Driver {
		case "sqlite":
			need(c.Store.SQLitePath == "", "store.sqlite_path is required for the sqlite driver")
		case "postgres":
			need(c.Store.DatabaseURL == "", "store.database_url is required for the postgres driver")
		default:
			need(true, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "ask", "serve", "merchants", "import":
		validateStore()
		if mode == "serve" {
			need(c.Server.Port <= 0, "server.port must be > 0")
		}
		need(c.Anthropic.MaxTokens <= 0, "anthropic.max_tokens must be > 0")
		need(c.Assistant.CacheTTLMinutes < 0, "assistant.cache_ttl_minutes must be >= 0")
	case "report":
		validateStore()
		need(c.Notion.Token == "", "notion.token is required")
		need(c.Notion.RiskDB == "", "notion.risk_db is required")
	default:
		return eris.New("config: unknown mode " + mode)
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
