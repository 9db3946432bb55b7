// Package config loads application configuration from config.yaml and
// ARXIV_DIGEST_* environment variables.
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
	Zotero  ZoteroConfig  `yaml:"zotero" mapstructure:"zotero"`
	Arxiv   ArxivConfig   `yaml:"arxiv" mapstructure:"arxiv"`
	Rank    RankConfig    `yaml:"rank" mapstructure:"rank"`
	Digest  DigestConfig  `yaml:"digest" mapstructure:"digest"`
	Preload PreloadConfig `yaml:"preload" mapstructure:"preload"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	SMTP    SMTPConfig    `yaml:"smtp" mapstructure:"smtp"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ZoteroConfig holds Zotero Web API credentials.
type ZoteroConfig struct {
	UserID string `yaml:"user_id" mapstructure:"user_id"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ArxivConfig configures candidate fetching.
type ArxivConfig struct {
	CategoriesFile string `yaml:"categories_file" mapstructure:"categories_file"`
	MaxEntries     int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// RankConfig configures relevance scoring.
type RankConfig struct {
	// Decay is the per-day exponential decay applied to corpus
	// recency weights.
	Decay float64 `yaml:"decay" mapstructure:"decay"`
	Scale float64 `yaml:"scale" mapstructure:"scale"`
}

// DigestConfig configures rendering.
type DigestConfig struct {
	MaxPapers int `yaml:"max_papers" mapstructure:"max_papers"`
}

// PreloadConfig configures the enrichment worker pool.
type PreloadConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LLMConfig selects and configures the completion backend. Embeddings
// always go through the OpenAI-compatible endpoint.
type LLMConfig struct {
	Backend        string `yaml:"backend" mapstructure:"backend"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	Model          string `yaml:"model" mapstructure:"model"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EmbedModel     string `yaml:"embed_model" mapstructure:"embed_model"`
	RetryAttempts  int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelaySecs int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path          string `yaml:"path" mapstructure:"path"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SMTPConfig configures digest delivery.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Sender   string `yaml:"sender" mapstructure:"sender"`
	Receiver string `yaml:"receiver" mapstructure:"receiver"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ServerConfig configures the digest HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory (optional) and
// applies ARXIV_DIGEST_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ARXIV_DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("arxiv.categories_file", "categories.yaml")
	v.SetDefault("arxiv.max_entries", 100)
	v.SetDefault("rank.decay", 0.2)
	v.SetDefault("rank.scale", 10.0)
	v.SetDefault("digest.max_papers", 20)
	v.SetDefault("preload.workers", 5)
	v.SetDefault("llm.backend", "anthropic")
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.embed_model", "text-embedding-3-small")
	v.SetDefault("llm.retry_attempts", 3)
	v.SetDefault("llm.retry_delay_secs", 3)
	v.SetDefault("store.path", "arxiv-digest.db")
	v.SetDefault("store.cache_ttl_hours", 168)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("server.port", 8080)

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

// InitLogger builds the global zap logger from the log config.
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
