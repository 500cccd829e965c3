// Package server assembles the tracking backend: storage, auth, the price
// source, media storage, the HTTP API, and the maintenance sweep.
package server

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/pricewatch/core/config"
	"github.com/m3rciful/pricewatch/core/database"
	"github.com/m3rciful/pricewatch/internal/server/auth"
	"github.com/m3rciful/pricewatch/internal/server/maintenance"
	"github.com/m3rciful/pricewatch/internal/server/media"
)

// RedisConfig holds the price cache connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	TTLMS    int64  `yaml:"ttl_ms" envconfig:"REDIS_TTL_MS"`
}

func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMS) * time.Millisecond
}

// SourceConfig holds marketplace client settings.
type SourceConfig struct {
	// CardURL overrides the product card endpoint, mainly for tests and
	// staging mirrors. One %s placeholder for the article.
	CardURL string `yaml:"card_url" envconfig:"SOURCE_CARD_URL"`
}

// Config is the full backend configuration.
type Config struct {
	Listen      string                   `yaml:"listen" envconfig:"SERVER_LISTEN"`
	Logging     coreconfig.LoggingConfig `yaml:"logging"`
	Database    database.Config          `yaml:"database"`
	Auth        auth.Config              `yaml:"auth"`
	Redis       RedisConfig              `yaml:"redis"`
	Media       media.Config             `yaml:"media"`
	Source      SourceConfig             `yaml:"source"`
	Maintenance maintenance.Config       `yaml:"maintenance"`
}

// LoggingConfig renders the core config shape the logger expects.
func (c *Config) LoggingConfig() *coreconfig.Config {
	return &coreconfig.Config{Logging: c.Logging}
}

// LoadConfig reads the YAML file, overlays environment variables, and
// validates required fields.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if cfg.Listen == "" {
		cfg.Listen = ":8000"
	}
	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.secret is required")
	}
	if cfg.Database.Host == "" || cfg.Database.Name == "" {
		return nil, fmt.Errorf("database.host and database.name are required")
	}
	return &cfg, nil
}
