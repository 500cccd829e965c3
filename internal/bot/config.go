// Package bot assembles the Telegram application: configuration, the
// dialogue engine, the price monitor, and handler wiring on top of the
// core runtime.
package bot

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/pricewatch/core/config"
	"github.com/m3rciful/pricewatch/internal/bot/monitor"
)

// BackendConfig points the bot at the tracking service.
type BackendConfig struct {
	BaseURL       string `yaml:"base_url" envconfig:"BACKEND_BASE_URL"`
	CallTimeoutMS int    `yaml:"call_timeout_ms" envconfig:"BACKEND_CALL_TIMEOUT_MS"`
}

// MonitorConfig tunes the per-user price monitoring jobs.
type MonitorConfig struct {
	IntervalMS     int `yaml:"interval_ms" envconfig:"MONITOR_INTERVAL_MS"`
	InitialDelayMS int `yaml:"initial_delay_ms" envconfig:"MONITOR_INITIAL_DELAY_MS"`
}

// Interval returns the tick cadence, falling back to the default.
func (m MonitorConfig) Interval() time.Duration {
	if m.IntervalMS <= 0 {
		return monitor.DefaultInterval
	}
	return time.Duration(m.IntervalMS) * time.Millisecond
}

// InitialDelay returns the delay before a job's first tick.
func (m MonitorConfig) InitialDelay() time.Duration {
	if m.InitialDelayMS <= 0 {
		return monitor.DefaultInitialDelay
	}
	return time.Duration(m.InitialDelayMS) * time.Millisecond
}

// Config is the bot's full configuration: the shared core sections plus
// the backend and monitor settings.
type Config struct {
	Core    coreconfig.Config `yaml:",inline"`
	Backend BackendConfig     `yaml:"backend"`
	Monitor MonitorConfig     `yaml:"monitor"`
}

// CoreConfig exposes the embedded core configuration to the cmd runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, overlays environment variables, and
// validates the result.
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

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		return nil, fmt.Errorf("backend.base_url is required")
	}
	return &cfg, nil
}
