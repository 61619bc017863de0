// Package config loads the ectrol YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Timing  TimingConfig  `yaml:"timing"`
	Journal JournalConfig `yaml:"journal"`
	Server  ServerConfig  `yaml:"server"`
}

// BrowserConfig controls the Chrome host.
type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Stealth          string   `yaml:"stealth"` // headless | headful | plain
	ResourceBlocking []string `yaml:"resource_blocking"`
	XvfbDisplay      string   `yaml:"xvfb_display"`
}

// PageConfig names the page the host opens before any operation runs.
type PageConfig struct {
	URL             string        `yaml:"url"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// TimingConfig tunes the engine. Zero values fall back to the engine's own
// defaults.
type TimingConfig struct {
	ClickDelay   time.Duration `yaml:"click_delay"`
	PressDelay   time.Duration `yaml:"press_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	WaitStrategy string        `yaml:"wait_strategy"` // in_page | cooperative
	CacheKey     string        `yaml:"cache_key"`
}

// JournalConfig enables the SQLite action journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"` // rows kept by the startup prune
}

// ServerConfig holds listen addresses. Empty disables a surface.
type ServerConfig struct {
	HTTP string `yaml:"http"`
	MCP  bool   `yaml:"mcp"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Page.NavigateTimeout <= 0 {
		c.Page.NavigateTimeout = 30 * time.Second
	}
	if c.Timing.WaitStrategy == "" {
		c.Timing.WaitStrategy = "in_page"
	}
	if c.Journal.Keep <= 0 {
		c.Journal.Keep = 10000
	}
}
