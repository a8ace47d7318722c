package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the name of the configuration file inside the data directory
const ConfigFileName = "modhub.toml"

// Config represents the modhub.toml configuration file
type Config struct {
	// Directory holding enabled packages (empty = <data>/mods)
	ContentRoot string `toml:"content_root,omitempty" yaml:"content_root,omitempty"`

	// Extra conflict whitelist patterns (substring match)
	Whitelist []string `toml:"whitelist" yaml:"whitelist"`

	// URI scheme registered for deep links
	LinkScheme string `toml:"link_scheme" yaml:"link_scheme"`

	// Identical links arriving within this window are dropped
	DedupeWindow Duration `toml:"dedupe_window" yaml:"dedupe_window"`

	API       APIConfig       `toml:"api" yaml:"api"`
	Extract   ExtractConfig   `toml:"extract" yaml:"extract"`
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Conflicts ConflictsConfig `toml:"conflicts" yaml:"conflicts"`
}

// APIConfig holds remote metadata API settings
type APIConfig struct {
	BaseURL string   `toml:"base_url" yaml:"base_url"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// ExtractConfig holds archive extraction settings
type ExtractConfig struct {
	// Explicit path to a bundled 7-Zip binary
	SevenZipPath string `toml:"seven_zip_path,omitempty" yaml:"seven_zip_path,omitempty"`

	// Strategy names to skip (7zip, system, native)
	Disable []string `toml:"disable,omitempty" yaml:"disable,omitempty"`
}

// ServerConfig holds local control API settings
type ServerConfig struct {
	Addr        string `toml:"addr" yaml:"addr"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
}

// ConflictsConfig holds conflict scan settings
type ConflictsConfig struct {
	// Max packages walked in parallel (0 = automatic)
	Concurrency int `toml:"concurrency" yaml:"concurrency"`
}

// Duration is a time.Duration stored as a string ("3s") in TOML
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Whitelist:    []string{},
		LinkScheme:   "modhub",
		DedupeWindow: Duration{3 * time.Second},
		API: APIConfig{
			BaseURL: "https://api.modhub.dev/v1",
			Timeout: Duration{15 * time.Second},
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:47811",
			MetricsAddr: "127.0.0.1:47812",
		},
	}
}

// LoadConfig loads modhub.toml from dataDir, falling back to defaults when absent
func LoadConfig(dataDir string) (*Config, error) {
	configPath := filepath.Join(dataDir, ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes modhub.toml to disk
func (c *Config) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dataDir, ConfigFileName), data, 0644)
}

// StrategyDisabled reports whether the named extraction strategy is turned off
func (c *Config) StrategyDisabled(name string) bool {
	for _, d := range c.Extract.Disable {
		if d == name {
			return true
		}
	}
	return false
}
