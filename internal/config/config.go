package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Data     DataConfig     `yaml:"data"`
	Detector DetectorConfig `yaml:"detector"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" env:"FRAUDSTREAM_HOST"`
	Port           int      `yaml:"port" env:"FRAUDSTREAM_PORT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"FRAUDSTREAM_ALLOWED_ORIGINS" envSeparator:","`
}

// StreamConfig bounds the replay pacing. Delays are written as Go duration
// strings in yaml ("500ms", "2.5s").
type StreamConfig struct {
	MinDelay      time.Duration `yaml:"-" env:"FRAUDSTREAM_MIN_DELAY"`
	MaxDelay      time.Duration `yaml:"-" env:"FRAUDSTREAM_MAX_DELAY"`
	ProgressBatch int           `yaml:"-" env:"FRAUDSTREAM_PROGRESS_BATCH"`
}

// UnmarshalYAML parses duration strings and leaves defaults in place for
// fields the file does not set.
func (c *StreamConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MinDelay      string `yaml:"min_delay"`
		MaxDelay      string `yaml:"max_delay"`
		ProgressBatch int    `yaml:"progress_batch"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MinDelay != "" {
		d, err := time.ParseDuration(raw.MinDelay)
		if err != nil {
			return fmt.Errorf("stream.min_delay: %w", err)
		}
		c.MinDelay = d
	}
	if raw.MaxDelay != "" {
		d, err := time.ParseDuration(raw.MaxDelay)
		if err != nil {
			return fmt.Errorf("stream.max_delay: %w", err)
		}
		c.MaxDelay = d
	}
	if raw.ProgressBatch != 0 {
		c.ProgressBatch = raw.ProgressBatch
	}
	return nil
}

type DataConfig struct {
	Transactions string `yaml:"transactions" env:"FRAUDSTREAM_TRANSACTIONS"`
	Identity     string `yaml:"identity" env:"FRAUDSTREAM_IDENTITY"`
}

type DetectorConfig struct {
	DenyThreshold     float64 `yaml:"deny_threshold" env:"FRAUDSTREAM_DENY_THRESHOLD"`
	CriticalThreshold float64 `yaml:"critical_threshold" env:"FRAUDSTREAM_CRITICAL_THRESHOLD"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Stream: StreamConfig{
			MinDelay:      500 * time.Millisecond,
			MaxDelay:      2500 * time.Millisecond,
			ProgressBatch: 100,
		},
		Data: DataConfig{
			Transactions: "./content/small_test_transaction.csv",
			Identity:     "./content/ieee-fraud-detection/test_identity.csv",
		},
		Detector: DetectorConfig{
			DenyThreshold:     0.5,
			CriticalThreshold: 0.8,
		},
	}
}

// Load reads the yaml file at path, applies defaults for unset fields, then
// applies environment variable overrides on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but a missing config file is not an error;
// defaults (plus environment overrides) are used instead.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := defaultConfig()
		if err := env.Parse(cfg); err != nil {
			return nil, fmt.Errorf("environment overrides: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Stream.MinDelay <= 0 {
		return fmt.Errorf("stream.min_delay must be positive, got %s", c.Stream.MinDelay)
	}
	if c.Stream.MaxDelay < c.Stream.MinDelay {
		return fmt.Errorf("stream.max_delay %s is below stream.min_delay %s", c.Stream.MaxDelay, c.Stream.MinDelay)
	}
	if c.Stream.ProgressBatch < 1 {
		return fmt.Errorf("stream.progress_batch must be at least 1, got %d", c.Stream.ProgressBatch)
	}
	if c.Detector.DenyThreshold <= 0 || c.Detector.DenyThreshold >= 1 {
		return fmt.Errorf("detector.deny_threshold %v out of range (0,1)", c.Detector.DenyThreshold)
	}
	if c.Detector.CriticalThreshold < c.Detector.DenyThreshold || c.Detector.CriticalThreshold >= 1 {
		return fmt.Errorf("detector.critical_threshold %v must be in [deny_threshold, 1)", c.Detector.CriticalThreshold)
	}
	if c.Data.Transactions == "" {
		return fmt.Errorf("data.transactions path is required")
	}
	return nil
}
