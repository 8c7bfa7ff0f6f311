package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// DefaultWorkers bounds how many entries may be in flight at once.
	DefaultWorkers = 8

	ModsDirName = "mods"
)

type ManifestConfig struct {
	File string `yaml:"file"`
	URL  string `yaml:"url"`
}

type SyncConfig struct {
	TargetDir string `yaml:"target_dir"`
	Workers   int    `yaml:"workers"`
}

type Config struct {
	Manifest ManifestConfig `yaml:"manifest"`
	Sync     SyncConfig     `yaml:"sync"`
	RedisURL string         `yaml:"redis_url"`
	LogLevel string         `yaml:"log_level"`
}

// MustLoad reads the configuration file and panics if it cannot be
// loaded or is invalid. A .env file next to the process, if present,
// is loaded first so the yaml may reference environment variables.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.Manifest.File = os.ExpandEnv(c.Manifest.File)
	c.Manifest.URL = os.ExpandEnv(c.Manifest.URL)
	c.Sync.TargetDir = os.ExpandEnv(c.Sync.TargetDir)
	c.RedisURL = os.ExpandEnv(c.RedisURL)
}

func (c *Config) applyDefaults() {
	if c.Sync.Workers < 1 {
		c.Sync.Workers = DefaultWorkers
	}
	if c.Sync.TargetDir == "" {
		c.Sync.TargetDir, _ = os.Getwd()
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
}

func (c *Config) Validate() error {
	// The manifest source may also come from command line flags, so an
	// empty source is not an error here.
	if c.Manifest.File != "" && c.Manifest.URL != "" {
		return fmt.Errorf("only one of manifest.file or manifest.url may be set")
	}

	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}

	return nil
}
