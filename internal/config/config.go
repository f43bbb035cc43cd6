package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the optional configuration file looked up in the working
// directory. Environment variables and flags layer on top of it.
const DefaultFile = "maxdirsize.yml"

// Config holds the runtime configuration. It is constructed and validated
// once at startup, then passed by value; the daemon never re-reads it.
type Config struct {
	Directory       string   `yaml:"directory" mapstructure:"directory"`
	MaxSizeMB       int64    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	IntervalSeconds int64    `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	LogLevel        string   `yaml:"log_level" mapstructure:"log_level"`
	Exclude         []string `yaml:"exclude" mapstructure:"exclude"`
	PruneEmptyDirs  bool     `yaml:"prune_empty_dirs" mapstructure:"prune_empty_dirs"`
	DryRun          bool     `yaml:"dry_run" mapstructure:"dry_run"`
}

// MaxBytes converts the configured megabyte limit to bytes.
func (c Config) MaxBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// Interval returns the time between cycle starts.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Load reads the YAML file at path, expands ${VAR} environment references,
// and unmarshals it. A missing file is not an error; callers layer
// environment variables and flags over the result and then Validate.
func Load(path string) (Config, error) {
	cfg := Config{LogLevel: "info"}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// Validate enforces the startup preconditions and resolves Directory to an
// absolute path. A failure here is fatal: the caller must exit before any
// cycle runs.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.New("directory is required")
	}

	abs, err := filepath.Abs(c.Directory)
	if err != nil {
		return fmt.Errorf("resolve directory %q: %w", c.Directory, err)
	}
	c.Directory = filepath.Clean(abs)

	info, err := os.Stat(c.Directory)
	if err != nil {
		return fmt.Errorf("directory %s: %w", c.Directory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.Directory)
	}

	if c.MaxSizeMB <= 0 {
		return errors.New("max_size_mb must be positive")
	}
	if c.IntervalSeconds <= 0 {
		return errors.New("interval_seconds must be positive")
	}

	switch strings.ToLower(c.LogLevel) {
	case "error", "warn", "info", "debug":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}
