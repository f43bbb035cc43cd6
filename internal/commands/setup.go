package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hortopan/maxdirsize/internal/config"
)

// envVars maps config keys onto the environment variables the daemon has
// always recognized.
var envVars = map[string]string{
	"directory":        "DIRECTORY",
	"max_size_mb":      "MAX_SIZE_MB",
	"interval_seconds": "INTERVAL_SECONDS",
	"log_level":        "LOG_LEVEL",
	"exclude":          "EXCLUDE",
	"prune_empty_dirs": "PRUNE_EMPTY_DIRS",
	"dry_run":          "DRY_RUN",
}

var flagNames = map[string]string{
	"directory":        "directory",
	"max_size_mb":      "max-size-mb",
	"interval_seconds": "interval-seconds",
	"log_level":        "log-level",
	"exclude":          "exclude",
	"prune_empty_dirs": "prune-empty-dirs",
	"dry_run":          "dry-run",
}

// loadConfig builds the effective configuration with precedence
// flag > environment > config file > default, then validates it. A
// validation failure is fatal to the caller: no cycle may run after one.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	v := viper.New()
	v.SetDefault("directory", cfg.Directory)
	v.SetDefault("max_size_mb", cfg.MaxSizeMB)
	v.SetDefault("interval_seconds", cfg.IntervalSeconds)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("exclude", strings.Join(cfg.Exclude, ","))
	v.SetDefault("prune_empty_dirs", cfg.PruneEmptyDirs)
	v.SetDefault("dry_run", cfg.DryRun)

	for key, env := range envVars {
		if err := v.BindEnv(key, env); err != nil {
			return config.Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	for key, name := range flagNames {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return config.Config{}, fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	cfg.Directory = v.GetString("directory")
	cfg.MaxSizeMB = v.GetInt64("max_size_mb")
	cfg.IntervalSeconds = v.GetInt64("interval_seconds")
	cfg.LogLevel = v.GetString("log_level")
	cfg.Exclude = splitPatterns(v.GetString("exclude"))
	cfg.PruneEmptyDirs = v.GetBool("prune_empty_dirs")
	cfg.DryRun = v.GetBool("dry_run")

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func splitPatterns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	patterns := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	if len(patterns) == 0 {
		return nil
	}
	return patterns
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	return log, nil
}
