package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hortopan/maxdirsize/internal/config"
	"github.com/hortopan/maxdirsize/internal/sweep"
)

const version = "1.1.0"

var (
	bannerStyle = color.New(color.FgHiMagenta, color.Bold)
	infoStyle   = color.New(color.FgHiWhite)
)

// NewRootCommand builds the CLI. Running the root command starts the daemon;
// `once` runs a single cycle and exits.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "maxdirsize",
		Short: "Keep a directory tree under a maximum total size",
		Long: "maxdirsize periodically scans a directory tree and deletes the " +
			"oldest files first until total usage falls at or below a configured " +
			"limit. It is meant for cache and scratch directories that other " +
			"processes keep writing into.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", config.DefaultFile, "path to the YAML config file")
	flags.String("directory", "", "directory whose total size is bounded")
	flags.Int64("max-size-mb", 0, "maximum total size in megabytes")
	flags.Int64("interval-seconds", 0, "seconds between cleanup cycles")
	flags.String("log-level", "", "log verbosity: error, warn, info or debug")
	flags.String("exclude", "", "comma separated glob patterns to leave alone")
	flags.Bool("prune-empty-dirs", false, "remove directories left empty after eviction")
	flags.Bool("dry-run", false, "report what would be deleted without deleting anything")

	root.AddCommand(newOnceCommand())

	return root
}

func runDaemon(cmd *cobra.Command) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), bannerStyle.Sprintf(
		"Starting maxdirsize v%s, running every %d seconds on %s with a limit of %d MB",
		version, cfg.IntervalSeconds, cfg.Directory, cfg.MaxSizeMB))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sweep.New(cfg, log).Run(ctx)
}
