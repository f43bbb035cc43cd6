package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hortopan/maxdirsize/internal/sweep"
)

func newOnceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single cleanup cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := sweep.New(cfg, log).Sweep(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", infoStyle.Sprintf(
				"Freed %s across %d files",
				humanize.IBytes(uint64(res.BytesFreed)), res.FilesRemoved))
			return nil
		},
	}
	return cmd
}
