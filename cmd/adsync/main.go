// Command adsync mirrors directory groups, users and their memberships
// into a relational backend on a fixed interval.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"adsync/internal/engine"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		dryRun     bool
		once       bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:          "adsync",
		Short:        "Mirror directory groups, users and memberships into a relational backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := new(slog.LevelVar)
			if verbose {
				level.Set(slog.LevelDebug)
			}
			log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng := engine.New(configPath, dryRun, log)
			eng.SetLevelVar(level)

			if once {
				eng.RunOnce(ctx)
				return nil
			}
			eng.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yml", "path to the YAML configuration file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract from the directory but discard instead of persisting")
	cmd.Flags().BoolVar(&once, "once", false, "run a single sync cycle and exit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging until the configured level takes over")
	return cmd
}
