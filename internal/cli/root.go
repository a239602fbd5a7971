package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/basel-ax/fitroom/internal/config"
	"github.com/basel-ax/fitroom/internal/logger"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	debug bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "fitroom",
		Short:        "Virtual try-on relay and catalog service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "force debug logging regardless of LOG_LEVEL")

	cmd.AddCommand(
		serveCmd(opts),
		pruneCmd(opts),
		seedCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if o.debug {
		level = "debug"
	}
	return logger.New(level, cfg.LogFormat, os.Stderr)
}
