package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"httpbridge/internal/app"
	"httpbridge/pkg/logger"
	"httpbridge/pkg/shutdown"
)

const shutdownTimeout = 20 * time.Second

func newServeCmd(info buildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP bridge (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, info)
		},
	}
}

func runServe(cmd *cobra.Command, info buildInfo) error {
	eff, err := loadEffectiveConfig(cmd)
	if err != nil {
		shutdown.Abort("failed to load configuration", err)
		return err
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr)

	a, err := app.New(eff, info.version, info.commit, info.buildDate)
	if err != nil {
		shutdown.Abort("failed to initialize app", err)
		return err
	}

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("app run failed", err)
		return err
	}

	// shutdown the app with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	return a.Shutdown(shutdownCtx)
}
