package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"filelinker/internal/config"
	"filelinker/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "filelinker",
		Short:        "Share archived files through deep links in a chat bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.Load())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newStatsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the deletion sweeper and the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.Load())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the registry schema if it is missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)
			st, err := openStores(cmd.Context(), cfg.Database, logger)
			if err != nil {
				logger.Error("migrate_failed", "err", err)
				return err
			}
			return st.Close()
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print registry totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)
			st, err := openStores(cmd.Context(), cfg.Database, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			return printStats(cmd.Context(), cmd.OutOrStdout(), st.registry(logger))
		},
	}
}
