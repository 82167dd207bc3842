package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/susu3304/finbot/internal/common"
	"github.com/susu3304/finbot/internal/config"
)

var (
	cfg       *config.Config
	logLevel  string
	logFormat string

	rootCmd = &cobra.Command{
		Use:   "finbot",
		Short: "💰 Personal finance chat bot",
		Long: `finbot records income and expenses through a chat dialogue, reports the
monthly balance by category and shows current exchange rates.

Run without a subcommand to start the bot.`,
		PersistentPreRunE: initConfig,
		RunE:              runServe,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(ratesCmd())
	rootCmd.AddCommand(tokenCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads .env and the environment, then configures logging.
// Chat credentials are checked only by the commands that need them.
func initConfig(_ *cobra.Command, _ []string) error {
	var err error
	if cfg, err = config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if _, err := common.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	return nil
}
