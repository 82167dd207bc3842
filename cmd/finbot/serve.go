package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/susu3304/finbot/internal/api"
	"github.com/susu3304/finbot/internal/bot"
	"github.com/susu3304/finbot/internal/commands"
	"github.com/susu3304/finbot/internal/conversation"
	"github.com/susu3304/finbot/internal/db"
	"github.com/susu3304/finbot/internal/rates"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot (and the web API when WEB_BIND is set)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ledger, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer ledger.Close()

	if err := ledger.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	sessions := conversation.NewStore()
	janitor := conversation.NewJanitor(sessions, cfg.SessionIdleTimeout, logger)
	janitor.Start()
	defer janitor.Stop()

	fetcher := rates.NewClient(cfg.ExchangeAPIKey,
		rates.WithBaseURL(cfg.ExchangeAPIURL),
		rates.WithTimeout(cfg.RatesTimeout))
	if cfg.ExchangeAPIKey == "" {
		logger.Warn("EXCHANGE_API_KEY is not set, exchange rates will be unavailable")
	}

	opts := []commands.Option{
		commands.WithCurrencySymbol(cfg.CurrencySymbol),
		commands.WithRatesBase(cfg.RatesBase),
	}

	var apiServer *api.API
	if cfg.APIEnabled() {
		issuer := api.NewIssuer(cfg.JWTSecret, api.DefaultTokenTTL)
		opts = append(opts, commands.WithTokenIssuer(issuer))
		apiServer = api.New(cfg, ledger, issuer, logger)
	}

	router := commands.NewRouter(ledger, sessions, fetcher, logger, opts...)

	transport, err := bot.New(cfg, router, logger)
	if err != nil {
		return err
	}

	if apiServer != nil {
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("api server error", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("finbot starting",
		slog.String("transport", cfg.Transport),
		slog.String("db_driver", cfg.DBDriver),
		slog.Bool("api", cfg.APIEnabled()))

	if err := transport.Run(ctx); err != nil {
		return err
	}
	logger.Info("Shutting down...")
	return nil
}
