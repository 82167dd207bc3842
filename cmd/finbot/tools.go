package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/susu3304/finbot/internal/api"
	"github.com/susu3304/finbot/internal/db"
	"github.com/susu3304/finbot/internal/rates"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ledger, err := db.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer ledger.Close()

			if err := ledger.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s schema is up to date\n", cfg.DBDriver)
			return nil
		},
	}
}

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates [BASE]",
		Short: "Print the latest exchange rates for a base currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := cfg.RatesBase
			if len(args) == 1 {
				base = args[0]
			}

			client := rates.NewClient(cfg.ExchangeAPIKey,
				rates.WithBaseURL(cfg.ExchangeAPIURL),
				rates.WithTimeout(cfg.RatesTimeout))
			quotes, err := client.Fetch(cmd.Context(), base)
			if err != nil {
				return err
			}

			codes := make([]string, 0, len(quotes))
			for code := range quotes {
				codes = append(codes, code)
			}
			sort.Strings(codes)

			out := cmd.OutOrStdout()
			for _, code := range codes {
				fmt.Fprintf(out, "%s\t%s\n", code, quotes[code].String())
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token ID",
		Short: "Issue a web API token for a chat user ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user ID %q: %w", args[0], err)
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required to issue tokens")
			}

			tok, err := api.NewIssuer(cfg.JWTSecret, api.DefaultTokenTTL).IssueToken(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}
