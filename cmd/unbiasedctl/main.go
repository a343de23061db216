// Command unbiasedctl is the operator CLI: trigger updates, inspect the rate
// limit and run history, and check feeds without writing anything.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Saul-Punybz/unbiased/internal/app"
	"github.com/Saul-Punybz/unbiased/internal/config"
	"github.com/Saul-Punybz/unbiased/internal/logger"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "unbiasedctl",
		Short:         "Operate the Unbiased news aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "Override LOG_LEVEL")

	root.AddCommand(
		updateCmd(),
		limitCmd(),
		historyCmd(),
		archiveCmd(),
		sourcesCmd(),
		sourceCmd(),
		articleCmd(),
		checkFeedsCmd(),
		hashTokenCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads and validates the environment and installs a text logger
// on stderr, keeping stdout for command output.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	logger.Init(os.Stderr, logger.Text, cfg.Log.Level)
	return cfg, nil
}

// openApp connects to every configured backend.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
