package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/alphatilt/internal/config"
)

const (
	appName = "alphatilt"
	version = "v1.3.0"
)

var (
	flagConfig   string
	flagLogLevel string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Volatility-adjusted alpha tilt allocator with regime control",
		Version: version,
		Long: `AlphaTilt turns per-symbol alpha scores into a bounded, risk-aware weight
vector on a weekly rebalance cadence, with regime-dependent eligibility
floors and an emergency full-liquidation brake.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config/alphatilt.yaml", "Path to YAML configuration")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override configured log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newTickCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configured YAML and applies the log level
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return cfg, fmt.Errorf("unknown log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)

	return cfg, nil
}
