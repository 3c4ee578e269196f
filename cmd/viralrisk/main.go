package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sawpanic/viralrisk/internal/config"
)

const (
	appName = "viralrisk"
	version = "v1.0.0"
)

// appConfig is loaded once by the root command before any subcommand runs
var appConfig *config.AppConfig

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	setupLogging("info")

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Virality risk scoring and configuration management",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `viralrisk scores content items for the risk of going viral with harmful reach.

It serves predictions over HTTP, manages versioned scoring configurations with
rollback and A/B testing, and tunes configurations from historical outcomes.`,
		PersistentPreRunE: loadConfig,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to application config YAML")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newServeCmd(),
		newPredictCmd(),
		newConfigCmd(),
		newABTestCmd(),
		newTrainCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	cfg, err := config.LoadAppConfig(path)
	if err != nil {
		return err
	}
	if level := stringFlag(flags, "log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg.Log.Level)
	appConfig = cfg
	return nil
}

// setupLogging writes human-readable logs to a terminal and JSON lines otherwise
func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func stringFlag(flags *pflag.FlagSet, name string) string {
	v, err := flags.GetString(name)
	if err != nil {
		return ""
	}
	return v
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// commandContext bounds one-shot commands so a hung store does not hang the CLI
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout())
}

func commandTimeout() time.Duration {
	if t := appConfig.HTTP.RequestTimeout; t > 0 {
		return t
	}
	return 30 * time.Second
}
