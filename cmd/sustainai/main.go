package main

import (
	"fmt"
	"os"

	"sustainai/internal/cfg"
	"sustainai/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

type rootOptions struct {
	logLevel  string
	logFormat string
	envFile   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "sustainai",
		Short:         "Process-efficiency model inference and explainability",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			setupLogging(
				flagOrEnv(cmd, "log-level", opts.logLevel, common.EnvLogLevel),
				flagOrEnv(cmd, "log-format", opts.logFormat, common.EnvLogFormat),
			)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", common.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", common.DefaultLogFormat, "Log format (json or console)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", common.DefaultDotEnvFile, "File with environment variables to load if present")

	root.AddCommand(
		newServeCmd(),
		newPredictCmd(),
		newImportancesCmd(),
		newInspectCmd(),
		newQueryCmd(),
		newVersionCmd(),
	)
	return root
}

// flagOrEnv prefers an explicitly set flag, then the environment, then the
// flag default.
func flagOrEnv(cmd *cobra.Command, flag, value, envKey string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return value
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == common.LogFormatConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sustainai "+version)
		},
	}
}
