package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultConnections = 4
	MaxConnections     = 32
)

func AddRootPersistentFlags(cmd *cobra.Command) error {
	// Persistent Flags (applies to all commands/subcommands)
	cmd.PersistentFlags().IntP(OptConnections, "n", DefaultConnections, fmt.Sprintf("Maximum number of concurrent connections to attempt (1-%d)", MaxConnections))
	cmd.PersistentFlags().Duration(OptConnTimeout, 5*time.Second, "Timeout for establishing a connection, format is <number><unit>, e.g. 10s")
	cmd.PersistentFlags().BoolP(OptForce, "f", false, "Force download, overwriting existing file")
	cmd.PersistentFlags().IntP(OptRetries, "r", 5, "Number of retries for the metadata request")
	cmd.PersistentFlags().BoolP(OptVerbose, "v", false, "Verbose mode (equivalent to --log-level debug)")
	cmd.PersistentFlags().String(OptLoggingLevel, "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool(OptSkipProbe, false, "Skip the concurrency probe and use --connections as-is")
	cmd.PersistentFlags().Bool(OptPlain, false, "Disable the terminal interface, print log lines only")
	cmd.PersistentFlags().Duration(OptProbeTimeout, time.Second, "Timeout for each concurrency probe request")
	cmd.PersistentFlags().Duration(OptProbeGrace, time.Second, "Pause between successful probe rounds")

	viper.SetEnvPrefix("PARGET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("failed to bind persistent flags: %w", err)
	}

	// Hide flags from help, these are intended for testing/benchmarking only
	for _, flag := range []string{OptProbeTimeout, OptProbeGrace} {
		if err := cmd.PersistentFlags().MarkHidden(flag); err != nil {
			return fmt.Errorf("failed to hide flag %s: %w", flag, err)
		}
	}

	return nil
}

func PersistentStartupProcessFlags() error {
	if viper.GetBool(OptVerbose) {
		viper.Set(OptLoggingLevel, "debug")
	}
	setLogLevel(viper.GetString(OptLoggingLevel))
	return validateConnections(viper.GetInt(OptConnections))
}

func validateConnections(n int) error {
	if n < 1 || n > MaxConnections {
		return fmt.Errorf("invalid --%s %d: must be between 1 and %d", OptConnections, n, MaxConnections)
	}
	return nil
}

func setLogLevel(logLevel string) {
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
