package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kdflabs/hkds-go/internal/constants"
	"github.com/kdflabs/hkds-go/pkg/metrics"
)

var (
	modeFlag      string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hkds",
	Short: "Provision devices and drive demonstration cycles for the HKDS key-derivation tree",
	Long: `hkds provisions a Master Derivation Key, derives per-device Embedded
Device Keys and tokens, and drives a client/server derivation cycle to
completion (token ingestion, cache refill, message encrypt/decrypt, epoch
rollover). It is a CLI harness around pkg/hkds, pkg/hkds/client, and
pkg/hkds/server — it holds no cryptographic logic of its own.`,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "M256", "Security mode: M128, M256, or M512")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error, silent")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
}

// parseMode maps the --mode flag to a constants.Mode, defaulting to M256 on
// an unrecognized value rather than failing the whole command. The fallback
// is silent: nothing downstream reports that the flag value was not
// recognized.
func parseMode(s string) constants.Mode {
	switch s {
	case "M128":
		return constants.M128
	case "M512":
		return constants.M512
	default:
		return constants.M256
	}
}

func newLogger() *metrics.Logger {
	format := metrics.FormatText
	if logFormatFlag == "json" {
		format = metrics.FormatJSON
	}
	return metrics.NewLogger(
		metrics.WithLevel(metrics.ParseLevel(logLevelFlag)),
		metrics.WithFormat(format),
		metrics.WithName("hkds-cli"),
	)
}
