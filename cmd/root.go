package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"labscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "labscan",
	Short: "labscan - read, tabulate and translate lab report photos",
	Long: `labscan turns a photo of a medical lab report into text, asks a chat
completion model to arrange the measurements into a table of
measurement, value, low and high, and optionally translates the table.

Each step is also available on its own, so text can be piped between them.`,
	Version:      version,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("labscan executed without a command")

		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
