// lightdim-host talks to the light-following dimmer: it decodes the
// firmware's telemetry from a serial port, or runs the firmware core on a
// simulated board.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"lightdim/host/logging"
	"lightdim/protocol"
)

// version is set via ldflags during build.
var version = "dev"

func versionString() string {
	return version + " (telemetry format " + protocol.Version + ")"
}

var rootCmd = &cobra.Command{
	Use:   "lightdim-host",
	Short: "Host tools for the KL46Z light-following dimmer",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		format, _ := cmd.Flags().GetString("log-format")
		logging.Initialize(logging.Config{Level: level, Format: format})
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = versionString()
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Logging format (text, json)")
	rootCmd.AddCommand(MonitorCmd, SimulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
