// Apsta manages a WiFi radio that switches between access point and station
// roles.
//
// It connects to an upstream network with automatic reconnects, runs a
// setup access point, or cycles between the two. A status server exposes the
// manager state, a live event stream and Prometheus metrics, and the access
// point advertises itself over mDNS while it is up.
//
// Usage:
//
//	apsta [command] [flags]
//
// See 'apsta --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/apsta/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath   string
	scenarioPath string
)

var rootCmd = &cobra.Command{
	Use:   "apsta",
	Short: "WiFi AP/STA connection manager",
	Long: `A connection manager for a WiFi radio that can act as an access point
or as a station.

The station role reconnects automatically on transient disconnects, up to a
configured budget. The access point role is used for device setup and is
advertised over mDNS while it runs. The radio backend is a simulated stack
driven by a scenario file.

Configuration is read from $XDG_CONFIG_HOME/apsta/config.yaml, overridden by
APSTA_* environment variables and then by command line flags.
Set APSTA_LOG_LEVEL=debug to see detailed logs.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/apsta/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "Simulated radio scenario file")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apsta %s\n", version.Full())
	},
}
