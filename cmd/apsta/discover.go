package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/apsta/internal/discovery"
	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/ui"
)

// Discovery and monitor flags
var (
	scanTimeout     time.Duration
	monitorInstance string
)

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(monitorCmd)
}

// discoverCmd browses for advertised access points
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find apsta access points on the local network",
	Long: `Browse for apsta devices using mDNS/DNS-SD discovery.

Devices advertise ` + "`_apsta._tcp`" + ` while their access point is up. Each
result shows the status server address and the advertised SSID.`,
	Example: `  # Scan for 5 seconds (default)
  apsta discover

  # Longer scan for busy networks
  apsta discover --timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Scan timeout")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		_ = err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Printf("Scanning for apsta devices (timeout: %s)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	devices, err := scanner.Scan(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		p.PrintError("No devices found", nil, []string{
			"Ensure the device access point is running (apsta ap)",
			"Check that this machine is on the same network or joined to the access point",
			"Try increasing --timeout for slower networks",
		})
		return nil
	}

	details := make([]ui.Param, 0, len(devices))
	for _, d := range devices {
		details = append(details, ui.Param{Key: d.Instance, Value: d.String()})
	}
	p.PrintSuccess(fmt.Sprintf("Found %d device(s)", len(devices)), details...)
	p.Println("Use 'apsta monitor <url>' to watch a device")
	return nil
}

// monitorCmd follows a status server's event stream
var monitorCmd = &cobra.Command{
	Use:   "monitor [url]",
	Short: "Watch a running manager live",
	Long: `Show the live state of a running apsta manager.

The monitor loads the status snapshot from the status server and then
follows its event stream, reconnecting and resuming where it left off if
the connection drops. Without a URL the local status server is watched,
or with --instance the named device is located over mDNS.`,
	Example: `  # Watch the local manager
  apsta monitor

  # Watch a specific device
  apsta monitor http://192.168.4.1:8080

  # Find a device by mDNS instance name
  apsta monitor --instance kitchen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorInstance, "instance", "", "mDNS instance to locate")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	target, err := monitorTarget(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := ui.NewMonitorModel(ctx, ui.HTTPFeed{BaseURL: target}, target)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}

// monitorTarget picks the status server to watch.
func monitorTarget(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return "", err
	}

	if monitorInstance != "" {
		d, err := discovery.NewScanner().Find(context.Background(), monitorInstance)
		if err != nil {
			return "", err
		}
		return d.BaseURL(), nil
	}

	return fmt.Sprintf("http://localhost:%d", listenPort(cfg.Status.Addr)), nil
}
