package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/apsta/internal/config"
	"github.com/muurk/apsta/internal/cycle"
	"github.com/muurk/apsta/internal/ui"
	"github.com/muurk/apsta/internal/wifi"
)

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(apCmd)
	rootCmd.AddCommand(runCmd)
}

// Station flags shared by connect and run
func addStationFlags(cmd *cobra.Command) {
	cmd.Flags().String("ssid", "", "Upstream network SSID")
	cmd.Flags().String("password", "", "Upstream network password")
	cmd.Flags().Uint32("max-attempts", 0, "Reconnect attempts before giving up")
	cmd.Flags().Duration("backoff", 0, "Delay before each reconnect attempt")
	cmd.Flags().String("retryable", "", "Comma separated reasons that trigger a reconnect")
	cmd.Flags().String("status-addr", "", "Status server listen address")
	cmd.Flags().Bool("status", true, "Run the status server")
}

var stationBindings = map[string]string{
	config.KeySTASSID:       "ssid",
	config.KeySTAPassword:   "password",
	config.KeyMaxAttempts:   "max-attempts",
	config.KeyBackoff:       "backoff",
	config.KeyRetryable:     "retryable",
	config.KeyStatusAddr:    "status-addr",
	config.KeyStatusEnabled: "status",
}

func mergeBindings(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// connectCmd performs a single blocking station connect
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the upstream network as a station",
	Long: `Connect to the upstream network and wait for the outcome.

Transient disconnects (by default NO_AP_FOUND, ASSOC_LEAVE, AUTH_EXPIRE,
UNSPECIFIED and AUTH_LEAVE) are retried after the backoff delay until the
attempt budget is spent. The command reports "connected" once an address
has been acquired, or "disconnected" when the budget runs out, a
non-retryable reason is reported or the timeout expires.

With --stay the station keeps running after connecting, reconnecting on
transient drops, until interrupted.`,
	Example: `  # Connect using the configured network
  apsta connect

  # Connect to a specific network with a 30 second timeout
  apsta connect --ssid HomeNet --password hunter22 --timeout 30s

  # Stay connected and serve status on port 9000
  apsta connect --stay --status-addr :9000`,
	RunE: runConnect,
}

func init() {
	addStationFlags(connectCmd)
	connectCmd.Flags().Duration("timeout", cycle.DefaultConnectTimeout, "Time to wait for an outcome")
	connectCmd.Flags().Bool("stay", false, "Keep the station running after connecting")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, mergeBindings(stationBindings))
	if err != nil {
		return err
	}
	if cfg.Station.SSID == "" {
		return fmt.Errorf("no upstream network configured (use --ssid or set station.ssid)")
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	stay, _ := cmd.Flags().GetBool("stay")

	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	a, err := newApp(ctx, cfg)
	if err != nil {
		return failure(p, "Radio initialisation failed", err)
	}
	defer a.Close()

	p.PrintHeader("Station Connect", "apsta connect", append([]ui.Param{
		{Key: "SSID", Value: cfg.Station.SSID},
		{Key: "Timeout", Value: timeout.String()},
		{Key: "Attempts", Value: strconv.FormatUint(uint64(cfg.Reconnect.MaxAttempts), 10)},
		{Key: "Backoff", Value: cfg.Reconnect.Backoff.String()},
	}, a.statusParams()...)...)

	start := time.Now()
	outcome, err := a.manager.ConnectStation(ctx, cfg.StationCredentials(), timeout)
	if err != nil {
		return failure(p, "Station connect failed", err)
	}

	status := a.manager.Status()
	if outcome == wifi.Disconnected {
		r := ui.NewWarningResult("Not connected",
			ui.Param{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
			ui.Param{Key: "Attempts", Value: strconv.FormatUint(uint64(status.Attempts), 10)},
		)
		if status.LastReason != 0 {
			r.AddDetail("Last reason", status.LastReason.String())
		}
		p.Println(r.SetWidth(p.Width()).Render())
		return fmt.Errorf("station %q did not connect", cfg.Station.SSID)
	}

	p.PrintSuccess("Connected",
		ui.Param{Key: "Address", Value: status.Address},
		ui.Param{Key: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
	)

	if stay {
		p.Println("Station running. Press Ctrl+C to stop.")
		<-ctx.Done()
	}
	return nil
}

// apCmd runs the access point until interrupted
var apCmd = &cobra.Command{
	Use:   "ap",
	Short: "Run the setup access point",
	Long: `Start the soft access point and keep it running until interrupted.

While the access point is up the status server is advertised over mDNS as
` + "`_apsta._tcp`" + ` so that configuration clients can find it.`,
	Example: `  # Start the configured access point
  apsta ap

  # Override the SSID and channel
  apsta ap --ssid my-setup --password setup-pass --channel 11`,
	RunE: runAP,
}

func init() {
	apCmd.Flags().String("ssid", "", "Access point SSID")
	apCmd.Flags().String("password", "", "Access point password")
	apCmd.Flags().Uint8("channel", 0, "Access point channel (1-13)")
	apCmd.Flags().Uint8("max-clients", 0, "Maximum associated clients")
	apCmd.Flags().String("status-addr", "", "Status server listen address")
	apCmd.Flags().Bool("status", true, "Run the status server")
	apCmd.Flags().Bool("advertise", true, "Advertise over mDNS while the access point runs")
}

var apBindings = map[string]string{
	config.KeyAPSSID:        "ssid",
	config.KeyAPPassword:    "password",
	config.KeyAPChannel:     "channel",
	config.KeyAPMaxClients:  "max-clients",
	config.KeyStatusAddr:    "status-addr",
	config.KeyStatusEnabled: "status",
	config.KeyAdvertise:     "advertise",
}

func runAP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, mergeBindings(apBindings))
	if err != nil {
		return err
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	a, err := newApp(ctx, cfg)
	if err != nil {
		return failure(p, "Radio initialisation failed", err)
	}
	defer a.Close()

	creds := cfg.AccessPointCredentials()
	p.PrintHeader("Access Point", "apsta ap", append([]ui.Param{
		{Key: "SSID", Value: creds.SSID},
		{Key: "Channel", Value: strconv.Itoa(int(creds.Channel))},
		{Key: "Max clients", Value: strconv.Itoa(int(creds.MaxClients))},
	}, a.statusParams()...)...)

	if err := a.manager.StartAccessPoint(ctx, creds); err != nil {
		return failure(p, "Access point failed", err)
	}

	r := ui.NewSuccessResult("Access point running")
	if a.announcer != nil {
		r.AddDetail("mDNS", cfg.Discovery.Instance)
	}
	p.Println(r.SetWidth(p.Width()).Render())
	p.Println("Press Ctrl+C to stop.")

	<-ctx.Done()
	peers := len(a.manager.Status().Peers)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.manager.Stop(stopCtx); err != nil {
		return failure(p, "Access point stop failed", err)
	}
	p.Printf("Access point stopped (%d clients at shutdown).\n", peers)
	return nil
}

// runCmd cycles between the access point and the station
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cycle between access point and station",
	Long: `Alternate the radio between the access point and station roles.

Each cycle starts the access point for the AP dwell time, stops it,
connects to the upstream network with the connect timeout, keeps the
station for the STA dwell time and stops it again. A station that fails
to connect does not end the loop; only a radio error or an interrupt does.`,
	Example: `  # Cycle forever with the configured timing
  apsta run

  # Three quick cycles
  apsta run --ap-dwell 2s --sta-dwell 2s --max-cycles 3`,
	RunE: runCycle,
}

func init() {
	addStationFlags(runCmd)
	runCmd.Flags().Duration("ap-dwell", 0, "Time spent in the access point role")
	runCmd.Flags().Duration("sta-dwell", 0, "Time spent in the station role")
	runCmd.Flags().Duration("connect-timeout", 0, "Time to wait for the station to connect")
	runCmd.Flags().Int("max-cycles", 0, "Stop after this many cycles (0 runs forever)")
}

var cycleBindings = map[string]string{
	config.KeyAPDwell:        "ap-dwell",
	config.KeySTADwell:       "sta-dwell",
	config.KeyConnectTimeout: "connect-timeout",
	config.KeyMaxCycles:      "max-cycles",
}

func runCycle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, mergeBindings(stationBindings, cycleBindings))
	if err != nil {
		return err
	}
	if cfg.Station.SSID == "" {
		return fmt.Errorf("no upstream network configured (use --ssid or set station.ssid)")
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	a, err := newApp(ctx, cfg)
	if err != nil {
		return failure(p, "Radio initialisation failed", err)
	}
	defer a.Close()

	cc := cfg.CycleConfig()
	maxCycles := "unlimited"
	if cc.MaxCycles > 0 {
		maxCycles = strconv.Itoa(cc.MaxCycles)
	}
	p.PrintHeader("Mode Cycle", "apsta run", append([]ui.Param{
		{Key: "Access point", Value: cc.AccessPoint.SSID},
		{Key: "Station", Value: cc.Station.SSID},
		{Key: "Dwell", Value: fmt.Sprintf("AP %s / STA %s", cc.APDwell, cc.STADwell)},
		{Key: "Cycles", Value: maxCycles},
	}, a.statusParams()...)...)

	driver := cycle.NewDriver(a.manager, cc, a.logger)
	connected := 0
	completed := 0
	driver.OnCycle = func(r cycle.Result) {
		completed++
		marker := ui.WarningMarker
		if r.Outcome == wifi.Connected {
			marker = ui.SuccessMarker
			connected++
		}
		p.Printf("  %s cycle %d: %s (%s)\n", marker, r.Cycle, r.Outcome, r.Elapsed.Round(time.Millisecond))
	}

	if err := driver.Run(ctx); err != nil {
		return failure(p, "Mode cycle aborted", err)
	}

	p.PrintSuccess("Mode cycle finished",
		ui.Param{Key: "Cycles", Value: strconv.Itoa(completed)},
		ui.Param{Key: "Connected", Value: strconv.Itoa(connected)},
	)
	return nil
}
