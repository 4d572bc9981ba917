package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/config"
	"github.com/muurk/apsta/internal/discovery"
	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/metrics"
	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/radio/sim"
	"github.com/muurk/apsta/internal/server"
	"github.com/muurk/apsta/internal/ui"
	"github.com/muurk/apsta/internal/wifi"
)

const shutdownTimeout = 5 * time.Second

// loadConfig reads the config file and applies environment and flag
// overrides. bindings maps config keys to flag names of cmd.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	// Initialize logging from environment variable (silent by default)
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if bindings == nil {
		bindings = map[string]string{}
	}
	bindings[config.KeyScenario] = "scenario"

	v, err := config.NewViper(cmd.Flags(), bindings)
	if err != nil {
		return nil, err
	}
	if err := cfg.Overlay(v); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkConfig rejects a configuration with validation errors and logs the
// warnings.
func checkConfig(cfg *config.Config) error {
	warnings, errs := wifi.SeparateWarningsAndErrors(cfg.Validate())
	for _, w := range warnings {
		logging.Warn("Configuration warning", zap.Error(w))
	}
	if len(errs) > 0 {
		return errors.New(wifi.FormatValidationErrors(errs))
	}
	return nil
}

// loadScenario returns the scenario named in cfg. Without one the built-in
// scenario is used, with the configured upstream network reachable.
func loadScenario(cfg *config.Config) (sim.Scenario, error) {
	if cfg.Scenario != "" {
		return sim.LoadScenario(cfg.Scenario)
	}
	sc := sim.DefaultScenario()
	if cfg.Station.SSID != "" {
		sc.Name = "default"
		sc.Networks = []sim.Network{{SSID: cfg.Station.SSID, Password: cfg.Station.Password}}
	}
	return sc, nil
}

// app is the assembled manager with its status server and mDNS
// announcer.
type app struct {
	cfg       *config.Config
	manager   *wifi.Manager
	metrics   *metrics.Collector
	server    *server.Server
	announcer *discovery.Announcer
	logger    *zap.Logger
}

// newApp builds and initialises the manager and starts the status
// server when it is enabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.GetLogger()

	sc, err := loadScenario(cfg)
	if err != nil {
		return nil, err
	}

	rt := &app{
		cfg:     cfg,
		metrics: metrics.New(),
		logger:  logger,
	}
	observers := []wifi.Observer{rt.metrics}

	hub := server.NewHub(server.DefaultHistory, logger)
	if cfg.Status.Enabled {
		observers = append(observers, hub)
	}

	rt.manager = wifi.NewManager(sim.New(sc, sim.WithLogger(logger)), wifi.Options{
		Policy:    cfg.Policy(),
		Logger:    logger,
		Observers: observers,
	})

	if cfg.Status.Enabled && cfg.Discovery.Advertise {
		rt.announcer = discovery.NewAnnouncer(discovery.AnnouncerConfig{
			Instance: cfg.Discovery.Instance,
			Port:     listenPort(cfg.Status.Addr),
			SSID:     cfg.AccessPoint.SSID,
			Role:     rt.manager.Role,
		}, nil, logger)
		rt.manager.Subscribe(rt.announcer)
	}

	if cfg.Status.Enabled {
		srv, err := server.New(cfg.ServerConfig(), rt.manager, hub, rt.metrics.Handler(), logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		if err := srv.Start(); err != nil {
			rt.Close()
			return nil, err
		}
		rt.server = srv
	}

	if err := rt.manager.Init(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// statusURL returns the base URL of the running status server, or "".
func (rt *app) statusURL() string {
	if rt.server == nil || rt.server.Addr() == nil {
		return ""
	}
	scheme := "http"
	if rt.cfg.Status.CertPath != "" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, rt.server.Addr())
}

// Close stops the radio, the announcer and the status server.
func (rt *app) Close() {
	if err := rt.manager.Close(); err != nil {
		rt.logger.Warn("Failed to close connection manager", zap.Error(err))
	}
	if rt.announcer != nil {
		rt.announcer.Close()
	}
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.server.Shutdown(ctx); err != nil {
			rt.logger.Warn("Status server shutdown incomplete", zap.Error(err))
		}
	}
	logging.Sync()
}

// statusParams returns header parameters describing the status server.
func (rt *app) statusParams() []ui.Param {
	if url := rt.statusURL(); url != "" {
		return []ui.Param{{Key: "Status", Value: url}}
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// listenPort extracts the port from a listen address, falling back to the
// default status port.
func listenPort(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return discovery.DefaultPort
	}
	n, err := strconv.Atoi(port)
	if err != nil || n == 0 {
		return discovery.DefaultPort
	}
	return n
}

// failure prints a failure box for err, with the stack troubleshooting
// hint when there is one, and returns err for cobra.
func failure(p *ui.Printer, title string, err error) error {
	var tips []string
	if radio.IsStackError(err) {
		tips = ui.TroubleshootingLines(radio.TroubleshootingHint(err))
	}
	p.PrintError(title, err, tips)
	return err
}
