// Package cycle alternates the radio between access point and station roles.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/wifi"
)

// Defaults for a mode cycle.
const (
	DefaultAPDwell        = 5 * time.Second
	DefaultSTADwell       = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Controller is the part of the connection manager the driver uses.
type Controller interface {
	StartAccessPoint(ctx context.Context, creds wifi.AccessPointCredentials) error
	ConnectStation(ctx context.Context, creds wifi.StationCredentials, timeout time.Duration) (wifi.Outcome, error)
	Stop(ctx context.Context) error
}

// Compile-time interface guard.
var _ Controller = (*wifi.Manager)(nil)

// Config holds the fixed credentials and timing of the cycle.
type Config struct {
	AccessPoint wifi.AccessPointCredentials
	Station     wifi.StationCredentials

	APDwell        time.Duration
	STADwell       time.Duration
	ConnectTimeout time.Duration

	// MaxCycles stops the loop after that many iterations. Zero runs until
	// the context is cancelled.
	MaxCycles int
}

// withDefaults fills zero durations.
func (c Config) withDefaults() Config {
	if c.APDwell <= 0 {
		c.APDwell = DefaultAPDwell
	}
	if c.STADwell <= 0 {
		c.STADwell = DefaultSTADwell
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return c
}

// Result summarises one iteration.
type Result struct {
	Cycle   int
	Outcome wifi.Outcome
	Elapsed time.Duration
}

// Driver runs the AP -> STA -> AP loop.
type Driver struct {
	ctrl   Controller
	cfg    Config
	logger *zap.Logger

	// OnCycle, when set, is called after every completed iteration.
	OnCycle func(Result)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a driver. A nil logger uses the global logger.
func NewDriver(ctrl Controller, cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Driver{
		ctrl:   ctrl,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("cycle"),
		sleep:  sleepContext,
	}
}

// Run cycles until ctx is cancelled, MaxCycles is reached or a fatal stack
// error occurs. A station that fails to connect never stops the loop.
// Cancellation tears the active role down and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	for n := 1; d.cfg.MaxCycles == 0 || n <= d.cfg.MaxCycles; n++ {
		start := time.Now()
		outcome, err := d.iterate(ctx)
		if err != nil {
			d.teardown()
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				d.logger.Info("Mode cycle cancelled", zap.Int("cycle", n))
				return nil
			}
			d.logger.Error("Mode cycle aborted", zap.Int("cycle", n), zap.Error(err))
			return fmt.Errorf("cycle %d: %w", n, err)
		}

		res := Result{Cycle: n, Outcome: outcome, Elapsed: time.Since(start)}
		d.logger.Info("Mode cycle complete",
			zap.Int("cycle", n),
			zap.Stringer("outcome", outcome),
			zap.Duration("elapsed", res.Elapsed),
		)
		if d.OnCycle != nil {
			d.OnCycle(res)
		}
	}
	return nil
}

func (d *Driver) iterate(ctx context.Context) (wifi.Outcome, error) {
	if err := d.ctrl.StartAccessPoint(ctx, d.cfg.AccessPoint); err != nil {
		return wifi.Disconnected, fmt.Errorf("start access point: %w", err)
	}
	if err := d.sleep(ctx, d.cfg.APDwell); err != nil {
		return wifi.Disconnected, err
	}
	if err := d.ctrl.Stop(ctx); err != nil {
		return wifi.Disconnected, fmt.Errorf("stop access point: %w", err)
	}

	outcome, err := d.ctrl.ConnectStation(ctx, d.cfg.Station, d.cfg.ConnectTimeout)
	if err != nil {
		return outcome, fmt.Errorf("connect station: %w", err)
	}
	if outcome == wifi.Disconnected {
		d.logger.Warn("Station did not connect, continuing cycle",
			zap.String("ssid", d.cfg.Station.SSID),
		)
	}
	if err := d.sleep(ctx, d.cfg.STADwell); err != nil {
		return outcome, err
	}
	if err := d.ctrl.Stop(ctx); err != nil {
		return outcome, fmt.Errorf("stop station: %w", err)
	}
	return outcome, nil
}

// teardown stops the active role with a fresh context so that cancellation
// still leaves the radio idle.
func (d *Driver) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.ctrl.Stop(ctx); err != nil {
		d.logger.Warn("Teardown failed", zap.Error(err), zap.String("hint", radio.TroubleshootingHint(err)))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
