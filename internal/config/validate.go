package config

import (
	"fmt"
	"net"

	"github.com/muurk/apsta/internal/wifi"
)

// Validate checks every section. The station section is only checked when
// it is filled in; commands that need it check presence themselves. The
// result uses the wifi validation conventions: entries whose message starts
// with "warning:" are advisory.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, wifi.ValidateAccessPoint(c.AccessPointCredentials())...)
	if c.Station.SSID != "" || c.Station.Password != "" {
		errs = append(errs, wifi.ValidateStation(c.StationCredentials())...)
	}

	if c.Reconnect.Backoff < 0 {
		errs = append(errs, &wifi.ValidationError{Field: "reconnect.backoff", Message: "backoff cannot be negative"})
	}
	for _, r := range c.Reconnect.Retryable {
		if !r.Known() {
			errs = append(errs, &wifi.ValidationError{
				Field:   "reconnect.retryable",
				Message: fmt.Sprintf("warning: reason code %d is not a known disconnect reason", uint16(r)),
			})
		}
	}

	durations := []struct {
		field string
		value int64
	}{
		{"cycle.ap_dwell", int64(c.Cycle.APDwell)},
		{"cycle.sta_dwell", int64(c.Cycle.STADwell)},
		{"cycle.connect_timeout", int64(c.Cycle.ConnectTimeout)},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, &wifi.ValidationError{Field: d.field, Message: "duration cannot be negative"})
		}
	}
	if c.Cycle.MaxCycles < 0 {
		errs = append(errs, &wifi.ValidationError{Field: "cycle.max_cycles", Message: "max_cycles cannot be negative"})
	}

	if c.Status.Enabled {
		if _, _, err := net.SplitHostPort(c.Status.Addr); err != nil {
			errs = append(errs, &wifi.ValidationError{Field: "status.addr", Message: fmt.Sprintf("invalid listen address: %v", err)})
		}
		if (c.Status.CertPath == "") != (c.Status.KeyPath == "") {
			errs = append(errs, &wifi.ValidationError{Field: "status.cert_path", Message: "cert_path and key_path must be set together"})
		}
	}

	if c.Discovery.Advertise && c.Discovery.Instance == "" {
		errs = append(errs, &wifi.ValidationError{Field: "discovery.instance", Message: "instance name cannot be empty when advertising"})
	}

	return errs
}
