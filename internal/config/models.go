package config

import (
	"time"

	"github.com/muurk/apsta/internal/cycle"
	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/server"
	"github.com/muurk/apsta/internal/wifi"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Config is the whole configuration file.
type Config struct {
	Version     int         `yaml:"version"`
	AccessPoint AccessPoint `yaml:"access_point"`
	Station     Station     `yaml:"station"`
	Reconnect   Reconnect   `yaml:"reconnect"`
	Cycle       Cycle       `yaml:"cycle"`
	Status      Status      `yaml:"status"`
	Discovery   Discovery   `yaml:"discovery"`

	// Scenario is the simulated radio scenario file. Empty uses the
	// built-in scenario.
	Scenario string `yaml:"scenario,omitempty"`
}

// AccessPoint holds the soft-AP settings. Zero numeric fields take the
// radio defaults.
type AccessPoint struct {
	SSID           string `yaml:"ssid"`
	Password       string `yaml:"password"`
	Channel        uint8  `yaml:"channel,omitempty"`
	MaxClients     uint8  `yaml:"max_clients,omitempty"`
	BeaconInterval uint16 `yaml:"beacon_interval,omitempty"`
}

// Station holds the upstream network credentials.
type Station struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Reconnect is the automatic reconnect policy.
type Reconnect struct {
	MaxAttempts uint32         `yaml:"max_attempts"`
	Backoff     time.Duration  `yaml:"backoff"`
	Retryable   []radio.Reason `yaml:"retryable"`
}

// Cycle holds the AP/STA cycling timing.
type Cycle struct {
	APDwell        time.Duration `yaml:"ap_dwell"`
	STADwell       time.Duration `yaml:"sta_dwell"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxCycles      int           `yaml:"max_cycles,omitempty"`
}

// Status configures the status server.
type Status struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	CertPath string `yaml:"cert_path,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// Discovery configures the mDNS advertisement.
type Discovery struct {
	Advertise bool   `yaml:"advertise"`
	Instance  string `yaml:"instance"`
}

// Default returns a configuration with every field set to its default.
// The station section is left empty.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		AccessPoint: AccessPoint{
			SSID:           "apsta-setup",
			Password:       "apsta-setup",
			Channel:        wifi.DefaultChannel,
			MaxClients:     wifi.DefaultMaxClients,
			BeaconInterval: wifi.DefaultBeaconInterval,
		},
		Reconnect: Reconnect{
			MaxAttempts: wifi.DefaultMaxAttempts,
			Backoff:     wifi.DefaultBackoffDelay,
			Retryable:   wifi.DefaultRetryableReasons().Reasons(),
		},
		Cycle: Cycle{
			APDwell:        cycle.DefaultAPDwell,
			STADwell:       cycle.DefaultSTADwell,
			ConnectTimeout: cycle.DefaultConnectTimeout,
		},
		Status: Status{
			Enabled: true,
			Addr:    server.DefaultAddr,
		},
		Discovery: Discovery{
			Advertise: true,
			Instance:  "apsta",
		},
	}
}

// AccessPointCredentials converts the access point section.
func (c *Config) AccessPointCredentials() wifi.AccessPointCredentials {
	return wifi.AccessPointCredentials{
		SSID:           c.AccessPoint.SSID,
		Password:       c.AccessPoint.Password,
		Channel:        c.AccessPoint.Channel,
		MaxClients:     c.AccessPoint.MaxClients,
		BeaconInterval: c.AccessPoint.BeaconInterval,
	}
}

// StationCredentials converts the station section.
func (c *Config) StationCredentials() wifi.StationCredentials {
	return wifi.StationCredentials{SSID: c.Station.SSID, Password: c.Station.Password}
}

// Policy converts the reconnect section. An empty retryable list selects
// the default reasons.
func (c *Config) Policy() wifi.Policy {
	p := wifi.DefaultPolicy()
	p.MaxAttempts = c.Reconnect.MaxAttempts
	p.BackoffDelay = c.Reconnect.Backoff
	if len(c.Reconnect.Retryable) > 0 {
		p.RetryableReasons = wifi.NewReasonSet(c.Reconnect.Retryable...)
	}
	return p
}

// CycleConfig converts the cycle section together with both credential sets.
func (c *Config) CycleConfig() cycle.Config {
	return cycle.Config{
		AccessPoint:    c.AccessPointCredentials(),
		Station:        c.StationCredentials(),
		APDwell:        c.Cycle.APDwell,
		STADwell:       c.Cycle.STADwell,
		ConnectTimeout: c.Cycle.ConnectTimeout,
		MaxCycles:      c.Cycle.MaxCycles,
	}
}

// ServerConfig converts the status section.
func (c *Config) ServerConfig() server.Config {
	return server.Config{Addr: c.Status.Addr, CertPath: c.Status.CertPath, KeyPath: c.Status.KeyPath}
}
