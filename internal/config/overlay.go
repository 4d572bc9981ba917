package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/muurk/apsta/internal/radio"
)

// EnvPrefix prefixes every environment override, e.g. APSTA_STATION_SSID.
const EnvPrefix = "APSTA"

// Keys that may be overridden from the environment or flags.
const (
	KeyAPSSID         = "access_point.ssid"
	KeyAPPassword     = "access_point.password"
	KeyAPChannel      = "access_point.channel"
	KeyAPMaxClients   = "access_point.max_clients"
	KeySTASSID        = "station.ssid"
	KeySTAPassword    = "station.password"
	KeyMaxAttempts    = "reconnect.max_attempts"
	KeyBackoff        = "reconnect.backoff"
	KeyRetryable      = "reconnect.retryable"
	KeyAPDwell        = "cycle.ap_dwell"
	KeySTADwell       = "cycle.sta_dwell"
	KeyConnectTimeout = "cycle.connect_timeout"
	KeyMaxCycles      = "cycle.max_cycles"
	KeyStatusEnabled  = "status.enabled"
	KeyStatusAddr     = "status.addr"
	KeyAdvertise      = "discovery.advertise"
	KeyInstance       = "discovery.instance"
	KeyScenario       = "scenario"
)

// NewViper returns a viper instance reading APSTA_* variables, with the
// given flags bound to configuration keys (key -> flag name). Unchanged
// flags do not override the file.
func NewViper(flags *pflag.FlagSet, bindings map[string]string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range bindings {
		if flags == nil {
			break
		}
		flag := flags.Lookup(name)
		if flag == nil {
			return nil, fmt.Errorf("no flag %q to bind to %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return v, nil
}

// Overlay copies every key set in v onto c.
func (c *Config) Overlay(v *viper.Viper) error {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setString(KeyAPSSID, &c.AccessPoint.SSID)
	setString(KeyAPPassword, &c.AccessPoint.Password)
	setString(KeySTASSID, &c.Station.SSID)
	setString(KeySTAPassword, &c.Station.Password)
	setString(KeyStatusAddr, &c.Status.Addr)
	setString(KeyInstance, &c.Discovery.Instance)
	setString(KeyScenario, &c.Scenario)

	if v.IsSet(KeyAPChannel) {
		c.AccessPoint.Channel = uint8(v.GetUint(KeyAPChannel))
	}
	if v.IsSet(KeyAPMaxClients) {
		c.AccessPoint.MaxClients = uint8(v.GetUint(KeyAPMaxClients))
	}
	if v.IsSet(KeyMaxAttempts) {
		c.Reconnect.MaxAttempts = v.GetUint32(KeyMaxAttempts)
	}
	if v.IsSet(KeyBackoff) {
		c.Reconnect.Backoff = v.GetDuration(KeyBackoff)
	}
	if v.IsSet(KeyAPDwell) {
		c.Cycle.APDwell = v.GetDuration(KeyAPDwell)
	}
	if v.IsSet(KeySTADwell) {
		c.Cycle.STADwell = v.GetDuration(KeySTADwell)
	}
	if v.IsSet(KeyConnectTimeout) {
		c.Cycle.ConnectTimeout = v.GetDuration(KeyConnectTimeout)
	}
	if v.IsSet(KeyMaxCycles) {
		c.Cycle.MaxCycles = v.GetInt(KeyMaxCycles)
	}
	if v.IsSet(KeyStatusEnabled) {
		c.Status.Enabled = v.GetBool(KeyStatusEnabled)
	}
	if v.IsSet(KeyAdvertise) {
		c.Discovery.Advertise = v.GetBool(KeyAdvertise)
	}

	if v.IsSet(KeyRetryable) {
		reasons, err := parseReasonList(v.Get(KeyRetryable))
		if err != nil {
			return fmt.Errorf("%s: %w", KeyRetryable, err)
		}
		c.Reconnect.Retryable = reasons
	}
	return nil
}

// parseReasonList accepts a comma or space separated string, or a list of
// strings, of reason labels or codes.
func parseReasonList(raw any) ([]radio.Reason, error) {
	var items []string
	switch val := raw.(type) {
	case string:
		items = strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ' ' })
	case []string:
		items = val
	case []any:
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
	default:
		return nil, fmt.Errorf("unsupported value %v", raw)
	}

	reasons := make([]radio.Reason, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		r, err := radio.ParseReason(item)
		if err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	return reasons, nil
}
