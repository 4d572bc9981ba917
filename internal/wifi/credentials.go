package wifi

import (
	"unicode/utf8"

	"github.com/muurk/apsta/internal/radio"
)

// Field limits of the radio configuration buffers.
const (
	MaxSSIDLen     = 32
	MaxPasswordLen = 64
)

// Access point defaults applied when a credential field is zero.
const (
	DefaultChannel        uint8  = 1
	DefaultMaxClients     uint8  = 1
	DefaultBeaconInterval uint16 = 100
)

// StationCredentials identify the upstream network to join.
type StationCredentials struct {
	SSID     string
	Password string
}

// AccessPointCredentials describe the network hosted in access point role.
// Zero Channel, MaxClients and BeaconInterval select the defaults.
type AccessPointCredentials struct {
	SSID           string
	Password       string
	Channel        uint8
	MaxClients     uint8
	BeaconInterval uint16
}

// radioConfig copies the credentials into a stack configuration, truncating
// fields that exceed the radio buffers.
func (c StationCredentials) radioConfig() radio.Config {
	return radio.Config{Station: &radio.StationConfig{
		SSID:     truncate(c.SSID, MaxSSIDLen),
		Password: truncate(c.Password, MaxPasswordLen),
	}}
}

// radioConfig builds the access point configuration. Authentication is always
// WPA/WPA2-PSK mixed mode.
func (c AccessPointCredentials) radioConfig() radio.Config {
	ap := &radio.AccessPointConfig{
		SSID:           truncate(c.SSID, MaxSSIDLen),
		Password:       truncate(c.Password, MaxPasswordLen),
		Channel:        c.Channel,
		MaxClients:     c.MaxClients,
		BeaconInterval: c.BeaconInterval,
		AuthMode:       radio.AuthWPAWPA2PSK,
	}
	if ap.Channel == 0 {
		ap.Channel = DefaultChannel
	}
	if ap.MaxClients == 0 {
		ap.MaxClients = DefaultMaxClients
	}
	if ap.BeaconInterval == 0 {
		ap.BeaconInterval = DefaultBeaconInterval
	}
	return radio.Config{AccessPoint: ap}
}

// truncate shortens s to at most max bytes without splitting a UTF-8
// sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
