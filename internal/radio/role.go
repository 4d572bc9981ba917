package radio

import (
	"fmt"
	"strings"
)

// Role is the operating mode of the radio. Exactly one role is active at a
// time; switching roles requires stopping the previous one first.
type Role int

const (
	// RoleIdle means no role is running.
	RoleIdle Role = iota
	// RoleAccessPoint hosts a network other clients can join.
	RoleAccessPoint
	// RoleStation joins an existing network as a client.
	RoleStation
)

// String returns the short name used in logs and the status feed.
func (r Role) String() string {
	switch r {
	case RoleIdle:
		return "idle"
	case RoleAccessPoint:
		return "ap"
	case RoleStation:
		return "sta"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "idle", "":
		*r = RoleIdle
	case "ap", "access_point":
		*r = RoleAccessPoint
	case "sta", "station":
		*r = RoleStation
	default:
		return fmt.Errorf("unknown radio role %q", string(text))
	}
	return nil
}

// AuthMode is the authentication scheme of an access point.
type AuthMode int

const (
	AuthOpen AuthMode = iota
	AuthWEP
	AuthWPAPSK
	AuthWPA2PSK
	AuthWPAWPA2PSK
	AuthWPA2Enterprise
	AuthWPA3PSK
	AuthWPA2WPA3PSK
	AuthWAPIPSK
	AuthOWE
)

var authModeNames = map[AuthMode]string{
	AuthOpen:           "OPEN",
	AuthWEP:            "WEP",
	AuthWPAPSK:         "WPA_PSK",
	AuthWPA2PSK:        "WPA2_PSK",
	AuthWPAWPA2PSK:     "WPA_WPA2_PSK",
	AuthWPA2Enterprise: "WPA2_ENTERPRISE",
	AuthWPA3PSK:        "WPA3_PSK",
	AuthWPA2WPA3PSK:    "WPA2_WPA3_PSK",
	AuthWAPIPSK:        "WAPI_PSK",
	AuthOWE:            "OWE",
}

// AuthModes lists every known auth mode in code order.
func AuthModes() []AuthMode {
	modes := make([]AuthMode, 0, len(authModeNames))
	for m := AuthOpen; m <= AuthOWE; m++ {
		modes = append(modes, m)
	}
	return modes
}

// String returns the auth mode name, or UNKNOWN_AUTH_MODE.
func (a AuthMode) String() string {
	if name, ok := authModeNames[a]; ok {
		return name
	}
	return "UNKNOWN_AUTH_MODE"
}

// ParseAuthMode parses an auth mode name, case-insensitively.
func ParseAuthMode(s string) (AuthMode, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for mode, name := range authModeNames {
		if name == want {
			return mode, nil
		}
	}
	return AuthOpen, fmt.Errorf("unknown auth mode %q", s)
}

// StationConfig is the configuration handed to the stack for the station role.
type StationConfig struct {
	SSID     string
	Password string
}

// AccessPointConfig is the configuration handed to the stack for the access
// point role.
type AccessPointConfig struct {
	SSID           string
	Password       string
	Channel        uint8
	MaxClients     uint8
	BeaconInterval uint16 // time units (1.024 ms)
	AuthMode       AuthMode
}

// Config carries the configuration for exactly one role. The field matching
// the role being started must be non-nil.
type Config struct {
	Station     *StationConfig
	AccessPoint *AccessPointConfig
}

// StorageMode selects where the stack keeps its last-used configuration.
type StorageMode int

const (
	// StorageRAM keeps configuration in volatile memory only.
	StorageRAM StorageMode = iota
	// StorageFlash persists configuration across reboots.
	StorageFlash
)

func (s StorageMode) String() string {
	if s == StorageFlash {
		return "flash"
	}
	return "ram"
}
