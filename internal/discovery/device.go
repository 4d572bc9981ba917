package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys published by the Announcer.
const (
	TextVersion = "version"
	TextSSID    = "ssid"
	TextRole    = "role"
)

// Device is an apsta node found on the network.
type Device struct {
	Instance     string
	Hostname     string
	IP           string
	Port         int
	Metadata     map[string]string
	DiscoveredAt time.Time
}

func (d *Device) String() string {
	s := fmt.Sprintf("%s at %s", d.Instance, d.Address())
	if ssid := d.GetMetadata(TextSSID); ssid != "" {
		s += fmt.Sprintf(" (ssid %q)", ssid)
	}
	if v := d.GetMetadata(TextVersion); v != "" {
		s += " " + v
	}
	return s
}

// Address returns host:port, bracketing IPv6 hosts.
func (d *Device) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// BaseURL returns the status server URL of the node
func (d *Device) BaseURL() string {
	return "http://" + d.Address()
}

// GetMetadata returns a TXT value, or "" when the key is absent
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
