package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "IPv4 node",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "apsta-kitchen"},
				HostName:      "kitchen.local.",
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.1")},
			},
			wantIP:   "192.168.4.1",
			wantPort: 8080,
		},
		{
			name: "missing port uses default",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "apsta-hall"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.7")},
			},
			wantIP:   "10.0.0.7",
			wantPort: DefaultPort,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "apsta-v6"},
				Port:          9000,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 9000,
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "apsta-dual"},
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 8080,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "apsta-ghost"},
				Port:          8080,
			},
			wantNil: true,
		},
		{
			name: "no instance",
			entry: &zeroconf.ServiceEntry{
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want device")
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if device.Instance != tt.entry.Instance {
				t.Errorf("device.Instance = %v, want %v", device.Instance, tt.entry.Instance)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Errorf("device.DiscoveredAt is not recent: %v", device.DiscoveredAt)
			}
		})
	}
}

func TestParseText(t *testing.T) {
	got := parseText([]string{"version=v0.3.0", "ssid=setup=net", "flag", "=orphan"})

	want := map[string]string{
		"version": "v0.3.0",
		"ssid":    "setup=net",
		"flag":    "",
	}
	if len(got) != len(want) {
		t.Errorf("parseText() has %d entries, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseText()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

// scriptedBrowse replays entries then waits for cancellation, the way a
// resolver keeps listening until its context ends.
func scriptedBrowse(list ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
		go func() {
			for _, e := range list {
				select {
				case entries <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func entry(instance, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance},
		Port:          8080,
		AddrIPv4:      []net.IP{net.ParseIP(ip)},
	}
}

func TestScanner_Scan(t *testing.T) {
	s := &Scanner{
		Timeout: 100 * time.Millisecond,
		browse: scriptedBrowse(
			entry("apsta-a", "192.168.4.1"),
			entry("apsta-b", "192.168.4.2"),
			entry("apsta-a", "192.168.4.1"),
			&zeroconf.ServiceEntry{},
		),
	}

	devices, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Scan() found %d devices, want 2: %v", len(devices), devices)
	}
	if devices[0].Instance != "apsta-a" || devices[1].Instance != "apsta-b" {
		t.Errorf("instances = %s, %s", devices[0].Instance, devices[1].Instance)
	}
}

func TestScanner_ScanBrowseError(t *testing.T) {
	s := &Scanner{
		Timeout: time.Second,
		browse: func(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
			return errors.New("no multicast interface")
		},
	}
	if _, err := s.Scan(context.Background()); err == nil {
		t.Error("Scan() error = nil, want browse failure")
	}
}

func TestScanner_Find(t *testing.T) {
	s := &Scanner{
		Timeout: time.Second,
		browse:  scriptedBrowse(entry("apsta-a", "192.168.4.1"), entry("apsta-b", "192.168.4.2")),
	}

	start := time.Now()
	device, err := s.Find(context.Background(), "apsta-b")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if device.IP != "192.168.4.2" {
		t.Errorf("device.IP = %s, want 192.168.4.2", device.IP)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Find() waited for the full timeout after a match")
	}
}

func TestScanner_FindNotFound(t *testing.T) {
	s := &Scanner{
		Timeout: 50 * time.Millisecond,
		browse:  scriptedBrowse(entry("apsta-a", "192.168.4.1")),
	}
	if _, err := s.Find(context.Background(), "apsta-z"); err == nil {
		t.Error("Find() error = nil, want not found")
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
	if scanner.browse == nil {
		t.Error("scanner.browse is nil")
	}
}
