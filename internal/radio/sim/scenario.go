package sim

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/apsta/internal/radio"
)

// Scenario describes the radio environment the simulated stack pretends to
// live in.
type Scenario struct {
	Name string `yaml:"name"`

	// Networks the station role can associate with.
	Networks []Network `yaml:"networks"`

	// Failures are consumed one per association attempt, in order, before
	// any attempt is allowed to succeed.
	Failures []radio.Reason `yaml:"failures,omitempty"`

	// AssociateDelay is the time between an association request and its
	// outcome notification.
	AssociateDelay time.Duration `yaml:"associate_delay"`

	// AddressDelay is the time between association and address acquisition.
	AddressDelay time.Duration `yaml:"address_delay"`

	// Address handed to the station on success.
	Address string `yaml:"address"`

	// Peers join the access point after it starts.
	Peers []Peer `yaml:"peers,omitempty"`
}

// Network is a reachable upstream access point.
type Network struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// Peer is a client that joins the simulated access point.
type Peer struct {
	MAC   string        `yaml:"mac"`
	Join  time.Duration `yaml:"join"`
	Leave time.Duration `yaml:"leave,omitempty"` // zero stays associated
}

// DefaultScenario returns an environment with no reachable networks: every
// association attempt fails with NO_AP_FOUND.
func DefaultScenario() Scenario {
	return Scenario{
		Name:           "empty",
		AssociateDelay: 50 * time.Millisecond,
		AddressDelay:   20 * time.Millisecond,
		Address:        "192.168.1.50",
	}
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a YAML scenario and validates it. Unset delays and the
// address fall back to DefaultScenario values.
func ParseScenario(data []byte) (Scenario, error) {
	sc := DefaultScenario()
	sc.Name = ""
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Validate checks addresses and delays.
func (sc Scenario) Validate() error {
	if sc.AssociateDelay < 0 || sc.AddressDelay < 0 {
		return fmt.Errorf("scenario %q: delays must not be negative", sc.Name)
	}
	if sc.Address != "" && net.ParseIP(sc.Address) == nil {
		return fmt.Errorf("scenario %q: invalid address %q", sc.Name, sc.Address)
	}
	for i, n := range sc.Networks {
		if n.SSID == "" {
			return fmt.Errorf("scenario %q: network %d has no ssid", sc.Name, i)
		}
	}
	for i, p := range sc.Peers {
		if _, err := net.ParseMAC(p.MAC); err != nil {
			return fmt.Errorf("scenario %q: peer %d: %w", sc.Name, i, err)
		}
		if p.Leave != 0 && p.Leave <= p.Join {
			return fmt.Errorf("scenario %q: peer %s leaves before it joins", sc.Name, p.MAC)
		}
	}
	return nil
}

// lookup reports whether ssid is reachable and whether password matches.
func (sc Scenario) lookup(ssid, password string) (found, authOK bool) {
	for _, n := range sc.Networks {
		if n.SSID != ssid {
			continue
		}
		return true, n.Password == "" || n.Password == password
	}
	return false, false
}
