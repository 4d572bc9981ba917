package wifi

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/muurk/apsta/internal/radio"
)

// State is the station connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateConnecting, StateConnected, StateDisconnected} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Outcome is the terminal result of a station connect attempt. The zero
// value is Disconnected.
type Outcome int

const (
	Disconnected Outcome = iota
	Connected
)

func (o Outcome) String() string {
	if o == Connected {
		return "connected"
	}
	return "disconnected"
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*o = Connected
	case "disconnected":
		*o = Disconnected
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Action is the side effect a Decision asks the dispatcher to carry out.
type Action int

const (
	// ActionNone needs no follow-up.
	ActionNone Action = iota
	// ActionAssociate requests association immediately.
	ActionAssociate
	// ActionRetry requests association after Decision.Delay.
	ActionRetry
	// ActionSignal reports Decision.Outcome to the waiting caller.
	ActionSignal
	// ActionPeer reports an access point client event.
	ActionPeer
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAssociate:
		return "associate"
	case ActionRetry:
		return "retry"
	case ActionSignal:
		return "signal"
	case ActionPeer:
		return "peer"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Decision is the result of feeding one notification to the Machine.
type Decision struct {
	Action  Action
	Outcome Outcome       // ActionSignal
	Delay   time.Duration // ActionRetry
	Attempt uint32        // ActionRetry: the attempt about to be made

	Session   uint64
	SessionID string

	From State
	To   State

	Reason radio.Reason     // set for disassociations
	Peer   net.HardwareAddr // ActionPeer
	Joined bool             // ActionPeer: true on association
	Addr   net.IP           // address acquisition

	retry  uint64
	cancel <-chan struct{}
}

// Transitioned reports whether the decision changed the connection state.
func (d Decision) Transitioned() bool {
	return d.From != d.To
}

// Cancelled returns a channel closed when the reconnect policy is disabled
// after this decision was made. It is nil for decisions that need no wait.
func (d Decision) Cancelled() <-chan struct{} {
	return d.cancel
}

// Snapshot is a consistent copy of the machine state.
type Snapshot struct {
	Role             radio.Role   `json:"role"`
	State            State        `json:"state"`
	Attempts         uint32       `json:"attempts"`
	MaxAttempts      uint32       `json:"max_attempts"`
	ReconnectEnabled bool         `json:"reconnect_enabled"`
	LastReason       radio.Reason `json:"last_reason,omitempty"`
	Address          string       `json:"address,omitempty"`
	Peers            []string     `json:"peers"`
	Session          string       `json:"session,omitempty"`
}

// Machine owns the station connection state, the reconnect policy and the
// attempt counter. All methods are safe for concurrent use.
type Machine struct {
	mu sync.Mutex

	policy   Policy
	disabled chan struct{}

	role       radio.Role
	state      State
	attempts   uint32
	lastReason radio.Reason
	addr       net.IP
	peers      map[string]struct{}

	session   uint64
	sessionID string
	retry     uint64
}

// NewMachine creates a machine in the Idle state governed by p.
func NewMachine(p Policy) *Machine {
	m := &Machine{
		policy:   p.clone(),
		disabled: make(chan struct{}),
		peers:    make(map[string]struct{}),
	}
	if !p.Enabled {
		close(m.disabled)
	}
	return m
}

// Policy returns a copy of the reconnect policy.
func (m *Machine) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.clone()
}

// SetEnabled turns automatic reconnection on or off. Disabling wakes any
// pending backoff wait.
func (m *Machine) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEnabledLocked(enabled)
}

func (m *Machine) setEnabledLocked(enabled bool) {
	if m.policy.Enabled == enabled {
		return
	}
	m.policy.Enabled = enabled
	if enabled {
		m.disabled = make(chan struct{})
	} else {
		close(m.disabled)
	}
}

// Enabled reports whether automatic reconnection is on.
func (m *Machine) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.Enabled
}

// Reset returns the machine to Idle and clears the counter, the address and
// the client list. The policy is left alone.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Machine) resetLocked() {
	m.state = StateIdle
	m.attempts = 0
	m.lastReason = 0
	m.addr = nil
	m.peers = make(map[string]struct{})
	m.retry++
}

// Begin starts a new station session tagged with id and returns its
// sequence number. Outcomes and pending retries of earlier sessions become
// stale.
func (m *Machine) Begin(id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.session++
	m.sessionID = id
	return m.session
}

// Handle applies one notification and returns what must happen next.
func (m *Machine) Handle(n radio.Notification) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.decisionLocked()

	switch n.Kind {
	case radio.RoleStarted:
		m.role = n.Role
		// A station start seen while a teardown is in progress, or a second
		// start for a session already connecting, must not associate again.
		if n.Role == radio.RoleStation && m.policy.Enabled && m.state != StateConnecting && m.state != StateConnected {
			m.state = StateConnecting
			d.Action = ActionAssociate
		}

	case radio.Associated:
		m.attempts = 0

	case radio.AddressAcquired:
		if m.state != StateConnecting {
			break
		}
		m.state = StateConnected
		m.addr = append(net.IP(nil), n.Addr...)
		d.Addr = m.addr
		d.Action = ActionSignal
		d.Outcome = Connected

	case radio.Disassociated:
		m.lastReason = n.Reason
		m.addr = nil
		d.Reason = n.Reason
		if m.state != StateConnecting && m.state != StateConnected {
			break
		}
		if m.policy.Enabled && m.policy.Retryable(n.Reason) && m.attempts < m.policy.MaxAttempts {
			m.attempts++
			m.retry++
			m.state = StateConnecting
			d.Action = ActionRetry
			d.Attempt = m.attempts
			d.Delay = m.policy.BackoffDelay
			d.retry = m.retry
			d.cancel = m.disabled
			break
		}
		m.state = StateDisconnected
		d.Action = ActionSignal
		d.Outcome = Disconnected

	case radio.PeerAssociated, radio.PeerDisassociated:
		d.Action = ActionPeer
		d.Peer = append(net.HardwareAddr(nil), n.Peer...)
		d.Joined = n.Kind == radio.PeerAssociated
		if d.Joined {
			m.peers[n.Peer.String()] = struct{}{}
		} else {
			delete(m.peers, n.Peer.String())
		}
	}

	d.To = m.state
	return d
}

// Confirm reports whether an associate or retry decision is still current:
// same session, still connecting, and for retries the policy still enabled
// and no newer retry scheduled.
func (m *Machine) Confirm(d Decision) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Session != m.session || m.state != StateConnecting {
		return false
	}
	if d.Action == ActionRetry {
		return m.policy.Enabled && d.retry == m.retry
	}
	return true
}

// Abandon ends session after its association request failed. It returns a
// Disconnected signal when the session was still in flight.
func (m *Machine) Abandon(session uint64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.decisionLocked()
	if session != m.session {
		return d
	}
	return m.terminateLocked(d)
}

// Halt disables the reconnect policy and ends any in-flight session. It is
// called before a deliberate teardown so that no disassociation caused by the
// teardown can schedule a reconnect.
func (m *Machine) Halt() Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setEnabledLocked(false)
	m.retry++
	d := m.decisionLocked()
	d = m.terminateLocked(d)
	m.role = radio.RoleIdle
	m.addr = nil
	m.peers = make(map[string]struct{})
	return d
}

func (m *Machine) terminateLocked(d Decision) Decision {
	if m.state == StateConnecting || m.state == StateConnected {
		m.state = StateDisconnected
		d.Action = ActionSignal
		d.Outcome = Disconnected
	}
	d.To = m.state
	return d
}

func (m *Machine) decisionLocked() Decision {
	return Decision{
		Session:   m.session,
		SessionID: m.sessionID,
		From:      m.state,
		To:        m.state,
	}
}

// State returns the connection state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the reconnect attempts made in the current session.
func (m *Machine) Attempts() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Snapshot returns a copy of the machine state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Role:             m.role,
		State:            m.state,
		Attempts:         m.attempts,
		MaxAttempts:      m.policy.MaxAttempts,
		ReconnectEnabled: m.policy.Enabled,
		LastReason:       m.lastReason,
		Peers:            make([]string, 0, len(m.peers)),
		Session:          m.sessionID,
	}
	if m.addr != nil {
		s.Address = m.addr.String()
	}
	for p := range m.peers {
		s.Peers = append(s.Peers, p)
	}
	sort.Strings(s.Peers)
	return s
}
