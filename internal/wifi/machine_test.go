package wifi

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/muurk/apsta/internal/radio"
)

func enabledPolicy(max uint32, reasons ...radio.Reason) Policy {
	return Policy{
		Enabled:          true,
		MaxAttempts:      max,
		BackoffDelay:     time.Second,
		RetryableReasons: NewReasonSet(reasons...),
	}
}

func startedMachine(t *testing.T, p Policy) *Machine {
	t.Helper()
	m := NewMachine(p)
	m.Begin("test")
	d := m.Handle(radio.Notification{Kind: radio.RoleStarted, Role: radio.RoleStation})
	if d.Action != ActionAssociate {
		t.Fatalf("RoleStarted action = %v, want associate", d.Action)
	}
	if m.State() != StateConnecting {
		t.Fatalf("state after RoleStarted = %v, want connecting", m.State())
	}
	return m
}

func disassociate(r radio.Reason) radio.Notification {
	return radio.Notification{Kind: radio.Disassociated, Reason: r}
}

func TestMachine_RetryBudget(t *testing.T) {
	reasons := DefaultRetryableReasons().Reasons()

	for _, reason := range reasons {
		for _, max := range []uint32{0, 1, 3, 5} {
			t.Run(fmt.Sprintf("%s/max=%d", reason, max), func(t *testing.T) {
				m := startedMachine(t, enabledPolicy(max, reasons...))

				for i := uint32(1); i <= max; i++ {
					d := m.Handle(disassociate(reason))
					if d.Action != ActionRetry {
						t.Fatalf("disassociation %d action = %v, want retry", i, d.Action)
					}
					if d.Attempt != i {
						t.Errorf("disassociation %d attempt = %d", i, d.Attempt)
					}
					if d.Delay != time.Second {
						t.Errorf("delay = %v, want 1s", d.Delay)
					}
				}

				d := m.Handle(disassociate(reason))
				if d.Action != ActionSignal || d.Outcome != Disconnected {
					t.Fatalf("final decision = %v/%v, want signal disconnected", d.Action, d.Outcome)
				}
				if m.Attempts() != max {
					t.Errorf("Attempts() = %d, want %d", m.Attempts(), max)
				}
				if m.State() != StateDisconnected {
					t.Errorf("State() = %v, want disconnected", m.State())
				}
			})
		}
	}
}

func TestMachine_AssociatedResetsCounter(t *testing.T) {
	m := startedMachine(t, enabledPolicy(3, radio.ReasonNoAPFound))

	m.Handle(disassociate(radio.ReasonNoAPFound))
	m.Handle(disassociate(radio.ReasonNoAPFound))
	if m.Attempts() != 2 {
		t.Fatalf("Attempts() = %d, want 2", m.Attempts())
	}

	m.Handle(radio.Notification{Kind: radio.Associated})
	if m.Attempts() != 0 {
		t.Errorf("Attempts() after Associated = %d, want 0", m.Attempts())
	}
	if m.State() != StateConnecting {
		t.Errorf("State() after Associated = %v, want connecting", m.State())
	}

	// Full budget is available again.
	for i := 1; i <= 3; i++ {
		if d := m.Handle(disassociate(radio.ReasonNoAPFound)); d.Action != ActionRetry {
			t.Fatalf("retry %d after reset action = %v", i, d.Action)
		}
	}
}

func TestMachine_NonRetryable(t *testing.T) {
	retryable := DefaultRetryableReasons()

	for _, reason := range radio.Reasons() {
		if retryable.Contains(reason) {
			continue
		}
		t.Run(reason.String(), func(t *testing.T) {
			m := startedMachine(t, enabledPolicy(100, retryable.Reasons()...))

			d := m.Handle(disassociate(reason))
			if d.Action != ActionSignal || d.Outcome != Disconnected {
				t.Errorf("decision = %v/%v, want signal disconnected", d.Action, d.Outcome)
			}
			if m.Attempts() != 0 {
				t.Errorf("Attempts() = %d, want 0", m.Attempts())
			}
		})
	}
}

func TestMachine_BudgetScenario(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5, radio.ReasonNoAPFound, radio.ReasonAuthExpire))

	for i := 1; i <= 5; i++ {
		d := m.Handle(disassociate(radio.ReasonNoAPFound))
		if d.Action != ActionRetry {
			t.Fatalf("NO_AP_FOUND %d action = %v, want retry", i, d.Action)
		}
	}
	if m.Attempts() != 5 {
		t.Fatalf("Attempts() = %d, want 5", m.Attempts())
	}

	d := m.Handle(disassociate(radio.ReasonAuthExpire))
	if d.Action != ActionSignal || d.Outcome != Disconnected {
		t.Fatalf("AUTH_EXPIRE decision = %v/%v, want signal disconnected", d.Action, d.Outcome)
	}

	d = m.Handle(disassociate(radio.ReasonAuthExpire))
	if d.Action != ActionNone {
		t.Errorf("disassociation after terminal state action = %v, want none", d.Action)
	}
	if m.State() != StateDisconnected || m.Attempts() != 5 {
		t.Errorf("state = %v attempts = %d, want disconnected/5", m.State(), m.Attempts())
	}
}

func TestMachine_DisabledNeverRetries(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5, radio.ReasonAssocLeave))
	m.SetEnabled(false)

	d := m.Handle(disassociate(radio.ReasonAssocLeave))
	if d.Action != ActionSignal || d.Outcome != Disconnected {
		t.Errorf("decision = %v/%v, want signal disconnected", d.Action, d.Outcome)
	}
	if m.Attempts() != 0 {
		t.Errorf("Attempts() = %d, want 0", m.Attempts())
	}
}

func TestMachine_AddressAcquired(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5))
	m.Handle(radio.Notification{Kind: radio.Associated})

	d := m.Handle(radio.Notification{Kind: radio.AddressAcquired, Addr: net.ParseIP("10.0.0.23")})
	if d.Action != ActionSignal || d.Outcome != Connected {
		t.Fatalf("decision = %v/%v, want signal connected", d.Action, d.Outcome)
	}
	if !d.Transitioned() || d.From != StateConnecting || d.To != StateConnected {
		t.Errorf("transition %v -> %v", d.From, d.To)
	}
	if got := m.Snapshot().Address; got != "10.0.0.23" {
		t.Errorf("Snapshot().Address = %q", got)
	}

	d = m.Handle(radio.Notification{Kind: radio.AddressAcquired, Addr: net.ParseIP("10.0.0.24")})
	if d.Action != ActionNone {
		t.Errorf("duplicate address action = %v, want none", d.Action)
	}
}

func TestMachine_ConnectedToConnecting(t *testing.T) {
	m := startedMachine(t, enabledPolicy(2, radio.ReasonBeaconTimeout))
	m.Handle(radio.Notification{Kind: radio.Associated})
	m.Handle(radio.Notification{Kind: radio.AddressAcquired, Addr: net.ParseIP("10.0.0.23")})

	d := m.Handle(disassociate(radio.ReasonBeaconTimeout))
	if d.Action != ActionRetry {
		t.Fatalf("action = %v, want retry", d.Action)
	}
	if d.From != StateConnected || d.To != StateConnecting {
		t.Errorf("transition %v -> %v, want connected -> connecting", d.From, d.To)
	}
	if m.Snapshot().Address != "" {
		t.Error("address kept after disassociation")
	}
}

func TestMachine_HaltCancelsPendingRetry(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5, radio.ReasonNoAPFound))

	d := m.Handle(disassociate(radio.ReasonNoAPFound))
	if d.Action != ActionRetry {
		t.Fatalf("action = %v, want retry", d.Action)
	}
	select {
	case <-d.Cancelled():
		t.Fatal("retry cancelled before Halt")
	default:
	}

	halt := m.Halt()
	if halt.Action != ActionSignal || halt.Outcome != Disconnected {
		t.Errorf("Halt() = %v/%v, want signal disconnected", halt.Action, halt.Outcome)
	}
	select {
	case <-d.Cancelled():
	default:
		t.Error("retry not cancelled by Halt")
	}
	if m.Confirm(d) {
		t.Error("Confirm() true after Halt")
	}
	if m.Enabled() {
		t.Error("Enabled() true after Halt")
	}

	// Disassociation caused by the teardown.
	if d := m.Handle(disassociate(radio.ReasonNoAPFound)); d.Action != ActionNone {
		t.Errorf("post-halt disassociation action = %v, want none", d.Action)
	}
}

func TestMachine_ConfirmStaleDecisions(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5, radio.ReasonNoAPFound))

	first := m.Handle(disassociate(radio.ReasonNoAPFound))
	second := m.Handle(disassociate(radio.ReasonNoAPFound))
	if m.Confirm(first) {
		t.Error("older retry confirmed")
	}
	if !m.Confirm(second) {
		t.Error("latest retry not confirmed")
	}

	m.Begin("next")
	if m.Confirm(second) {
		t.Error("retry from previous session confirmed")
	}
}

func TestMachine_RoleStartedGuards(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5))

	if d := m.Handle(radio.Notification{Kind: radio.RoleStarted, Role: radio.RoleStation}); d.Action != ActionNone {
		t.Errorf("second RoleStarted action = %v, want none", d.Action)
	}

	m.Halt()
	if d := m.Handle(radio.Notification{Kind: radio.RoleStarted, Role: radio.RoleStation}); d.Action != ActionNone {
		t.Errorf("RoleStarted while disabled action = %v, want none", d.Action)
	}

	ap := NewMachine(enabledPolicy(5))
	if d := ap.Handle(radio.Notification{Kind: radio.RoleStarted, Role: radio.RoleAccessPoint}); d.Action != ActionNone {
		t.Errorf("AP RoleStarted action = %v, want none", d.Action)
	}
	if ap.State() != StateIdle {
		t.Errorf("AP state = %v, want idle", ap.State())
	}
}

func TestMachine_Abandon(t *testing.T) {
	m := startedMachine(t, enabledPolicy(5))

	if d := m.Abandon(99); d.Action != ActionNone {
		t.Errorf("Abandon(other session) action = %v", d.Action)
	}

	d := m.Abandon(1)
	if d.Action != ActionSignal || d.Outcome != Disconnected {
		t.Errorf("Abandon() = %v/%v, want signal disconnected", d.Action, d.Outcome)
	}
}

func TestMachine_Peers(t *testing.T) {
	m := NewMachine(DefaultPolicy())
	m.Handle(radio.Notification{Kind: radio.RoleStarted, Role: radio.RoleAccessPoint})

	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	d := m.Handle(radio.Notification{Kind: radio.PeerAssociated, Peer: mac})
	if d.Action != ActionPeer || !d.Joined {
		t.Fatalf("decision = %v joined=%v, want peer joined", d.Action, d.Joined)
	}
	if d.Peer.String() != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Peer = %q, want aa:bb:cc:dd:ee:ff", d.Peer.String())
	}
	if d.Transitioned() {
		t.Error("peer event changed state")
	}

	peers := m.Snapshot().Peers
	if len(peers) != 1 || peers[0] != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Snapshot().Peers = %v", peers)
	}

	d = m.Handle(radio.Notification{Kind: radio.PeerDisassociated, Peer: mac})
	if d.Action != ActionPeer || d.Joined {
		t.Errorf("decision = %v joined=%v, want peer left", d.Action, d.Joined)
	}
	if len(m.Snapshot().Peers) != 0 {
		t.Error("peer still listed after leaving")
	}
}

func TestMachine_PolicyIsCopied(t *testing.T) {
	p := enabledPolicy(5, radio.ReasonNoAPFound)
	m := NewMachine(p)

	p.RetryableReasons[radio.ReasonAuthFail] = struct{}{}
	if m.Policy().Retryable(radio.ReasonAuthFail) {
		t.Error("machine policy shares the caller's reason set")
	}
}
