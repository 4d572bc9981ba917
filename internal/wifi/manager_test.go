package wifi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/radio/sim"
)

// recorder collects published events for assertions.
type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 512)}
}

func (r *recorder) Observe(e Event) {
	select {
	case r.events <- e:
	default:
	}
}

// waitFor returns the first event of kind matching pred, failing after two
// seconds.
func (r *recorder) waitFor(t *testing.T, kind EventKind, pred func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-r.events:
			if e.Kind == kind && (pred == nil || pred(e)) {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

type harness struct {
	mgr   *Manager
	stack *sim.Stack
	rec   *recorder
	logs  *observer.ObservedLogs
}

func testScenario() sim.Scenario {
	return sim.Scenario{
		Name:     "test",
		Networks: []sim.Network{{SSID: "uplink", Password: "hunter22"}},
		Address:  "10.0.0.23",
	}
}

func testPolicy(max uint32, backoff time.Duration) Policy {
	p := DefaultPolicy()
	p.MaxAttempts = max
	p.BackoffDelay = backoff
	return p
}

func newHarness(t *testing.T, sc sim.Scenario, p Policy) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	stack := sim.New(sc)
	rec := newRecorder()
	mgr := NewManager(stack, Options{Policy: p, Logger: logger, Observers: []Observer{rec}})
	if err := mgr.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })

	return &harness{mgr: mgr, stack: stack, rec: rec, logs: logs}
}

var uplink = StationCredentials{SSID: "uplink", Password: "hunter22"}

func TestManager_InitSetsVolatileStorage(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())

	if got := h.stack.Storage(); got != radio.StorageRAM {
		t.Errorf("Storage() = %v, want ram", got)
	}
	if err := h.mgr.Init(context.Background()); err != nil {
		t.Errorf("second Init() error = %v", err)
	}
	if got := h.stack.Stats().Inits; got != 1 {
		t.Errorf("Inits = %d, want 1", got)
	}
}

func TestManager_InitFailureIsFatal(t *testing.T) {
	stack := sim.New(testScenario())
	_ = stack.Close()

	mgr := NewManager(stack, Options{Logger: zap.NewNop()})
	err := mgr.Init(context.Background())
	if err == nil {
		t.Fatal("Init() on closed stack succeeded")
	}
	if !radio.IsFatal(err) {
		t.Errorf("Init() error %v is not fatal", err)
	}
}

func TestManager_RoleBeforeInit(t *testing.T) {
	mgr := NewManager(sim.New(testScenario()), Options{Logger: zap.NewNop()})
	err := mgr.StartAccessPoint(context.Background(), AccessPointCredentials{SSID: "setup", Password: "password1"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("StartAccessPoint() before Init error = %v", err)
	}
}

func TestManager_ConnectStation(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(5, 10*time.Millisecond))

	outcome, err := h.mgr.ConnectStation(context.Background(), uplink, 2*time.Second)
	if err != nil {
		t.Fatalf("ConnectStation() error = %v", err)
	}
	if outcome != Connected {
		t.Fatalf("ConnectStation() = %v, want connected", outcome)
	}

	st := h.mgr.Status()
	if st.Role != radio.RoleStation || st.State != StateConnected {
		t.Errorf("Status() role=%v state=%v", st.Role, st.State)
	}
	if st.Address != "10.0.0.23" || st.SSID != "uplink" {
		t.Errorf("Status() address=%q ssid=%q", st.Address, st.SSID)
	}
	if !st.ReconnectEnabled {
		t.Error("reconnect not enabled while connected")
	}

	res := h.rec.waitFor(t, EventConnectResult, nil)
	if res.Outcome != "connected" || res.TimedOut || res.Session == "" {
		t.Errorf("connect_result event = %+v", res)
	}
}

func TestManager_RetriesThenConnects(t *testing.T) {
	sc := testScenario()
	sc.Failures = []radio.Reason{radio.ReasonNoAPFound, radio.ReasonAuthExpire}
	h := newHarness(t, sc, testPolicy(5, 10*time.Millisecond))

	outcome, err := h.mgr.ConnectStation(context.Background(), uplink, 2*time.Second)
	if err != nil || outcome != Connected {
		t.Fatalf("ConnectStation() = %v, %v, want connected", outcome, err)
	}
	if got := h.stack.Stats().Associations; got != 3 {
		t.Errorf("Associations = %d, want 3", got)
	}
	if got := h.mgr.Machine().Attempts(); got != 0 {
		t.Errorf("Attempts() after association = %d, want 0", got)
	}
}

func TestManager_BudgetExhausted(t *testing.T) {
	for _, max := range []uint32{0, 1, 3} {
		h := newHarness(t, testScenario(), testPolicy(max, 5*time.Millisecond))

		unknown := StationCredentials{SSID: "elsewhere", Password: "whatever1"}
		outcome, err := h.mgr.ConnectStation(context.Background(), unknown, 2*time.Second)
		if err != nil {
			t.Fatalf("max=%d: ConnectStation() error = %v", max, err)
		}
		if outcome != Disconnected {
			t.Errorf("max=%d: ConnectStation() = %v, want disconnected", max, outcome)
		}
		// One initial association plus exactly max reconnects.
		if got := h.stack.Stats().Associations; got != int(max)+1 {
			t.Errorf("max=%d: Associations = %d, want %d", max, got, max+1)
		}
		if got := h.mgr.Machine().Attempts(); got != max {
			t.Errorf("max=%d: Attempts() = %d", max, got)
		}
	}
}

func TestManager_NonRetryableReason(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(5, 5*time.Millisecond))

	wrong := StationCredentials{SSID: "uplink", Password: "not-the-password"}
	outcome, err := h.mgr.ConnectStation(context.Background(), wrong, 2*time.Second)
	if err != nil || outcome != Disconnected {
		t.Fatalf("ConnectStation() = %v, %v, want disconnected", outcome, err)
	}
	if got := h.stack.Stats().Associations; got != 1 {
		t.Errorf("Associations = %d, want 1", got)
	}

	e := h.rec.waitFor(t, EventDisassociated, nil)
	if e.Reason != radio.Reason4WayHandshakeTimeout || e.Retrying {
		t.Errorf("disassociated event = %+v", e)
	}
}

func TestManager_ZeroTimeout(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(5, 10*time.Millisecond))

	outcome, err := h.mgr.ConnectStation(context.Background(), uplink, 0)
	if err != nil {
		t.Fatalf("ConnectStation() error = %v", err)
	}
	if outcome != Disconnected {
		t.Errorf("ConnectStation(timeout=0) = %v, want disconnected", outcome)
	}
	if got := h.stack.Stats().Starts; got != 1 {
		t.Errorf("Starts = %d, want 1", got)
	}

	res := h.rec.waitFor(t, EventConnectResult, nil)
	if !res.TimedOut {
		t.Error("connect_result not marked timed out")
	}
}

func TestManager_LateOutcomeIgnored(t *testing.T) {
	sc := testScenario()
	sc.AssociateDelay = 100 * time.Millisecond
	h := newHarness(t, sc, testPolicy(0, time.Millisecond))
	ctx := context.Background()

	outcome, err := h.mgr.ConnectStation(ctx, uplink, 10*time.Millisecond)
	if err != nil || outcome != Disconnected {
		t.Fatalf("first ConnectStation() = %v, %v, want disconnected", outcome, err)
	}

	// The abandoned attempt succeeds after the caller gave up.
	h.rec.waitFor(t, EventOutcome, func(e Event) bool { return e.Outcome == "connected" })

	if err := h.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	unknown := StationCredentials{SSID: "elsewhere"}
	outcome, err = h.mgr.ConnectStation(ctx, unknown, time.Second)
	if err != nil {
		t.Fatalf("second ConnectStation() error = %v", err)
	}
	if outcome != Disconnected {
		t.Errorf("second ConnectStation() = %v, stale outcome leaked", outcome)
	}
}

func TestManager_StopDuringBackoff(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(5, 200*time.Millisecond))
	ctx := context.Background()

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, err := h.mgr.ConnectStation(ctx, StationCredentials{SSID: "elsewhere"}, 5*time.Second)
		done <- result{o, err}
	}()

	h.rec.waitFor(t, EventDisassociated, func(e Event) bool { return e.Retrying })
	if err := h.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil || r.outcome != Disconnected {
			t.Errorf("ConnectStation() = %v, %v, want disconnected", r.outcome, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConnectStation() still blocked after Stop")
	}

	time.Sleep(300 * time.Millisecond)
	if got := h.stack.Stats().Associations; got != 1 {
		t.Errorf("Associations = %d, want 1 (reconnect after Stop)", got)
	}
}

func TestManager_TeardownNeverReconnects(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(5, time.Millisecond))
	ctx := context.Background()

	if outcome, err := h.mgr.ConnectStation(ctx, uplink, 2*time.Second); err != nil || outcome != Connected {
		t.Fatalf("ConnectStation() = %v, %v", outcome, err)
	}

	if err := h.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if h.mgr.Machine().Enabled() {
		t.Error("policy still enabled after Stop")
	}

	// Stopping an associated station emits ASSOC_LEAVE, a retryable reason.
	e := h.rec.waitFor(t, EventDisassociated, nil)
	if e.Reason != radio.ReasonAssocLeave || e.Retrying {
		t.Errorf("teardown disassociation = %+v, want ASSOC_LEAVE without retry", e)
	}

	h.stack.Inject(radio.Notification{Kind: radio.Disassociated, Reason: radio.ReasonNoAPFound})
	time.Sleep(50 * time.Millisecond)

	if got := h.stack.Stats().Associations; got != 1 {
		t.Errorf("Associations = %d, want 1", got)
	}
	if got := h.mgr.Machine().Attempts(); got != 0 {
		t.Errorf("Attempts() = %d, want 0", got)
	}
	if h.mgr.Role() != radio.RoleIdle {
		t.Errorf("Role() = %v, want idle", h.mgr.Role())
	}
}

func TestManager_AccessPointRoundTrip(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())
	ctx := context.Background()
	creds := AccessPointCredentials{SSID: "apsta-setup", Password: "configure-me", MaxClients: 4}

	if err := h.mgr.StartAccessPoint(ctx, creds); err != nil {
		t.Fatalf("StartAccessPoint() error = %v", err)
	}
	first := h.stack.Config()
	if first.AccessPoint == nil {
		t.Fatal("no access point config applied")
	}

	want := radio.AccessPointConfig{
		SSID:           "apsta-setup",
		Password:       "configure-me",
		Channel:        DefaultChannel,
		MaxClients:     4,
		BeaconInterval: DefaultBeaconInterval,
		AuthMode:       radio.AuthWPAWPA2PSK,
	}
	if *first.AccessPoint != want {
		t.Errorf("access point config = %+v, want %+v", *first.AccessPoint, want)
	}

	if err := h.mgr.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := h.mgr.StartAccessPoint(ctx, creds); err != nil {
		t.Fatalf("second StartAccessPoint() error = %v", err)
	}
	second := h.stack.Config()
	if second.AccessPoint == nil || *second.AccessPoint != *first.AccessPoint {
		t.Errorf("round trip config = %+v, want %+v", second.AccessPoint, first.AccessPoint)
	}
	if h.mgr.Role() != radio.RoleAccessPoint {
		t.Errorf("Role() = %v, want ap", h.mgr.Role())
	}
}

func TestManager_StartWhileActive(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())
	ctx := context.Background()

	if err := h.mgr.StartAccessPoint(ctx, AccessPointCredentials{SSID: "setup", Password: "password1"}); err != nil {
		t.Fatalf("StartAccessPoint() error = %v", err)
	}

	err := h.mgr.StartStation(ctx, uplink)
	if !errors.Is(err, radio.ErrRoleActive) {
		t.Fatalf("StartStation() while AP active error = %v, want ErrRoleActive", err)
	}
	if !radio.IsFatal(err) {
		t.Error("role-active error is not fatal")
	}
	if got := h.stack.Stats().Starts; got != 1 {
		t.Errorf("Starts = %d, want 1", got)
	}
}

func TestManager_RejectedStartKeepsStation(t *testing.T) {
	h := newHarness(t, testScenario(), testPolicy(3, 5*time.Millisecond))
	ctx := context.Background()

	outcome, err := h.mgr.ConnectStation(ctx, uplink, 2*time.Second)
	if err != nil || outcome != Connected {
		t.Fatalf("ConnectStation() = %v, %v, want connected", outcome, err)
	}
	before := h.mgr.Machine().Snapshot()

	if err := h.mgr.StartAccessPoint(ctx, AccessPointCredentials{SSID: "setup", Password: "password1"}); !errors.Is(err, radio.ErrRoleActive) {
		t.Fatalf("StartAccessPoint() while station active error = %v, want ErrRoleActive", err)
	}
	if err := h.mgr.StartStation(ctx, uplink); !errors.Is(err, radio.ErrRoleActive) {
		t.Fatalf("StartStation() while station active error = %v, want ErrRoleActive", err)
	}
	if outcome, err := h.mgr.ConnectStation(ctx, uplink, time.Second); !errors.Is(err, radio.ErrRoleActive) || outcome != Disconnected {
		t.Fatalf("ConnectStation() while station active = %v, %v, want ErrRoleActive", outcome, err)
	}

	m := h.mgr.Machine()
	if got := m.State(); got != StateConnected {
		t.Errorf("State() = %v after rejected starts, want connected", got)
	}
	if !m.Enabled() {
		t.Error("reconnect disabled by a rejected start")
	}
	after := m.Snapshot()
	if after.Session != before.Session || after.Attempts != before.Attempts || after.Address != before.Address {
		t.Errorf("snapshot changed by rejected starts: %+v -> %+v", before, after)
	}

	associations := h.stack.Stats().Associations
	h.stack.Inject(radio.Notification{Kind: radio.Disassociated, Reason: radio.ReasonNoAPFound})
	e := h.rec.waitFor(t, EventReconnecting, nil)
	if e.Attempt != 1 {
		t.Errorf("reconnect attempt = %d, want 1", e.Attempt)
	}
	h.rec.waitFor(t, EventAddressAcquired, nil)
	if got := h.stack.Stats().Associations; got != associations+1 {
		t.Errorf("Associations = %d, want %d", got, associations+1)
	}
	if got := h.stack.Stats().Starts; got != 1 {
		t.Errorf("Starts = %d, want 1", got)
	}
}

func TestNewManager_ZeroPolicyUsesDefaults(t *testing.T) {
	mgr := NewManager(sim.New(testScenario()), Options{Logger: zap.NewNop()})
	p := mgr.Machine().Policy()
	if p.MaxAttempts != DefaultMaxAttempts || p.BackoffDelay != DefaultBackoffDelay {
		t.Errorf("policy = %+v, want defaults", p)
	}
	if !p.Retryable(radio.ReasonNoAPFound) {
		t.Error("default retryable reasons not applied")
	}

	explicit := Policy{RetryableReasons: NewReasonSet(radio.ReasonNoAPFound)}
	mgr = NewManager(sim.New(testScenario()), Options{Policy: explicit, Logger: zap.NewNop()})
	if got := mgr.Machine().Policy().MaxAttempts; got != 0 {
		t.Errorf("explicit MaxAttempts = %d, want 0", got)
	}
}

func TestManager_StackStartFailure(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())
	h.stack.SetStartError(errors.New("driver fault"))

	err := h.mgr.StartAccessPoint(context.Background(), AccessPointCredentials{SSID: "setup", Password: "password1"})
	if err == nil {
		t.Fatal("StartAccessPoint() succeeded with failing stack")
	}
	if kind, ok := radio.KindOf(err); !ok || kind != radio.ErrKindStart {
		t.Errorf("KindOf() = %v, %v, want start error", kind, ok)
	}
	if h.mgr.Role() != radio.RoleIdle {
		t.Errorf("Role() = %v after failed start", h.mgr.Role())
	}

	outcome, err := h.mgr.ConnectStation(context.Background(), uplink, time.Second)
	if err == nil || outcome != Disconnected {
		t.Errorf("ConnectStation() = %v, %v, want disconnected with error", outcome, err)
	}
	if h.mgr.Machine().Enabled() {
		t.Error("policy left enabled after failed station start")
	}
}

func TestManager_PeerDiagnostics(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())

	if err := h.mgr.StartAccessPoint(context.Background(), AccessPointCredentials{SSID: "setup", Password: "password1"}); err != nil {
		t.Fatalf("StartAccessPoint() error = %v", err)
	}

	mac, _ := net.ParseMAC("AA:BB:CC:DD:EE:FF")
	h.stack.Inject(radio.Notification{Kind: radio.PeerAssociated, Peer: mac})

	e := h.rec.waitFor(t, EventPeerJoined, nil)
	if e.Peer != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("peer event address = %q, want aa:bb:cc:dd:ee:ff", e.Peer)
	}

	entries := h.logs.FilterMessage("Access point client event").
		FilterField(zap.String("mac", "aa:bb:cc:dd:ee:ff")).
		All()
	if len(entries) != 1 {
		t.Fatalf("found %d peer log entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["event"]; got != "associated" {
		t.Errorf("log event field = %v", got)
	}

	st := h.mgr.Status()
	if len(st.Peers) != 1 || st.Peers[0] != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("Status().Peers = %v", st.Peers)
	}

	h.stack.Inject(radio.Notification{Kind: radio.PeerDisassociated, Peer: mac})
	if e := h.rec.waitFor(t, EventPeerLeft, nil); e.Peer != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("peer_left address = %q", e.Peer)
	}
}

func TestManager_ConnectStationContextCancel(t *testing.T) {
	sc := testScenario()
	sc.AssociateDelay = time.Second
	h := newHarness(t, sc, DefaultPolicy())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome, err := h.mgr.ConnectStation(ctx, uplink, 5*time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ConnectStation() error = %v, want deadline exceeded", err)
	}
	if outcome != Disconnected {
		t.Errorf("ConnectStation() = %v, want disconnected", outcome)
	}
}

func TestManager_StopWhenIdle(t *testing.T) {
	h := newHarness(t, testScenario(), DefaultPolicy())
	if err := h.mgr.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on idle manager error = %v", err)
	}
	if got := h.stack.Stats().Stops; got != 0 {
		t.Errorf("Stops = %d, want 0", got)
	}
}
