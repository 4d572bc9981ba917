package wifi

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/radio"
)

// ErrNotInitialized is returned by role operations before Init.
var ErrNotInitialized = errors.New("wifi manager not initialized")

// Options configures a Manager.
type Options struct {
	// Policy is the reconnect policy. Its Enabled flag is managed by the
	// manager and ignored here. A zero Policy selects DefaultPolicy; a
	// policy with reasons set and MaxAttempts 0 never reconnects.
	Policy Policy

	// Logger defaults to logging.GetLogger().
	Logger *zap.Logger

	// Observers are subscribed to the event bus before Init.
	Observers []Observer
}

// Status is the state reported by the status server.
type Status struct {
	Snapshot
	SSID string `json:"ssid,omitempty"`
}

type signal struct {
	session uint64
	outcome Outcome
}

// Manager is the connection manager: it switches radio roles, runs the
// reconnect state machine and offers a blocking station connect.
type Manager struct {
	stack   radio.Stack
	machine *Machine
	bus     *Bus
	logger  *zap.Logger

	dispatcher *Dispatcher
	outcomes   chan signal

	// connectMu serialises ConnectStation calls.
	connectMu sync.Mutex

	// roleMu guards role changes and the fields below.
	roleMu      sync.Mutex
	initialized bool
	role        radio.Role
	ssid        string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager driving stack.
func NewManager(stack radio.Stack, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	policy := opts.Policy
	if policy.isZero() {
		policy = DefaultPolicy()
	}
	if policy.RetryableReasons == nil {
		policy.RetryableReasons = DefaultRetryableReasons()
	}
	policy.Enabled = false

	m := &Manager{
		stack:    stack,
		machine:  NewMachine(policy),
		bus:      NewBus(logger),
		logger:   logger,
		outcomes: make(chan signal, 1),
	}
	for _, o := range opts.Observers {
		m.bus.Subscribe(o)
	}
	m.dispatcher = NewDispatcher(stack, m.machine, m.bus, logger, m.deliver)
	return m
}

// Subscribe registers an observer for diagnostic events.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	return m.bus.Subscribe(o)
}

// Init performs one-time stack setup with volatile configuration storage and
// starts notification dispatch. Calling it again is a no-op.
func (m *Manager) Init(ctx context.Context) error {
	m.roleMu.Lock()
	defer m.roleMu.Unlock()

	if m.initialized {
		return nil
	}
	if err := m.stack.Init(ctx, radio.StorageRAM); err != nil {
		return asStackError("init", radio.ErrKindInit, radio.RoleIdle, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		if err := m.dispatcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Dispatcher stopped", zap.Error(err))
		}
	}()

	m.initialized = true
	m.logger.Info("Connection manager initialized")
	return nil
}

// Close stops the active role, shuts down dispatch and closes the stack.
func (m *Manager) Close() error {
	stopErr := m.Stop(context.Background())

	m.roleMu.Lock()
	cancel, done := m.cancel, m.done
	m.initialized = false
	m.cancel = nil
	m.roleMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return errors.Join(stopErr, m.stack.Close())
}

// StartAccessPoint starts the access point role. The reconnect policy is not
// changed; callers normally Stop first, which disables it.
func (m *Manager) StartAccessPoint(ctx context.Context, creds AccessPointCredentials) error {
	cfg := creds.radioConfig()
	if err := m.startRole(ctx, radio.RoleAccessPoint, cfg, m.machine.Reset); err != nil {
		return err
	}
	m.logger.Info("Access point started",
		zap.String("ssid", cfg.AccessPoint.SSID),
		zap.Uint8("channel", cfg.AccessPoint.Channel),
		zap.Uint8("max_clients", cfg.AccessPoint.MaxClients),
		zap.Stringer("auth", cfg.AccessPoint.AuthMode),
	)
	return nil
}

// ConnectAccessPoint is StartAccessPoint.
func (m *Manager) ConnectAccessPoint(ctx context.Context, creds AccessPointCredentials) error {
	return m.StartAccessPoint(ctx, creds)
}

// StartStation enables reconnection and starts the station role without
// waiting for the outcome.
func (m *Manager) StartStation(ctx context.Context, creds StationCredentials) error {
	_, err := m.beginStation(ctx, creds, uuid.NewString())
	return err
}

// ConnectStation starts the station role and blocks until it connects, gives
// up, or timeout elapses. A timeout of zero or less returns Disconnected
// without waiting. Failing to connect is not an error: the error return is
// reserved for stack failures and ctx cancellation.
//
// A timed-out attempt is left running; its eventual outcome is discarded.
func (m *Manager) ConnectStation(ctx context.Context, creds StationCredentials, timeout time.Duration) (Outcome, error) {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	id := uuid.NewString()
	start := time.Now()

	session, err := m.beginStation(ctx, creds, id)
	if err != nil {
		return Disconnected, err
	}

	outcome, timedOut, waitErr := m.await(ctx, session, timeout)
	m.drain()

	elapsed := time.Since(start)
	m.logger.Info("Station connect finished",
		zap.String("session", id),
		zap.Stringer("outcome", outcome),
		zap.Bool("timed_out", timedOut),
		zap.Duration("elapsed", elapsed),
	)
	m.bus.Publish(Event{
		Kind:       EventConnectResult,
		Role:       radio.RoleStation,
		State:      m.machine.State(),
		Outcome:    outcome.String(),
		TimedOut:   timedOut,
		DurationMS: elapsed.Milliseconds(),
		Session:    id,
	})
	return outcome, waitErr
}

// Stop disables reconnection, then stops the active role. It is a no-op
// when no role is running.
func (m *Manager) Stop(ctx context.Context) error {
	m.dispatcher.apply(ctx, m.machine.Halt())

	m.roleMu.Lock()
	role := m.role
	if role == radio.RoleIdle {
		m.roleMu.Unlock()
		return nil
	}
	if err := m.stack.StopRole(ctx); err != nil {
		m.roleMu.Unlock()
		return asStackError("stop_role", radio.ErrKindStop, role, err)
	}
	m.role = radio.RoleIdle
	m.ssid = ""
	m.roleMu.Unlock()

	logging.LogRole(m.logger, role.String(), "stopped")
	m.bus.Publish(Event{Kind: EventRoleStopped, Role: role, State: m.machine.State()})
	return nil
}

// Disconnect is Stop.
func (m *Manager) Disconnect(ctx context.Context) error {
	return m.Stop(ctx)
}

// Role returns the active role.
func (m *Manager) Role() radio.Role {
	m.roleMu.Lock()
	defer m.roleMu.Unlock()
	return m.role
}

// Status returns the current role, connection state and clients.
func (m *Manager) Status() Status {
	m.roleMu.Lock()
	role, ssid := m.role, m.ssid
	m.roleMu.Unlock()

	st := Status{Snapshot: m.machine.Snapshot(), SSID: ssid}
	st.Role = role
	return st
}

// Machine exposes the state machine for inspection.
func (m *Manager) Machine() *Machine {
	return m.machine
}

// beginStation opens a new station session and starts the role. A start
// refused before reaching the stack leaves the current session untouched.
func (m *Manager) beginStation(ctx context.Context, creds StationCredentials, id string) (uint64, error) {
	var session uint64
	prepared := false
	err := m.startRole(ctx, radio.RoleStation, creds.radioConfig(), func() {
		m.drain()
		session = m.machine.Begin(id)
		m.machine.SetEnabled(true)
		prepared = true
	})
	if err != nil {
		if prepared {
			m.machine.SetEnabled(false)
		}
		return session, err
	}
	return session, nil
}

// startRole starts role once no other role is active. prepare runs after
// that check and before the stack is asked to start, so notifications for
// the new role find the machine ready.
func (m *Manager) startRole(ctx context.Context, role radio.Role, cfg radio.Config, prepare func()) error {
	m.roleMu.Lock()
	defer m.roleMu.Unlock()

	if !m.initialized {
		return radio.NewStackError("configure_and_start", radio.ErrKindInit, role, ErrNotInitialized)
	}
	if m.role != radio.RoleIdle {
		return radio.NewStackError("configure_and_start", radio.ErrKindStart, role, radio.ErrRoleActive)
	}
	if prepare != nil {
		prepare()
	}
	if err := m.stack.ConfigureAndStart(ctx, role, cfg); err != nil {
		return asStackError("configure_and_start", radio.ErrKindStart, role, err)
	}

	m.role = role
	switch {
	case cfg.Station != nil:
		m.ssid = cfg.Station.SSID
	case cfg.AccessPoint != nil:
		m.ssid = cfg.AccessPoint.SSID
	}
	logging.LogRole(m.logger, role.String(), "start requested")
	return nil
}

// await blocks for the outcome of session.
func (m *Manager) await(ctx context.Context, session uint64, timeout time.Duration) (outcome Outcome, timedOut bool, err error) {
	if timeout <= 0 {
		return Disconnected, true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case s := <-m.outcomes:
			if s.session != session {
				continue
			}
			return s.outcome, false, nil
		case <-timer.C:
			return Disconnected, true, nil
		case <-ctx.Done():
			return Disconnected, false, ctx.Err()
		}
	}
}

// deliver stores the latest outcome, replacing an unconsumed one.
func (m *Manager) deliver(session uint64, outcome Outcome) {
	s := signal{session: session, outcome: outcome}
	for {
		select {
		case m.outcomes <- s:
			return
		default:
		}
		select {
		case <-m.outcomes:
		default:
		}
	}
}

func (m *Manager) drain() {
	for {
		select {
		case <-m.outcomes:
		default:
			return
		}
	}
}

// asStackError returns err unchanged if it already is a StackError, and
// wraps it otherwise.
func asStackError(op string, kind radio.ErrorKind, role radio.Role, err error) error {
	if radio.IsStackError(err) {
		return err
	}
	return radio.NewStackError(op, kind, role, err)
}
