package sim

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/radio"
)

// notificationBuffer is the capacity of the notification channel.
const notificationBuffer = 64

// Compile-time interface guard.
var _ radio.Stack = (*Stack)(nil)

// Stats counts calls made against the simulated stack.
type Stats struct {
	Inits        int
	Starts       int
	Stops        int
	Associations int
	Dropped      int
}

// Stack is an in-memory radio.Stack. Association outcomes follow the
// configured Scenario; tests can also push arbitrary notifications with
// Inject.
type Stack struct {
	mu       sync.Mutex
	scenario Scenario
	failures []radio.Reason
	logger   *zap.Logger

	initialized bool
	closed      bool
	storage     radio.StorageMode
	role        radio.Role
	config      radio.Config
	associated  bool

	// generation advances on every stop so timers scheduled for a previous
	// role activation fire into nothing.
	generation uint64

	startErr error
	stats    Stats

	notifications chan radio.Notification
}

// Option configures a Stack.
type Option func(*Stack)

// WithLogger sets the logger used for simulated radio output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Stack) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a simulated stack for the given scenario.
func New(sc Scenario, opts ...Option) *Stack {
	s := &Stack{
		scenario:      sc,
		failures:      append([]radio.Reason(nil), sc.Failures...),
		logger:        logging.GetLogger(),
		notifications: make(chan radio.Notification, notificationBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("sim")
	return s
}

// Init implements radio.Stack.
func (s *Stack) Init(ctx context.Context, storage radio.StorageMode) error {
	if err := ctx.Err(); err != nil {
		return radio.NewStackError("init", radio.ErrKindInit, radio.RoleIdle, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return radio.NewStackError("init", radio.ErrKindClosed, radio.RoleIdle, radio.ErrClosed)
	}
	s.initialized = true
	s.storage = storage
	s.stats.Inits++
	s.logger.Debug("Stack initialized", zap.Stringer("storage", storage))
	return nil
}

// ConfigureAndStart implements radio.Stack.
func (s *Stack) ConfigureAndStart(ctx context.Context, role radio.Role, cfg radio.Config) error {
	const op = "configure_and_start"

	if err := ctx.Err(); err != nil {
		return radio.NewStackError(op, radio.ErrKindStart, role, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return radio.NewStackError(op, radio.ErrKindClosed, role, radio.ErrClosed)
	case !s.initialized:
		return radio.NewStackError(op, radio.ErrKindInit, role, radio.ErrNotInitialized)
	case s.role != radio.RoleIdle:
		return radio.NewStackError(op, radio.ErrKindStart, role, radio.ErrRoleActive)
	case role == radio.RoleStation && cfg.Station == nil,
		role == radio.RoleAccessPoint && cfg.AccessPoint == nil,
		role == radio.RoleIdle:
		return radio.NewStackError(op, radio.ErrKindConfig, role, radio.ErrMissingConfig)
	}

	if s.startErr != nil {
		return radio.NewStackError(op, radio.ErrKindStart, role, s.startErr)
	}

	s.role = role
	s.config = copyConfig(cfg)
	s.associated = false
	s.stats.Starts++

	s.logger.Debug("Role started", zap.Stringer("role", role))
	s.emitLocked(radio.Notification{Kind: radio.RoleStarted, Role: role})

	if role == radio.RoleAccessPoint {
		s.schedulePeersLocked()
	}
	return nil
}

// StopRole implements radio.Stack. Stopping an associated station emits a
// final ASSOC_LEAVE disassociation, as real radios do.
func (s *Stack) StopRole(ctx context.Context) error {
	const op = "stop_role"

	if err := ctx.Err(); err != nil {
		return radio.NewStackError(op, radio.ErrKindStop, radio.RoleIdle, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return radio.NewStackError(op, radio.ErrKindClosed, radio.RoleIdle, radio.ErrClosed)
	}
	if s.role == radio.RoleIdle {
		return nil
	}

	if s.role == radio.RoleStation && s.associated {
		s.emitLocked(radio.Notification{Kind: radio.Disassociated, Reason: radio.ReasonAssocLeave})
	}

	s.logger.Debug("Role stopped", zap.Stringer("role", s.role))
	s.role = radio.RoleIdle
	s.associated = false
	s.config = radio.Config{}
	s.generation++
	s.stats.Stops++
	return nil
}

// RequestAssociation implements radio.Stack.
func (s *Stack) RequestAssociation(ctx context.Context) error {
	const op = "request_association"

	if err := ctx.Err(); err != nil {
		return radio.NewStackError(op, radio.ErrKindAssociate, radio.RoleStation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return radio.NewStackError(op, radio.ErrKindClosed, radio.RoleStation, radio.ErrClosed)
	}
	if s.role != radio.RoleStation {
		return radio.NewStackError(op, radio.ErrKindAssociate, radio.RoleStation, radio.ErrNoRole)
	}

	s.stats.Associations++
	gen := s.generation

	var outcome radio.Notification
	if len(s.failures) > 0 {
		outcome = radio.Notification{Kind: radio.Disassociated, Reason: s.failures[0]}
		s.failures = s.failures[1:]
	} else {
		found, authOK := s.scenario.lookup(s.config.Station.SSID, s.config.Station.Password)
		switch {
		case !found:
			outcome = radio.Notification{Kind: radio.Disassociated, Reason: radio.ReasonNoAPFound}
		case !authOK:
			outcome = radio.Notification{Kind: radio.Disassociated, Reason: radio.Reason4WayHandshakeTimeout}
		default:
			outcome = radio.Notification{Kind: radio.Associated}
		}
	}

	s.afterLocked(gen, s.scenario.AssociateDelay, func() {
		if outcome.Kind != radio.Associated {
			s.emitLocked(outcome)
			return
		}
		s.associated = true
		s.emitLocked(outcome)
		s.afterLocked(gen, s.scenario.AddressDelay, func() {
			if !s.associated {
				return
			}
			s.emitLocked(radio.Notification{Kind: radio.AddressAcquired, Addr: net.ParseIP(s.scenario.Address)})
		})
	})
	return nil
}

// Notifications implements radio.Stack.
func (s *Stack) Notifications() <-chan radio.Notification {
	return s.notifications
}

// Close implements radio.Stack.
func (s *Stack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.generation++
	close(s.notifications)
	return nil
}

// Inject delivers n as if the radio had produced it. It reports false when
// the stack is closed or the buffer is full.
func (s *Stack) Inject(n radio.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch n.Kind {
	case radio.Associated:
		s.associated = s.role == radio.RoleStation
	case radio.Disassociated:
		s.associated = false
	}
	return s.emitLocked(n)
}

// SetStartError makes every following ConfigureAndStart fail with err until
// it is cleared with nil.
func (s *Stack) SetStartError(err error) {
	s.mu.Lock()
	s.startErr = err
	s.mu.Unlock()
}

// Role returns the running role.
func (s *Stack) Role() radio.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Config returns a copy of the running configuration.
func (s *Stack) Config() radio.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyConfig(s.config)
}

// Storage returns the storage mode chosen at Init.
func (s *Stack) Storage() radio.StorageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage
}

// Stats returns call counters.
func (s *Stack) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Stack) emitLocked(n radio.Notification) bool {
	if s.closed {
		return false
	}
	select {
	case s.notifications <- n:
		s.logger.Debug("Notification", zap.Stringer("notification", n))
		return true
	default:
		s.stats.Dropped++
		s.logger.Warn("Notification buffer full, dropping", zap.Stringer("notification", n))
		return false
	}
}

// afterLocked runs fn with the lock held after d, unless the role was
// stopped or the stack closed in the meantime.
func (s *Stack) afterLocked(gen uint64, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.generation != gen {
			return
		}
		fn()
	})
}

func (s *Stack) schedulePeersLocked() {
	gen := s.generation
	for _, p := range s.scenario.Peers {
		mac, err := net.ParseMAC(p.MAC)
		if err != nil {
			continue
		}
		s.afterLocked(gen, p.Join, func() {
			s.emitLocked(radio.Notification{Kind: radio.PeerAssociated, Peer: mac})
		})
		if p.Leave > 0 {
			s.afterLocked(gen, p.Leave, func() {
				s.emitLocked(radio.Notification{Kind: radio.PeerDisassociated, Peer: mac})
			})
		}
	}
}

func copyConfig(cfg radio.Config) radio.Config {
	var out radio.Config
	if cfg.Station != nil {
		sta := *cfg.Station
		out.Station = &sta
	}
	if cfg.AccessPoint != nil {
		ap := *cfg.AccessPoint
		out.AccessPoint = &ap
	}
	return out
}
