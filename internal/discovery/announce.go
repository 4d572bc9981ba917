package discovery

import (
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/radio"
	"github.com/muurk/apsta/internal/version"
	"github.com/muurk/apsta/internal/wifi"
)

// Compile-time interface guard.
var _ wifi.Observer = (*Announcer)(nil)

// Registration is a live mDNS advertisement.
type Registration interface {
	Shutdown()
}

// RegisterFunc publishes a service. zeroconf.Register is the default.
type RegisterFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (Registration, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (Registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// AnnouncerConfig describes what gets advertised.
type AnnouncerConfig struct {
	Instance string
	Port     int
	SSID     string

	// Interfaces limits the advertisement. Empty means all multicast
	// capable interfaces.
	Interfaces []net.Interface

	// Role reports the radio's current role. When set, registration is
	// skipped unless it is still the access point, so a start event that
	// arrives after the role was stopped does not advertise.
	Role func() radio.Role
}

// Announcer advertises the status server while the access point role is
// active. Registration runs on its own goroutine; Observe only records the
// wanted state.
type Announcer struct {
	cfg      AnnouncerConfig
	register RegisterFunc
	logger   *zap.Logger

	mu     sync.Mutex
	want   bool
	active Registration

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAnnouncer creates an announcer and starts its worker. A nil register
// uses zeroconf. Close stops the worker.
func NewAnnouncer(cfg AnnouncerConfig, register RegisterFunc, logger *zap.Logger) *Announcer {
	if register == nil {
		register = zeroconfRegister
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	a := &Announcer{
		cfg:      cfg,
		register: register,
		logger:   logger.Named("mdns"),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Observe implements wifi.Observer.
func (a *Announcer) Observe(e wifi.Event) {
	if e.Role != radio.RoleAccessPoint {
		return
	}
	switch e.Kind {
	case wifi.EventRoleStarted:
		a.setWant(true)
	case wifi.EventRoleStopped:
		a.setWant(false)
	}
}

// Active reports whether an advertisement is registered.
func (a *Announcer) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

// Close stops the worker and withdraws any advertisement. It is safe to
// call more than once.
func (a *Announcer) Close() {
	a.closeOnce.Do(func() { close(a.quit) })
	<-a.done
}

func (a *Announcer) setWant(want bool) {
	a.mu.Lock()
	a.want = want
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Announcer) run() {
	defer close(a.done)
	for {
		select {
		case <-a.quit:
			a.withdraw()
			return
		case <-a.wake:
			a.reconcile()
		}
	}
}

// reconcile registers or withdraws so the advertisement matches the wanted
// state. A change made meanwhile leaves a pending wake-up.
func (a *Announcer) reconcile() {
	a.mu.Lock()
	want, registered := a.want, a.active != nil
	a.mu.Unlock()

	if want && a.cfg.Role != nil && a.cfg.Role() != radio.RoleAccessPoint {
		a.logger.Debug("Skipping mDNS registration, access point no longer active")
		want = false
	}

	switch {
	case want && !registered:
		a.start()
	case !want && registered:
		a.withdraw()
	}
}

func (a *Announcer) text() []string {
	text := []string{
		TextVersion + "=" + version.Version,
		TextRole + "=" + radio.RoleAccessPoint.String(),
	}
	if a.cfg.SSID != "" {
		text = append(text, TextSSID+"="+a.cfg.SSID)
	}
	return text
}

func (a *Announcer) start() {
	reg, err := a.register(a.cfg.Instance, ServiceType, ServiceDomain, a.cfg.Port, a.text(), a.cfg.Interfaces)
	if err != nil {
		a.logger.Warn("mDNS registration failed",
			zap.String("instance", a.cfg.Instance),
			zap.Error(err),
		)
		return
	}

	a.mu.Lock()
	a.active = reg
	a.mu.Unlock()

	a.logger.Info("Advertising status server",
		zap.String("instance", a.cfg.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", a.cfg.Port),
	)
}

func (a *Announcer) withdraw() {
	a.mu.Lock()
	reg := a.active
	a.active = nil
	a.mu.Unlock()

	if reg == nil {
		return
	}
	reg.Shutdown()
	a.logger.Info("Withdrew mDNS advertisement", zap.String("instance", a.cfg.Instance))
}
