package wifi

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/radio"
)

// EventKind names a diagnostic event.
type EventKind string

const (
	EventRoleStarted     EventKind = "role_started"
	EventRoleStopped     EventKind = "role_stopped"
	EventStateChanged    EventKind = "state_changed"
	EventAssociated      EventKind = "associated"
	EventAddressAcquired EventKind = "address_acquired"
	EventDisassociated   EventKind = "disassociated"
	EventReconnecting    EventKind = "reconnecting"
	EventOutcome         EventKind = "outcome"
	EventConnectResult   EventKind = "connect_result"
	EventPeerJoined      EventKind = "peer_joined"
	EventPeerLeft        EventKind = "peer_left"
)

// Event is a diagnostic record published by the manager. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind     EventKind  `json:"kind"`
	Time     time.Time  `json:"time"`
	Role     radio.Role `json:"role"`
	State    State      `json:"state"`
	Previous *State     `json:"previous,omitempty"`

	Reason   radio.Reason `json:"reason,omitempty"`
	Attempt  uint32       `json:"attempt,omitempty"`
	Retrying bool         `json:"retrying,omitempty"`
	DelayMS  int64        `json:"delay_ms,omitempty"`

	Outcome    string `json:"outcome,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`

	Peer    string `json:"peer,omitempty"`
	Addr    string `json:"addr,omitempty"`
	Session string `json:"session,omitempty"`
}

// Observer receives diagnostic events. Observe is called synchronously from
// the dispatch goroutine and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// Bus fans events out to subscribed observers. A panicking observer is
// logged and does not affect the others.
type Bus struct {
	mu        sync.RWMutex
	observers []observerEntry
	nextID    uint64
	logger    *zap.Logger
	now       func() time.Time
}

type observerEntry struct {
	id  uint64
	obs Observer
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger, now: time.Now}
}

// Subscribe registers obs. Returns an unsubscribe function.
func (b *Bus) Subscribe(obs Observer) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.observers = append(b.observers, observerEntry{id: id, obs: obs})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.observers {
			if e.id == id {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// Publish stamps e with the current time if unset and delivers it to every
// observer in subscription order.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.mu.RLock()
	observers := make([]observerEntry, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		b.safeCall(o.obs, e)
	}
}

func (b *Bus) safeCall(obs Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event observer panicked",
				zap.String("kind", string(e.Kind)),
				zap.Any("panic", r),
			)
		}
	}()
	obs.Observe(e)
}
