package wifi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/apsta/internal/logging"
	"github.com/muurk/apsta/internal/radio"
)

// Dispatcher delivers stack notifications to the Machine and carries out the
// resulting decisions. Reconnect backoff runs on its own timer so that
// notification delivery is never held up by a pending retry.
type Dispatcher struct {
	stack   radio.Stack
	machine *Machine
	bus     *Bus
	logger  *zap.Logger
	signal  func(session uint64, outcome Outcome)

	wg sync.WaitGroup
}

// NewDispatcher wires a dispatcher. signal may be nil when nobody waits for
// outcomes.
func NewDispatcher(stack radio.Stack, machine *Machine, bus *Bus, logger *zap.Logger, signal func(uint64, Outcome)) *Dispatcher {
	if logger == nil {
		logger = logging.GetLogger()
	}
	if bus == nil {
		bus = NewBus(logger)
	}
	if signal == nil {
		signal = func(uint64, Outcome) {}
	}
	return &Dispatcher{
		stack:   stack,
		machine: machine,
		bus:     bus,
		logger:  logger,
		signal:  signal,
	}
}

// Run consumes notifications until ctx is cancelled or the stack closes its
// notification stream. It waits for scheduled retries to finish before
// returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()

	notifications := d.stack.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				d.logger.Debug("Notification stream closed")
				return nil
			}
			d.Dispatch(ctx, n)
		}
	}
}

// Dispatch handles a single notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n radio.Notification) {
	logging.LogNotification(d.logger, n.Kind.String(), n)

	dec := d.machine.Handle(n)
	snap := d.machine.Snapshot()

	switch n.Kind {
	case radio.RoleStarted:
		logging.LogRole(d.logger, n.Role.String(), "started")
		d.bus.Publish(Event{Kind: EventRoleStarted, Role: n.Role, State: dec.To})
	case radio.Associated:
		d.bus.Publish(Event{Kind: EventAssociated, Role: snap.Role, State: dec.To, Session: dec.SessionID})
	case radio.AddressAcquired:
		if dec.Addr != nil {
			d.logger.Info("Station address acquired", zap.Stringer("addr", dec.Addr))
			d.bus.Publish(Event{Kind: EventAddressAcquired, Role: snap.Role, State: dec.To, Addr: dec.Addr.String(), Session: dec.SessionID})
		}
	case radio.Disassociated:
		retrying := dec.Action == ActionRetry
		logging.LogDisconnect(d.logger, uint16(n.Reason), n.Reason.String(), dec.Attempt, retrying)
		d.bus.Publish(Event{
			Kind:     EventDisassociated,
			Role:     snap.Role,
			State:    dec.To,
			Reason:   n.Reason,
			Attempt:  dec.Attempt,
			Retrying: retrying,
			DelayMS:  dec.Delay.Milliseconds(),
			Session:  dec.SessionID,
		})
	}

	d.apply(ctx, dec)
}

// apply executes dec.
func (d *Dispatcher) apply(ctx context.Context, dec Decision) {
	if dec.Transitioned() {
		d.publishTransition(dec)
	}

	switch dec.Action {
	case ActionAssociate:
		d.associate(ctx, dec)

	case ActionRetry:
		d.wg.Add(1)
		go d.retryAfter(ctx, dec)

	case ActionSignal:
		d.bus.Publish(Event{
			Kind:    EventOutcome,
			Role:    radio.RoleStation,
			State:   dec.To,
			Outcome: dec.Outcome.String(),
			Session: dec.SessionID,
		})
		d.signal(dec.Session, dec.Outcome)

	case ActionPeer:
		kind, event := EventPeerLeft, "disassociated"
		if dec.Joined {
			kind, event = EventPeerJoined, "associated"
		}
		logging.LogPeer(d.logger, event, dec.Peer)
		d.bus.Publish(Event{Kind: kind, Role: radio.RoleAccessPoint, State: dec.To, Peer: dec.Peer.String()})
	}
}

func (d *Dispatcher) publishTransition(dec Decision) {
	from := dec.From
	cause := dec.Action.String()
	if dec.Reason != 0 {
		cause = dec.Reason.String()
	}
	logging.LogTransition(d.logger, from.String(), dec.To.String(), cause)
	d.bus.Publish(Event{
		Kind:     EventStateChanged,
		Role:     radio.RoleStation,
		State:    dec.To,
		Previous: &from,
		Reason:   dec.Reason,
		Session:  dec.SessionID,
	})
}

// associate issues an association request for a decision that is still
// current. A rejected request ends the session.
func (d *Dispatcher) associate(ctx context.Context, dec Decision) {
	if !d.machine.Confirm(dec) {
		d.logger.Debug("Association request skipped, session no longer current",
			zap.Uint64("session", dec.Session),
			zap.Stringer("action", dec.Action),
		)
		return
	}

	if dec.Action == ActionRetry {
		d.logger.Info("Reconnecting station", zap.Uint32("attempt", dec.Attempt))
		d.bus.Publish(Event{Kind: EventReconnecting, Role: radio.RoleStation, State: StateConnecting, Attempt: dec.Attempt, Session: dec.SessionID})
	}

	if err := d.stack.RequestAssociation(ctx); err != nil {
		d.logger.Warn("Association request failed", zap.Error(err))
		d.apply(ctx, d.machine.Abandon(dec.Session))
	}
}

// retryAfter waits out the backoff and reissues association unless the
// policy was disabled, the session moved on or the dispatcher is stopping.
func (d *Dispatcher) retryAfter(ctx context.Context, dec Decision) {
	defer d.wg.Done()

	d.logger.Debug("Reconnect scheduled",
		zap.Uint32("attempt", dec.Attempt),
		zap.Duration("delay", dec.Delay),
	)

	timer := time.NewTimer(dec.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-dec.Cancelled():
		d.logger.Debug("Reconnect cancelled, policy disabled", zap.Uint32("attempt", dec.Attempt))
		return
	case <-ctx.Done():
		return
	}

	d.associate(ctx, dec)
}
