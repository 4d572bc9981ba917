package radio

import (
	"context"
	"fmt"
	"net"
)

// NotificationKind identifies a lifecycle notification from the stack.
type NotificationKind int

const (
	RoleStarted NotificationKind = iota
	Associated
	Disassociated
	AddressAcquired
	PeerAssociated
	PeerDisassociated
)

func (k NotificationKind) String() string {
	switch k {
	case RoleStarted:
		return "role_started"
	case Associated:
		return "associated"
	case Disassociated:
		return "disassociated"
	case AddressAcquired:
		return "address_acquired"
	case PeerAssociated:
		return "peer_associated"
	case PeerDisassociated:
		return "peer_disassociated"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

// Notification is a single lifecycle event emitted by the stack. Only the
// fields relevant to Kind are populated.
type Notification struct {
	Kind   NotificationKind
	Role   Role             // RoleStarted
	Reason Reason           // Disassociated
	Addr   net.IP           // AddressAcquired
	Peer   net.HardwareAddr // PeerAssociated, PeerDisassociated
}

func (n Notification) String() string {
	switch n.Kind {
	case RoleStarted:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Role)
	case Disassociated:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Reason)
	case AddressAcquired:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Addr)
	case PeerAssociated, PeerDisassociated:
		return fmt.Sprintf("%s(%s)", n.Kind, n.Peer)
	default:
		return n.Kind.String()
	}
}

// Stack is the radio facility the connection manager drives. Implementations
// emit notifications asynchronously on the channel returned by
// Notifications, which stays open until Close.
type Stack interface {
	// Init performs one-time setup and selects where the stack keeps its
	// last-used configuration.
	Init(ctx context.Context, storage StorageMode) error

	// ConfigureAndStart applies cfg and starts role. It fails if another
	// role is still running.
	ConfigureAndStart(ctx context.Context, role Role, cfg Config) error

	// StopRole stops the active role and releases its network handle.
	// Stopping while idle is not an error.
	StopRole(ctx context.Context) error

	// RequestAssociation asks the station role to associate. The result is
	// delivered as a notification.
	RequestAssociation(ctx context.Context) error

	// Notifications returns the lifecycle notification stream.
	Notifications() <-chan Notification

	// Close releases the stack and closes the notification stream.
	Close() error
}
