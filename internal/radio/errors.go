package radio

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind represents the category of a stack failure
type ErrorKind int

const (
	// ErrKindInit indicates the stack could not be initialised
	ErrKindInit ErrorKind = iota
	// ErrKindConfig indicates the stack rejected a role configuration
	ErrKindConfig
	// ErrKindStart indicates a role could not be started
	ErrKindStart
	// ErrKindStop indicates the active role could not be stopped
	ErrKindStop
	// ErrKindAssociate indicates an association request was rejected
	ErrKindAssociate
	// ErrKindClosed indicates the stack has already been closed
	ErrKindClosed
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindInit:
		return "Init Error"
	case ErrKindConfig:
		return "Config Error"
	case ErrKindStart:
		return "Start Error"
	case ErrKindStop:
		return "Stop Error"
	case ErrKindAssociate:
		return "Associate Error"
	case ErrKindClosed:
		return "Stack Closed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinel causes returned by stack implementations.
var (
	ErrNotInitialized = errors.New("stack not initialized")
	ErrRoleActive     = errors.New("a radio role is already active")
	ErrNoRole         = errors.New("no station role is active")
	ErrMissingConfig  = errors.New("configuration for role is missing")
	ErrClosed         = errors.New("stack closed")
)

// StackError is a failure reported by the radio stack. Every StackError
// aborts the operation that produced it; transient association failures are
// never reported this way.
type StackError struct {
	Op   string    // Operation that failed (init, start, stop, associate)
	Kind ErrorKind // Category of failure
	Role Role      // Role involved, RoleIdle when not applicable
	Err  error     // Underlying cause
}

// NewStackError builds a StackError for op.
func NewStackError(op string, kind ErrorKind, role Role, err error) *StackError {
	return &StackError{Op: op, Kind: kind, Role: role, Err: err}
}

// Error implements the error interface
func (e *StackError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Op)
	if e.Role != RoleIdle {
		b.WriteString(" (")
		b.WriteString(e.Role.String())
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *StackError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure should abort the calling sequence. Only
// a rejected association request is survivable; the reconnect policy gets
// another chance on the next disassociation.
func (e *StackError) Fatal() bool {
	return e.Kind != ErrKindAssociate
}

// IsStackError checks if err wraps a StackError
func IsStackError(err error) bool {
	var se *StackError
	return errors.As(err, &se)
}

// IsFatal checks if err wraps a fatal StackError
func IsFatal(err error) bool {
	var se *StackError
	if errors.As(err, &se) {
		return se.Fatal()
	}
	return false
}

// KindOf returns the kind of a wrapped StackError.
func KindOf(err error) (ErrorKind, bool) {
	var se *StackError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// TroubleshootingHint returns operator advice for a stack failure
func TroubleshootingHint(err error) string {
	var se *StackError
	if !errors.As(err, &se) {
		return "An unexpected error occurred. Check the log output for details."
	}

	switch se.Kind {
	case ErrKindInit:
		return strings.Join([]string{
			"The radio stack could not be initialised.",
			"Troubleshooting:",
			"  • Check that the wireless interface exists and is not in use",
			"  • Re-run with APSTA_LOG_LEVEL=debug for stack output",
		}, "\n")

	case ErrKindConfig:
		return strings.Join([]string{
			"The radio rejected the role configuration.",
			"Troubleshooting:",
			"  • SSIDs must be 1-32 bytes",
			"  • WPA passwords must be 8-64 characters",
			"  • Access point channel must be between 1 and 13",
		}, "\n")

	case ErrKindStart:
		if errors.Is(se.Err, ErrRoleActive) {
			return "Another radio role is still running. Stop it before starting " + se.Role.String() + "."
		}
		return strings.Join([]string{
			"The radio role failed to start.",
			"Troubleshooting:",
			"  • Verify the configuration with 'apsta config show'",
			"  • Restart the device to reset the radio",
		}, "\n")

	case ErrKindStop:
		return "The radio could not be stopped cleanly. Restart the device to reset the radio."

	case ErrKindAssociate:
		return "The association request was rejected. The reconnect policy will try again on the next disassociation."

	case ErrKindClosed:
		return "The radio stack has been shut down."

	default:
		return "A radio error occurred. Please check the error message for details."
	}
}
