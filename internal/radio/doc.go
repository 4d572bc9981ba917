// Package radio defines the boundary between the connection manager and the
// wireless stack underneath it.
//
// The Stack interface is deliberately small: configure and start a role, stop
// it, request an association, and deliver lifecycle notifications. Everything
// with state lives above it in package wifi.
//
// # Reason Codes
//
// Disassociation notifications carry a Reason. Codes below 200 follow IEEE
// 802.11; 200 and above are reported by the station firmware. Reason.String
// returns the diagnostic label, and ParseReason accepts either a label or a
// decimal code so configuration files can use whichever is clearer.
//
// # Errors
//
// Stack failures are reported as *StackError. They are fatal to the calling
// operation:
//
//	if err := stack.ConfigureAndStart(ctx, radio.RoleAccessPoint, cfg); err != nil {
//	    fmt.Println(radio.TroubleshootingHint(err))
//	    return err
//	}
//
// The sim subpackage provides an in-memory Stack driven by scenario files.
package radio
