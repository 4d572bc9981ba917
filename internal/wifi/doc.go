// Package wifi implements the AP/STA connection manager.
//
// Three pieces cooperate:
//
//   - Machine owns the station state, the reconnect policy and the attempt
//     counter. Handle turns one stack notification into a Decision and
//     performs no I/O, so it can be driven with synthetic notifications.
//   - Dispatcher reads the stack's notification stream, feeds the Machine and
//     carries out its decisions: association requests, reconnect backoff,
//     outcome signals and diagnostic events.
//   - Manager switches roles and offers ConnectStation, a blocking connect
//     with a deadline.
//
// # Reconnect Policy
//
// A disassociation triggers a reconnect only when the policy is enabled, the
// reason is in the retryable set and fewer than MaxAttempts reconnects have
// been made since the last successful association. Otherwise the session
// ends Disconnected. Stop disables the policy before the role is torn down,
// so the disassociation the teardown causes never reconnects.
//
// # Timeouts
//
// ConnectStation's timeout bounds the caller's wait only. An attempt that
// outlives it keeps running until the next Stop, and its outcome is
// discarded: every call runs under a fresh session and only signals for that
// session are accepted.
//
// # Events
//
// Transitions, disassociations, reconnects, outcomes and access point client
// changes are published on a Bus as Event values. The metrics collector, the
// status server and the mDNS announcer subscribe there.
package wifi
