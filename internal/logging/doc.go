// Package logging provides structured logging for apsta.
//
// This package wraps a zap logger with convenience functions for common logging
// patterns. It provides both general logging functions and helpers for the
// radio lifecycle events the connection manager reports.
//
// # Log Levels
//
//   - Debug: Raw stack notifications, backoff timers
//   - Info: Role changes, state transitions, access point clients
//   - Warn: Non-fatal issues (dropped notifications, slow observers)
//   - Error: Stack failures that abort an operation
//
// # Structured Logging
//
//	logging.Info("Station connected",
//	    zap.String("ssid", "uplink"),
//	    zap.Uint32("attempts", 2),
//	)
//
// Components that need a logger accept a *zap.Logger and fall back to
// GetLogger(), so tests can inject an observer core.
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and APSTA_LOG_LEVEL is unset, logging is silent.
package logging
