package logging

import (
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "APSTA_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks APSTA_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		// Unknown level - use info as default when explicitly set to something
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// InitializeFromEnv initializes the logger from the APSTA_LOG_LEVEL
// environment variable. CLI commands use this to stay silent by default.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Passing nil restores silent mode.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogRole logs a radio role change on the given logger.
func LogRole(l *zap.Logger, role string, event string) {
	l.Info("Radio role event",
		zap.String("role", role),
		zap.String("event", event),
	)
}

// LogNotification logs a raw stack notification at debug level.
func LogNotification(l *zap.Logger, kind string, detail fmt.Stringer) {
	l.Debug("Stack notification",
		zap.String("kind", kind),
		zap.Stringer("detail", detail),
	)
}

// LogTransition logs a connection state change.
func LogTransition(l *zap.Logger, from, to string, cause string) {
	l.Info("Connection state changed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("cause", cause),
	)
}

// LogDisconnect logs a station disassociation with both the raw reason code
// and its label.
func LogDisconnect(l *zap.Logger, code uint16, label string, attempt uint32, retrying bool) {
	l.Info("Station disassociated",
		zap.Uint16("reason_code", code),
		zap.String("reason", label),
		zap.Uint32("attempt", attempt),
		zap.Bool("retrying", retrying),
	)
}

// LogPeer logs an access point client event. The hardware address is written
// in its canonical lowercase colon-separated form.
func LogPeer(l *zap.Logger, event string, addr net.HardwareAddr) {
	l.Info("Access point client event",
		zap.String("event", event),
		zap.String("mac", hardwareAddrString(addr)),
	)
}

func hardwareAddrString(addr net.HardwareAddr) string {
	if len(addr) == 0 {
		return ""
	}
	return addr.String()
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
