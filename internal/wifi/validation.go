package wifi

import (
	"fmt"
	"strings"
)

// ValidationError is a problem found in operator-supplied credentials.
// Messages starting with "warning:" are advisory.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidateSSID validates a network name.
// SSIDs must be non-empty; longer than 32 bytes is truncated with a warning.
func ValidateSSID(field, ssid string) error {
	if ssid == "" {
		return invalid(field, "SSID cannot be empty")
	}
	if len(ssid) > MaxSSIDLen {
		return invalid(field, "warning: SSID is %d bytes and will be truncated to %d", len(ssid), MaxSSIDLen)
	}
	return nil
}

// ValidatePassword validates a WPA passphrase.
// An empty password is allowed for open upstream networks only; WPA
// passphrases are 8-63 characters, or exactly 64 hex digits.
func ValidatePassword(field, password string, required bool) error {
	if password == "" {
		if required {
			return invalid(field, "password required for WPA/WPA2 access point")
		}
		return nil
	}
	if len(password) < 8 {
		return invalid(field, "WPA password too short (min 8 chars): %d chars", len(password))
	}
	if len(password) > MaxPasswordLen {
		return invalid(field, "password too long (max %d chars): %d chars", MaxPasswordLen, len(password))
	}
	if len(password) == MaxPasswordLen && !isHex(password) {
		return invalid(field, "64 character password must be a hex PSK")
	}
	return nil
}

// ValidateStation validates station credentials.
// Returns a slice of validation errors (empty if valid).
func ValidateStation(c StationCredentials) []error {
	var errs []error
	if err := ValidateSSID("station.ssid", c.SSID); err != nil {
		errs = append(errs, err)
	}
	if err := ValidatePassword("station.password", c.Password, false); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// ValidateAccessPoint validates access point credentials.
// Returns a slice of validation errors (empty if valid).
func ValidateAccessPoint(c AccessPointCredentials) []error {
	var errs []error
	if err := ValidateSSID("access_point.ssid", c.SSID); err != nil {
		errs = append(errs, err)
	}
	if err := ValidatePassword("access_point.password", c.Password, true); err != nil {
		errs = append(errs, err)
	}
	if c.Channel > 13 {
		errs = append(errs, invalid("access_point.channel", "2.4GHz channel must be 1-13, got %d", c.Channel))
	}
	if c.MaxClients > 10 {
		errs = append(errs, invalid("access_point.max_clients", "at most 10 clients supported, got %d", c.MaxClients))
	}
	if c.BeaconInterval != 0 && c.BeaconInterval < 100 {
		errs = append(errs, invalid("access_point.beacon_interval", "beacon interval must be at least 100 TU, got %d", c.BeaconInterval))
	}
	return errs
}

// FormatValidationErrors formats a slice of validation errors into a user-friendly message.
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return "No validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n", len(errs)))
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// IsWarning checks if a validation error is a warning (non-fatal).
func IsWarning(err error) bool {
	if ve, ok := err.(*ValidationError); ok {
		return strings.HasPrefix(ve.Message, "warning:")
	}
	return strings.Contains(err.Error(), "warning:")
}

// SeparateWarningsAndErrors splits validation results into warnings and
// errors that must block the operation.
func SeparateWarningsAndErrors(errs []error) (warnings []error, critical []error) {
	for _, err := range errs {
		if IsWarning(err) {
			warnings = append(warnings, err)
		} else {
			critical = append(critical, err)
		}
	}
	return warnings, critical
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
