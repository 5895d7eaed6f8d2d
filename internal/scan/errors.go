package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckpointNotFound signals that no checkpoint has been
	// committed yet; callers fall back to the configured default start.
	ErrCheckpointNotFound = errors.New("scan: checkpoint not found")

	// ErrMetricUnavailable marks a derived metric that could not be
	// computed. Alerts are degraded, never suppressed, on this error.
	ErrMetricUnavailable = errors.New("scan: metric unavailable")
)

// ConfigError is fatal: it aborts the run before any checkpoint write.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Msg)
}

// NewConfigError builds a ConfigError for a named configuration field.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err carries a fatal configuration fault.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
