package config

import (
	"errors"
	"fmt"
)

// ErrConfig matches any ConfigError via errors.Is.
var ErrConfig = errors.New("invalid configuration")

// ConfigError reports a configuration value rejected before any processing starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func invalid(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CheckChannelCounts fails when two streams declare different channel counts.
func CheckChannelCounts(calibration, input int) error {
	if calibration != input {
		return invalid("channels", "calibration stream has %d channels, input stream has %d", calibration, input)
	}
	return nil
}

// PositiveInt is the shared guard for counts and limits.
func PositiveInt(field string, v int) error {
	if v <= 0 {
		return invalid(field, "must be > 0, got %d", v)
	}
	return nil
}
