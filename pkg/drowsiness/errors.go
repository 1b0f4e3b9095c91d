package drowsiness

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for configurations that cannot be analyzed.
var ErrInvalidConfig = errors.New("drowsiness: invalid config")

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("drowsiness: invalid config %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
