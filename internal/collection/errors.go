package collection

import (
	"errors"
	"fmt"
)

// ErrNoBinding is matched by every ConfigError.
var ErrNoBinding = errors.New("no binding configured for writes")

// ConfigError reports a write on a builder that has no write-capable
// binding. It is a wiring mistake, distinct from a backend failure.
type ConfigError struct {
	Collection string
	Op         string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("collection %s: %s: %s", e.Collection, e.Op, ErrNoBinding)
}

// Unwrap makes errors.Is(err, ErrNoBinding) hold.
func (e *ConfigError) Unwrap() error {
	return ErrNoBinding
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ErrNotRows is returned when a resolver settles with something other than
// a row list.
var ErrNotRows = errors.New("resolver did not produce rows")
