package orders

import "errors"

var ErrInvalidConfiguration = errors.New("order: invalid configuration")

// ConfigError names the order field that failed validation
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return ErrInvalidConfiguration.Error() + ": " + e.Field + " " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfiguration }
