package models

import "fmt"

// ValidationError rejects malformed input before any state is written.
// Field names match the JSON request body so callers can fix the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a request field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConfigError is raised at configuration-load time for bad engine parameters
// (weights, caps, thresholds). It is never raised mid-computation.
type ConfigError struct {
	Param  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid engine parameter %s: %s", e.Param, e.Reason)
}

// NewConfigError creates a configuration error for an engine parameter
func NewConfigError(param, reason string) *ConfigError {
	return &ConfigError{Param: param, Reason: reason}
}
