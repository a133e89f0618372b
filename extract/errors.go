package extract

import (
	"errors"
	"fmt"
)

// Input errors.
var (
	// ErrEmptyPrompt is returned when the request carries no prompt text.
	ErrEmptyPrompt = errors.New("prompt must not be empty")

	// ErrModelRequired is returned when the request names no model.
	ErrModelRequired = errors.New("model is required")

	// ErrSchemaRequired is returned when the request carries no schema.
	ErrSchemaRequired = errors.New("schema is required")
)

// ConfigurationError reports missing or invalid connection settings.
// It is returned before any request is sent.
type ConfigurationError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// TransportError reports that the generation service could not be reached
// or answered with a non-success status.
type TransportError struct {
	Provider   string
	StatusCode int // zero when no HTTP response was received
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// SchemaValidationError reports that no attempt produced output conforming
// to the schema. Raw and Reason describe the last attempt.
type SchemaValidationError struct {
	Schema   string
	Attempts int
	Raw      string
	Reason   error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("output does not conform to schema %s after %d attempt(s): %v",
		e.Schema, e.Attempts, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error {
	return e.Reason
}
