package viability

import (
	"errors"
	"fmt"
)

// Error taxonomy. Everything below the dispatcher recovers locally and
// returns typed placeholders; only FusionError and ConfigurationError are
// allowed to reach the caller.

// RetrievalError marks a web-search failure. Always recovered by
// substituting an empty source list and placeholder text.
type RetrievalError struct {
	Source SourceID
	Err    error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval %s: %v", e.Source, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError marks a text-generation failure or non-conforming output.
// Recovered in the extraction stage via a deterministic fallback object.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation %s: %v", e.Stage, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// FusionError marks failure of the combining generation call. It represents
// loss of the entire terminal artifact and is surfaced to the caller.
type FusionError struct {
	Err error
}

func (e *FusionError) Error() string { return fmt.Sprintf("fusion: %v", e.Err) }
func (e *FusionError) Unwrap() error { return e.Err }

// ConfigurationError marks missing capability credentials or wiring. Raised
// before any branch is dispatched.
type ConfigurationError struct {
	Missing string
}

func (e *ConfigurationError) Error() string { return fmt.Sprintf("configuration: %s", e.Missing) }

func IsFusionError(err error) bool {
	var fe *FusionError
	return errors.As(err, &fe)
}

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
