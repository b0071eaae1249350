package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned at invocation time when no API key was configured.
var ErrMissingCredential = errors.New("no API credential configured")

// GenerationError wraps any failure of a stage's generation step: provider,
// network, auth, tool or template errors.
type GenerationError struct {
	Stage Stage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// MissingFieldError reports that a backend answered without the expected output field.
type MissingFieldError struct {
	Stage Stage
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing output field %q", e.Stage, e.Field)
}
