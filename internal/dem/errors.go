package dem

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errors.New("dem: invalid configuration")

	// ErrInvalidParticle indicates a particle that cannot take part in a step.
	ErrInvalidParticle = errors.New("dem: invalid particle")

	// ErrNoDevice indicates no compute device matched the request.
	ErrNoDevice = errors.New("dem: no compute device")

	// ErrDeviceUnavailable indicates the device exists but cannot be used here.
	ErrDeviceUnavailable = errors.New("dem: compute device unavailable")
)

// StepError wraps a failure with the step it happened at.
type StepError struct {
	Step    int64
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
