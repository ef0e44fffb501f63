package processor

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a run starts while another is active.
var ErrRunInProgress = errors.New("a processing run is already in progress")

// PhaseError reports the phase in which a run failed.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("processing failed during %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
