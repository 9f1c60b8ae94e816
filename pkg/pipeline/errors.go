package pipeline

import (
	"errors"
	"fmt"
)

// Phase names the part of a stage that was running when it failed.
type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseExecute  Phase = "execute"
	PhaseFinalize Phase = "finalize"
	PhaseRoute    Phase = "route"
)

var (
	// ErrStagePanic wraps a value recovered from a panicking stage.
	ErrStagePanic = errors.New("stage panicked")
	// ErrVisitLimit is returned when a stage is entered more often than the
	// pipeline allows.
	ErrVisitLimit = errors.New("visit limit exceeded")
)

// StageError is an unclassified failure that aborted a run.
type StageError struct {
	Stage string
	Phase Phase
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q (%s): %v", e.Stage, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
