package pipeline

import (
	"context"
	"fmt"
)

// DefaultLabel is the transition label every stage may return. An empty label
// from Finalize is treated as DefaultLabel.
const DefaultLabel = "default"

// Stage is one unit of work in a pipeline.
//
// Prepare reads what the stage needs from the Context and must not mutate it.
// Execute does the work, possibly against external services, and never sees
// the Context; per-item failures that are expected belong in R, anything else
// is returned as an error and aborts the run. Finalize writes R back into the
// Context and picks the transition label. If Finalize panics none of its
// writes are kept.
type Stage[P, R any] interface {
	Prepare(c *Context) (P, error)
	Execute(ctx context.Context, in P) (R, error)
	Finalize(c *Context, in P, out R) string
}

// Node is a named, type-erased Stage ready to be wired into a pipeline.
type Node struct {
	name  string
	keys  []KeySpec
	visit func(ctx context.Context, c *Context) (string, error)
}

// NewNode wraps stage under name. If the stage implements KeyDeclarer its
// declarations are recorded for build-time checking.
func NewNode[P, R any](name string, stage Stage[P, R]) *Node {
	n := &Node{name: name}
	if d, ok := any(stage).(KeyDeclarer); ok {
		n.keys = d.Keys()
	}
	n.visit = func(ctx context.Context, c *Context) (string, error) {
		var in P
		if err := guard(name, PhasePrepare, func() (err error) {
			in, err = stage.Prepare(c)
			return err
		}); err != nil {
			return "", err
		}

		var out R
		if err := guard(name, PhaseExecute, func() (err error) {
			out, err = stage.Execute(ctx, in)
			return err
		}); err != nil {
			return "", err
		}

		// Finalize writes to a copy that replaces c only once it returns.
		staged := c.clone()
		var label string
		if err := guard(name, PhaseFinalize, func() error {
			label = stage.Finalize(staged, in, out)
			return nil
		}); err != nil {
			return "", err
		}
		c.data = staged.data
		if label == "" {
			label = DefaultLabel
		}
		return label, nil
	}
	return n
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Keys returns the context keys the wrapped stage declared.
func (n *Node) Keys() []KeySpec { return n.keys }

// guard runs fn, converting both returned errors and panics into a
// *StageError for the given phase.
func guard(stage string, phase Phase, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{
				Stage: stage,
				Phase: phase,
				Err:   fmt.Errorf("%w: %v", ErrStagePanic, r),
			}
		}
	}()
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Phase: phase, Err: err}
	}
	return nil
}
