package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Step records one completed stage visit.
type Step struct {
	Stage    string
	Label    string
	Duration time.Duration
}

// Trace is the ordered list of completed stage visits of one run.
type Trace []Step

// Last returns the most recent step, or false if nothing completed.
func (t Trace) Last() (Step, bool) {
	if len(t) == 0 {
		return Step{}, false
	}
	return t[len(t)-1], true
}

// Stages returns the visited stage names in order.
func (t Trace) Stages() []string {
	out := make([]string, len(t))
	for i, s := range t {
		out[i] = s.Stage
	}
	return out
}

// Run executes the pipeline against c starting at the start stage.
//
// It stops normally when a stage returns a label without an outgoing edge.
// Any prepare or execute error, a panic, a cancelled ctx or an exhausted visit
// budget stops the run with a *StageError. In every case c keeps whatever
// completed stages wrote, and the returned Trace lists those stages.
func (p *Pipeline) Run(ctx context.Context, c *Context) (Trace, error) {
	if c == nil {
		return nil, fmt.Errorf("pipeline context must not be nil")
	}

	var trace Trace
	visits := make(map[string]int)
	current := p.start

	for {
		// Respect cancellation between stages.
		if err := ctx.Err(); err != nil {
			return trace, &StageError{Stage: current, Phase: PhaseRoute, Err: err}
		}

		visits[current]++
		if visits[current] > p.maxVisits {
			return trace, &StageError{
				Stage: current,
				Phase: PhaseRoute,
				Err:   fmt.Errorf("%w: entered more than %d times", ErrVisitLimit, p.maxVisits),
			}
		}

		node := p.nodes[current]
		log := p.logger.With(zap.String("stage", current))
		log.Info("executing stage", zap.Int("visit", visits[current]))

		started := time.Now()
		label, err := node.visit(ctx, c)
		if err != nil {
			log.Error("stage failed", zap.Error(err))
			return trace, err
		}
		elapsed := time.Since(started)
		trace = append(trace, Step{Stage: current, Label: label, Duration: elapsed})

		next := p.Next(current, label)
		log.Debug("stage finished",
			zap.String("label", label),
			zap.String("next", next),
			zap.Duration("took", elapsed),
		)
		if next == "" {
			log.Info("pipeline ended", zap.String("label", label))
			return trace, nil
		}
		current = next
	}
}
