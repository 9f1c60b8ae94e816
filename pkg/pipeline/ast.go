package pipeline

import (
	"go.uber.org/zap"
)

const defaultMaxVisits = 50

// Edge is a labelled transition between two stages.
type Edge struct {
	From  string
	Label string
	To    string
}

// Pipeline is an immutable stage graph produced by a Builder.
type Pipeline struct {
	nodes     map[string]*Node
	order     []string
	edges     []Edge
	next      map[string]map[string]string
	start     string
	maxVisits int
	logger    *zap.Logger
}

// Option configures a Pipeline at build time.
type Option func(*Pipeline)

// WithMaxVisits caps how often a single stage may be entered in one run.
func WithMaxVisits(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxVisits = n
		}
	}
}

// WithLogger sets the logger used by Run.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// StartName returns the name of the first stage.
func (p *Pipeline) StartName() string { return p.start }

// Edges returns all transitions in the order they were connected.
func (p *Pipeline) Edges() []Edge {
	return append([]Edge(nil), p.edges...)
}

// OutgoingEdges returns the transitions leaving name, in connection order.
func (p *Pipeline) OutgoingEdges(name string) []Edge {
	var out []Edge
	for _, e := range p.edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return out
}

// Next returns the stage that follows name on label, or "" when the label has
// no edge.
func (p *Pipeline) Next(name, label string) string {
	return p.next[name][label]
}
