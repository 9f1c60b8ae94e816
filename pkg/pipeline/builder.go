package pipeline

import (
	"fmt"

	"go.uber.org/zap"
)

// Builder assembles a Pipeline from nodes and labelled edges.
//
//	b := pipeline.NewBuilder()
//	b.Add(extract, score, report)
//	b.Chain("extract", "score", "report")
//	b.Connect("extract", "empty", "report")
//	b.Start("extract")
//	p, err := b.Build()
type Builder struct {
	nodes    map[string]*Node
	order    []string
	edges    []Edge
	start    string
	problems []LintError
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Node)}
}

// Add registers nodes. The first node added becomes the start stage unless
// Start is called.
func (b *Builder) Add(nodes ...*Node) *Builder {
	for _, n := range nodes {
		if n == nil {
			b.problems = append(b.problems, LintError{Message: "nil node"})
			continue
		}
		if _, dup := b.nodes[n.name]; dup {
			b.problems = append(b.problems, LintError{Stage: n.name, Message: "stage registered twice"})
			continue
		}
		b.nodes[n.name] = n
		b.order = append(b.order, n.name)
		if b.start == "" {
			b.start = n.name
		}
	}
	return b
}

// Connect adds the transition from --label--> to. An empty label means
// DefaultLabel.
func (b *Builder) Connect(from, label, to string) *Builder {
	if label == "" {
		label = DefaultLabel
	}
	b.edges = append(b.edges, Edge{From: from, Label: label, To: to})
	return b
}

// Chain connects each named stage to the next one on DefaultLabel.
func (b *Builder) Chain(names ...string) *Builder {
	for i := 1; i < len(names); i++ {
		b.Connect(names[i-1], DefaultLabel, names[i])
	}
	return b
}

// Start sets the stage a run begins with.
func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

// Build validates the wiring and returns an immutable Pipeline. All problems
// are reported together.
func (b *Builder) Build(opts ...Option) (*Pipeline, error) {
	if err := joinLint(b.validate()); err != nil {
		return nil, err
	}

	p := &Pipeline{
		nodes:     make(map[string]*Node, len(b.nodes)),
		order:     append([]string(nil), b.order...),
		edges:     append([]Edge(nil), b.edges...),
		next:      make(map[string]map[string]string),
		start:     b.start,
		maxVisits: defaultMaxVisits,
		logger:    zap.NewNop(),
	}
	for name, n := range b.nodes {
		p.nodes[name] = n
	}
	for _, e := range p.edges {
		if p.next[e.From] == nil {
			p.next[e.From] = make(map[string]string)
		}
		p.next[e.From][e.Label] = e.To
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.nodes) == 0 {
		return nil, fmt.Errorf("pipeline has no stages")
	}
	return p, nil
}
