package pipeline

import (
	"fmt"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

// FromDOT builds a Builder whose wiring comes from a Graphviz digraph.
//
// Every vertex must name one of nodes. A vertex with start=true becomes the
// start stage; otherwise the first vertex in the file does. An edge label is
// the transition label, and an unlabelled edge is DefaultLabel.
//
//	digraph review {
//	    extract [start=true]
//	    extract -> score
//	    extract -> report [label=empty]
//	    score -> report
//	}
func FromDOT(src string, nodes ...*Node) (*Builder, error) {
	graphAst, err := gographviz.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("dot parse error: %w", err)
	}

	// Permissive collector: gographviz.Graph rejects attribute names it does
	// not know.
	collector := newDOTCollector()
	if err := gographviz.Analyse(graphAst, collector); err != nil {
		return nil, fmt.Errorf("dot analyse error: %w", err)
	}

	known := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		known[n.Name()] = n
	}

	b := NewBuilder()
	var missing []string
	for _, name := range collector.order {
		n, ok := known[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		b.Add(n)
		if collector.nodes[name]["start"] == "true" {
			b.Start(name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("dot graph %q references unknown stages: %s",
			collector.name, strings.Join(missing, ", "))
	}

	for _, e := range collector.edges {
		b.Connect(e.from, e.label, e.to)
	}
	return b, nil
}

// ─── permissive DOT collector ─────────────────────────────────────────────────

type rawEdge struct {
	from, to string
	label    string
}

// dotCollector implements gographviz.Interface without attribute validation.
type dotCollector struct {
	name  string
	nodes map[string]map[string]string
	order []string
	edges []rawEdge
}

func newDOTCollector() *dotCollector {
	return &dotCollector{nodes: make(map[string]map[string]string)}
}

func (c *dotCollector) SetStrict(_ bool) error { return nil }
func (c *dotCollector) SetDir(_ bool) error    { return nil }
func (c *dotCollector) SetName(n string) error { c.name = unquote(n); return nil }
func (c *dotCollector) String() string         { return c.name }

func (c *dotCollector) AddNode(_ string, name string, attrs map[string]string) error {
	id := unquote(name)
	if _, ok := c.nodes[id]; !ok {
		c.nodes[id] = make(map[string]string)
		c.order = append(c.order, id)
	}
	for k, v := range attrs {
		c.nodes[id][k] = unquote(v)
	}
	return nil
}

func (c *dotCollector) AddEdge(src, dst string, _ bool, attrs map[string]string) error {
	from, to := unquote(src), unquote(dst)
	// Edges may mention vertices that were never declared on their own.
	for _, id := range []string{from, to} {
		if _, ok := c.nodes[id]; !ok {
			c.nodes[id] = make(map[string]string)
			c.order = append(c.order, id)
		}
	}
	c.edges = append(c.edges, rawEdge{from: from, to: to, label: unquote(attrs["label"])})
	return nil
}

func (c *dotCollector) AddPortEdge(src, _, dst, _ string, directed bool, attrs map[string]string) error {
	return c.AddEdge(src, dst, directed, attrs)
}

func (c *dotCollector) AddAttr(_ string, _, _ string) error { return nil }

func (c *dotCollector) AddSubGraph(_, _ string, _ map[string]string) error { return nil }

// unquote strips surrounding double-quotes from a DOT attribute value.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
