package pipeline

import (
	"fmt"
	"strings"
)

// walkOrder returns stage names in BFS order from the start stage, followed
// by any stages that were added but never reached.
func (p *Pipeline) walkOrder() []string {
	visited := map[string]bool{}
	var order []string
	queue := []string{p.start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		order = append(order, cur)
		for _, e := range p.OutgoingEdges(cur) {
			if !visited[e.To] {
				queue = append(queue, e.To)
			}
		}
	}
	for _, name := range p.order {
		if !visited[name] {
			order = append(order, name)
		}
	}
	return order
}

// Text renders a human-readable summary of the stage graph.
func (p *Pipeline) Text(name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pipeline: %s  (%d stages, %d edges)\n", name, len(p.nodes), len(p.edges))

	maxLen := 5
	for _, n := range p.order {
		maxLen = max(maxLen, len(n))
	}

	fmt.Fprintf(&sb, "\nStages:\n")
	for _, n := range p.walkOrder() {
		var reads, writes []string
		for _, k := range p.nodes[n].Keys() {
			if k.Access == AccessWrite {
				writes = append(writes, k.Name)
			} else {
				reads = append(reads, k.Name)
			}
		}
		marker := " "
		if n == p.start {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %-*s", marker, maxLen, n)
		if len(reads) > 0 {
			fmt.Fprintf(&sb, "  reads=%s", strings.Join(reads, ","))
		}
		if len(writes) > 0 {
			fmt.Fprintf(&sb, "  writes=%s", strings.Join(writes, ","))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	for _, e := range p.edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s  [%s]\n", maxLen, e.From, e.To, e.Label)
	}
	return sb.String()
}

// DOT renders the stage graph as a digraph that FromDOT accepts.
func (p *Pipeline) DOT(name string) string {
	if name == "" {
		name = "pipeline"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(name))
	for _, n := range p.walkOrder() {
		if n == p.start {
			fmt.Fprintf(&sb, "    %s [start=true]\n", dotQuote(n))
			continue
		}
		fmt.Fprintf(&sb, "    %s\n", dotQuote(n))
	}
	for _, e := range p.edges {
		if e.Label == DefaultLabel {
			fmt.Fprintf(&sb, "    %s -> %s\n", dotQuote(e.From), dotQuote(e.To))
			continue
		}
		fmt.Fprintf(&sb, "    %s -> %s [label=%s]\n", dotQuote(e.From), dotQuote(e.To), dotQuote(e.Label))
	}
	sb.WriteString("}\n")
	return sb.String()
}

// dotQuote returns the value as a DOT-safe string, quoting if necessary.
func dotQuote(s string) string {
	needsQuote := s == "" ||
		strings.ContainsAny(s, " \t\n\\\"{}[]<>=;,-.")
	if needsQuote {
		escaped := strings.ReplaceAll(s, `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		return `"` + escaped + `"`
	}
	return s
}
