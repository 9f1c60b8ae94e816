package pipeline

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// LintError describes a structural problem in a pipeline wiring.
type LintError struct {
	Stage   string
	Message string
}

func (e LintError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("stage %q: %s", e.Stage, e.Message)
	}
	return e.Message
}

// validate checks the builder state and returns every problem found.
func (b *Builder) validate() []LintError {
	errs := append([]LintError(nil), b.problems...)

	switch {
	case b.start == "":
		errs = append(errs, LintError{Message: "pipeline has no start stage"})
	case b.nodes[b.start] == nil:
		errs = append(errs, LintError{Message: fmt.Sprintf("start stage %q is not registered", b.start)})
	}

	seen := make(map[[2]string]string)
	for _, e := range b.edges {
		if b.nodes[e.From] == nil {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge references unknown source stage %q", e.From)})
		}
		if b.nodes[e.To] == nil {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge references unknown target stage %q", e.To)})
		}
		k := [2]string{e.From, e.Label}
		if prev, dup := seen[k]; dup {
			errs = append(errs, LintError{
				Stage:   e.From,
				Message: fmt.Sprintf("label %q already leads to %q, cannot also lead to %q", e.Label, prev, e.To),
			})
			continue
		}
		seen[k] = e.To
	}

	if b.nodes[b.start] != nil {
		reachable := reachableFrom(b.edges, b.start)
		for _, name := range b.order {
			if !reachable[name] {
				errs = append(errs, LintError{Stage: name, Message: "stage is not reachable from start"})
			}
		}
	}

	errs = append(errs, b.checkKeys()...)
	return errs
}

// checkKeys reports keys that two stages declare with different types.
func (b *Builder) checkKeys() []LintError {
	type owner struct {
		stage string
		typ   reflect.Type
	}
	first := make(map[string]owner)
	var errs []LintError
	for _, name := range b.order {
		for _, k := range b.nodes[name].Keys() {
			prev, ok := first[k.Name]
			if !ok {
				first[k.Name] = owner{stage: name, typ: k.Type}
				continue
			}
			if prev.typ != k.Type {
				errs = append(errs, LintError{
					Stage: name,
					Message: fmt.Sprintf("key %q is %v here but %v in stage %q",
						k.Name, k.Type, prev.typ, prev.stage),
				})
			}
		}
	}
	return errs
}

// joinLint returns nil for no errors or a combined error listing all of them.
func joinLint(errs []LintError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	slices.Sort(msgs)
	return fmt.Errorf("pipeline validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// reachableFrom returns the set of stages reachable from start via edges.
func reachableFrom(edges []Edge, start string) map[string]bool {
	visited := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range edges {
			if e.From == cur {
				queue = append(queue, e.To)
			}
		}
	}
	return visited
}
