package candidate_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
)

func TestProjectOutcome(t *testing.T) {
	t.Parallel()
	projects := []candidate.Project{
		{URL: "https://github.com/a/one", Outcome: &candidate.Success{}},
		{URL: "https://github.com/a/two", Outcome: &candidate.Failure{Kind: candidate.FailureNotFound, Message: "Repository not found."}},
		{URL: "https://github.com/a/three"},
	}

	tests := []struct {
		idx    int
		status string
	}{
		{0, "success"},
		{1, "failed"},
		{2, "pending"},
	}
	for _, tt := range tests {
		if got := projects[tt.idx].Status(); got != tt.status {
			t.Errorf("project %d status = %q, want %q", tt.idx, got, tt.status)
		}
	}

	if n := candidate.CountSuccessful(projects); n != 1 {
		t.Errorf("CountSuccessful = %d, want 1", n)
	}
	if f, ok := projects[1].Failed(); !ok || f.Kind != candidate.FailureNotFound {
		t.Errorf("Failed() = %v, %v", f, ok)
	}
}

func TestProjectMarshalJSON(t *testing.T) {
	t.Parallel()
	p := candidate.Project{
		URL:     "https://github.com/a/two",
		Outcome: &candidate.Failure{Kind: candidate.FailureTimeout, Message: "Request timed out."},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"status":"failed"`, `"kind":"timeout"`, `"url":"https://github.com/a/two"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("json %s missing %s", data, want)
		}
	}
}

func TestProjectClone(t *testing.T) {
	t.Parallel()
	orig := candidate.Project{
		URL: "https://github.com/a/one",
		Outcome: &candidate.Success{
			Metadata: candidate.Metadata{Topics: []string{"go"}},
			Scores:   candidate.Scores{candidate.ScoreTrust: 10},
		},
	}
	clones := candidate.CloneAll([]candidate.Project{orig})

	s, _ := clones[0].Succeeded()
	s.Scores[candidate.ScoreTrust] = 99
	s.Metadata.Topics[0] = "rust"
	s.Summary = "changed"

	o, _ := orig.Succeeded()
	if o.Scores[candidate.ScoreTrust] != 10 || o.Metadata.Topics[0] != "go" || o.Summary != "" {
		t.Errorf("clone shares state with original: %+v", o)
	}

	if candidate.CloneAll(nil) != nil {
		t.Error("CloneAll(nil) should be nil")
	}
}
