// Package candidate holds the records a candidate evaluation produces: one
// Project per analyzed repository, the aggregate Metrics and the final
// RunRecord.
package candidate

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"
)

// FailureKind classifies why a project could not be analyzed.
type FailureKind string

const (
	FailureNotFound    FailureKind = "not_found"
	FailureForbidden   FailureKind = "forbidden"
	FailureTimeout     FailureKind = "timeout"
	FailureMalformed   FailureKind = "malformed"
	FailureNetwork     FailureKind = "network"
	FailureRateLimited FailureKind = "rate_limited"
	FailureHTTP        FailureKind = "http_error"
	FailureInvalidURL  FailureKind = "invalid_url"
	FailureUnsupported FailureKind = "unsupported_format"
	FailureUnreadable  FailureKind = "unreadable"
)

// Project is the per-repository record carried through the pipeline.
type Project struct {
	URL     string  `json:"url"`
	Owner   string  `json:"owner"`
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
}

// Outcome is either *Success or *Failure.
type Outcome interface {
	outcome()
}

// Success holds everything gathered for a repository that was fetched.
type Success struct {
	Metadata     Metadata     `json:"metadata"`
	Readme       string       `json:"readme,omitempty"`
	ReadmeIssue  string       `json:"readme_issue,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	SummaryState SummaryState `json:"summary_state,omitempty"`
	Scores       Scores       `json:"scores,omitempty"`
}

// Failure records a classified, per-item failure.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (*Success) outcome() {}
func (*Failure) outcome() {}

// Error implements error so a Failure can be logged with zap.Error.
func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Message }

// Succeeded returns the Success outcome of p, if any.
func (p Project) Succeeded() (*Success, bool) {
	s, ok := p.Outcome.(*Success)
	return s, ok && s != nil
}

// Failed returns the Failure outcome of p, if any.
func (p Project) Failed() (*Failure, bool) {
	f, ok := p.Outcome.(*Failure)
	return f, ok && f != nil
}

// Status is "success", "failed" or "pending" for a project with no outcome.
func (p Project) Status() string {
	switch p.Outcome.(type) {
	case *Success:
		return "success"
	case *Failure:
		return "failed"
	default:
		return "pending"
	}
}

// MarshalJSON adds the status so dumps can tell the outcome variants apart.
func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
	}{plain(p), p.Status()})
}

// Clone returns a copy of p that shares nothing mutable with it.
func (p Project) Clone() Project {
	switch o := p.Outcome.(type) {
	case *Success:
		if o != nil {
			c := *o
			c.Metadata.Topics = append([]string(nil), o.Metadata.Topics...)
			c.Scores = maps.Clone(o.Scores)
			p.Outcome = &c
		}
	case *Failure:
		if o != nil {
			c := *o
			p.Outcome = &c
		}
	}
	return p
}

// CloneAll clones every project in ps.
func CloneAll(ps []Project) []Project {
	if ps == nil {
		return nil
	}
	out := make([]Project, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

// Metadata is the repository information the scorers look at.
type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Stars       int       `json:"stars"`
	Fork        bool      `json:"fork"`
	Topics      []string  `json:"topics,omitempty"`
	Visibility  string    `json:"visibility,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	SizeKB      int       `json:"size_kb"`
}

// SummaryState says how a project's summary was produced.
type SummaryState string

const (
	SummaryPending   SummaryState = ""
	SummaryOK        SummaryState = "ok"
	SummaryNoContent SummaryState = "no_content"
	SummaryError     SummaryState = "error"
)

// ScoreName identifies one heuristic score.
type ScoreName string

const (
	ScoreContribution ScoreName = "contribution_score"
	ScoreOriginality  ScoreName = "originality_score"
	ScoreTrust        ScoreName = "trust_score"
)

// ScoreOrder is the order scores are reported in.
var ScoreOrder = []ScoreName{ScoreContribution, ScoreOriginality, ScoreTrust}

// Scores maps score names to values. A missing name means the score was not
// computed.
type Scores map[ScoreName]float64

// Get returns the named score and whether it was computed.
func (s Scores) Get(name ScoreName) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Metrics is the candidate-level aggregate.
type Metrics struct {
	OverallScore          float64 `json:"overall_score"`
	NumSuccessfulProjects int     `json:"num_successful_projects"`
	EloScore              float64 `json:"elo_score,omitempty"`
	RolePool              string  `json:"role_ranking_pool,omitempty"`
}

// RunRecord is the persisted result of one evaluation.
type RunRecord struct {
	ID           uuid.UUID `json:"id"`
	Candidate    string    `json:"candidate"`
	OverallScore float64   `json:"overall_score"`
	EloScore     float64   `json:"elo_score"`
	Report       string    `json:"report"`
	CreatedAt    time.Time `json:"created_at"`
	Failed       bool      `json:"failed,omitempty"`
	Failure      string    `json:"failure,omitempty"`
}

// CountSuccessful returns how many projects succeeded.
func CountSuccessful(projects []Project) int {
	n := 0
	for _, p := range projects {
		if _, ok := p.Succeeded(); ok {
			n++
		}
	}
	return n
}
