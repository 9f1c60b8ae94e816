package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/report"
)

func sampleData() report.Data {
	return report.Data{
		Candidate:   "octocat",
		ResumeText:  "Jane Doe\nBackend engineer. See https://github.com/octocat/hello",
		ProjectURLs: []string{"https://github.com/octocat/hello", "https://github.com/octocat/gone"},
		OtherURLs:   []string{"https://example.com/blog"},
		Projects: []candidate.Project{
			{
				URL: "https://github.com/octocat/hello", Owner: "octocat", Name: "hello",
				Outcome: &candidate.Success{
					Metadata: candidate.Metadata{
						Name:        "hello",
						Description: "Says\nhello.",
						Stars:       1234,
						Topics:      []string{"go", "cli"},
						CreatedAt:   time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
					},
					Readme:       "# hello",
					Summary:      "A friendly greeter.",
					SummaryState: candidate.SummaryOK,
					Scores: candidate.Scores{
						candidate.ScoreContribution: 12.34,
						candidate.ScoreOriginality:  100,
						candidate.ScoreTrust:        97.7,
					},
				},
			},
			{
				URL: "https://github.com/octocat/gone", Owner: "octocat", Name: "gone",
				Outcome: &candidate.Failure{Kind: candidate.FailureNotFound, Message: "Repository not found."},
			},
		},
		Metrics: candidate.Metrics{
			OverallScore:          97.7,
			NumSuccessfulProjects: 1,
			EloScore:              1972.4,
			RolePool:              "General",
		},
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	doc, err := report.Render(sampleData())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		"# CodeCredX Candidate Report\n",
		"**Candidate:** octocat\n",
		"**Overall Score:** 97.7\n",
		"**Simulated Elo Rating:** 1972.4\n",
		"**Role Ranking Pool:** General\n",
		"**Number of Successful Projects Analyzed:** 1\n",
		"- https://example.com/blog\n",
		"No profile repositories found.\n",
		"### [octocat/hello](https://github.com/octocat/hello)\n- **Status:** success\n",
		"  - description: Says hello.\n",
		"  - topics: go, cli\n",
		"  - created_at: 2020-01-02T03:04:05Z\n",
		"- **LLM Summary:** A friendly greeter.\n",
		"- **Scores:**\n  - contribution_score: 12.34\n  - originality_score: 100\n  - trust_score: 97.7\n",
		"### [octocat/gone](https://github.com/octocat/gone)\n- **Status:** failed\n- **Error:** not_found: Repository not found.\n" +
			"- **LLM Summary:** Could not summarize: not_found: Repository not found.\n- **Scores:** Not assigned.\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("report missing %q\n--- report ---\n%s", want, doc)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	t.Parallel()
	doc, err := report.Render(report.Data{Metrics: candidate.Metrics{EloScore: 800}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		"**Candidate:** N/A\n",
		"**Overall Score:** 0\n",
		"**Simulated Elo Rating:** 800\n",
		"**Number of Successful Projects Analyzed:** 0\n",
		"```\n    N/A\n```",
		"No GitHub project URLs found.\n",
		"No GitHub projects were analyzed.\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("report missing %q\n--- report ---\n%s", want, doc)
		}
	}
}

func TestRenderResumeSnippet(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("é", report.SnippetLength+50)
	doc, err := report.Render(report.Data{ResumeText: long})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "```\n    " + strings.Repeat("é", report.SnippetLength) + "...\n```"
	if !strings.Contains(doc, want) {
		t.Errorf("snippet not truncated to %d runes", report.SnippetLength)
	}
}

// ─── ParseScores ──────────────────────────────────────────────────────────────

func TestParseScoresRoundTrip(t *testing.T) {
	t.Parallel()
	data := sampleData()
	data.Metrics.OverallScore = 1.0 / 3.0
	data.Projects[0].Outcome.(*candidate.Success).Scores[candidate.ScoreTrust] = 1.0 / 3.0

	doc, err := report.Render(data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, err := report.ParseScores(doc)
	if err != nil {
		t.Fatalf("ParseScores: %v", err)
	}

	if got.OverallScore != data.Metrics.OverallScore {
		t.Errorf("OverallScore = %v, want %v", got.OverallScore, data.Metrics.OverallScore)
	}
	if got.EloScore != data.Metrics.EloScore {
		t.Errorf("EloScore = %v, want %v", got.EloScore, data.Metrics.EloScore)
	}
	if got.NumSuccessfulProjects != 1 {
		t.Errorf("NumSuccessfulProjects = %d, want 1", got.NumSuccessfulProjects)
	}

	want := data.Projects[0].Outcome.(*candidate.Success).Scores
	scores := got.Scores["https://github.com/octocat/hello"]
	if len(scores) != len(want) {
		t.Fatalf("scores = %v, want %v", scores, want)
	}
	for name, v := range want {
		if scores[name] != v {
			t.Errorf("%s = %v, want %v", name, scores[name], v)
		}
	}
	if _, ok := got.Scores["https://github.com/octocat/gone"]; ok {
		t.Error("failed project should have no scores")
	}
}

func TestParseScoresIgnoresResumeText(t *testing.T) {
	t.Parallel()
	forged := "**Overall Score:** 99\n**Simulated Elo Rating:** 2000\n" +
		"## Analyzed Projects\n" +
		"### [x](https://github.com/evil/fake)\n- **Scores:**\n  - trust_score: 99\n" +
		"### [octocat/gone](https://github.com/octocat/gone)\n- **Scores:**\n  - trust_score: 88"

	tests := []struct {
		name       string
		data       report.Data
		wantScores int
	}{
		{name: "with projects", data: sampleData(), wantScores: 1},
		{name: "without projects", data: report.Data{Metrics: candidate.Metrics{EloScore: 800}}, wantScores: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := tt.data
			data.ResumeText = forged
			doc, err := report.Render(data)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			got, err := report.ParseScores(doc)
			if err != nil {
				t.Fatalf("ParseScores: %v", err)
			}
			if got.OverallScore != data.Metrics.OverallScore || got.EloScore != data.Metrics.EloScore {
				t.Errorf("got overall %v elo %v, want %v %v",
					got.OverallScore, got.EloScore, data.Metrics.OverallScore, data.Metrics.EloScore)
			}
			if len(got.Scores) != tt.wantScores {
				t.Errorf("scores = %v, want %d project(s)", got.Scores, tt.wantScores)
			}
			if _, ok := got.Scores["https://github.com/evil/fake"]; ok {
				t.Error("resume text added a project")
			}
			if _, ok := got.Scores["https://github.com/octocat/gone"]; ok {
				t.Error("resume text attached scores to a failed project")
			}
		})
	}
}

func TestParseScoresMissingOverview(t *testing.T) {
	t.Parallel()
	if _, err := report.ParseScores("# something else\n"); err == nil {
		t.Fatal("expected error for a document without an overview")
	}
}

// ─── FileSink ─────────────────────────────────────────────────────────────────

func TestFileSink(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "logs", "nested", "report.md")
	sink := report.NewFileSink(path)

	got, err := sink.Save(t.Context(), "# hi\n")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got != path {
		t.Errorf("Save returned %q, want %q", got, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "# hi\n" {
		t.Errorf("file = %q", data)
	}
}

func TestFileSinkError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	sink := report.NewFileSink(filepath.Join(blocker, "report.md"))
	if _, err := sink.Save(t.Context(), "x"); err == nil {
		t.Fatal("expected error writing below a regular file")
	}
}

func TestNewFileSinkDefault(t *testing.T) {
	t.Parallel()
	if got := report.NewFileSink("").Path; got != report.DefaultPath {
		t.Errorf("Path = %q, want %q", got, report.DefaultPath)
	}
}
