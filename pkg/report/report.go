// Package report renders a candidate evaluation as Markdown and reads the
// numbers back out of a rendered document.
package report

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
)

// SnippetLength is how much of the resume the overview quotes.
const SnippetLength = 200

const (
	snippetIndent   = "    "
	projectsHeading = "## Analyzed Projects"
)

// Data is everything a report shows.
type Data struct {
	Candidate   string
	ResumeText  string
	ProjectURLs []string
	ProfileURLs []string
	OtherURLs   []string
	Projects    []candidate.Project
	Metrics     candidate.Metrics
}

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"num":     formatNum,
	"snippet": snippet,
	"line":    oneLine,
	"date":    formatDate,
	"join":    strings.Join,
}).Parse(`# CodeCredX Candidate Report

---

## Candidate Overview

**Candidate:** {{.Candidate}}
**Overall Score:** {{num .Metrics.OverallScore}}
**Simulated Elo Rating:** {{num .Metrics.EloScore}}
**Role Ranking Pool:** {{with .Metrics.RolePool}}{{.}}{{else}}N/A{{end}}
**Number of Successful Projects Analyzed:** {{.Metrics.NumSuccessfulProjects}}
**Resume Snippet:**
` + "```" + `
{{snippet .ResumeText}}
` + "```" + `

## Extracted URLs

### GitHub Project URLs:
{{range .ProjectURLs}}- {{.}}
{{else}}No GitHub project URLs found.
{{end}}
### Profile Repositories:
{{range .ProfileURLs}}- {{.}}
{{else}}No profile repositories found.
{{end}}
### Other URLs:
{{range .OtherURLs}}- {{.}}
{{else}}No other URLs found in resume.
{{end}}
## Analyzed Projects
{{range .Projects}}
### [{{.Title}}]({{.URL}})
- **Status:** {{.Status}}
{{- with .Error}}
- **Error:** {{line .}}
- **LLM Summary:** Could not summarize: {{line .}}
{{- end}}
{{- with .Success}}
- **Metadata:**
  - name: {{.Metadata.Name}}
  - description: {{with .Metadata.Description}}{{line .}}{{else}}N/A{{end}}
  - stars: {{.Metadata.Stars}}
  - fork: {{.Metadata.Fork}}
{{- with .Metadata.Topics}}
  - topics: {{join . ", "}}
{{- end}}
{{- with .Metadata.Visibility}}
  - visibility: {{.}}
{{- end}}
  - created_at: {{date .Metadata.CreatedAt}}
  - pushed_at: {{date .Metadata.PushedAt}}
{{- with .ReadmeIssue}}
- **README:** {{line .}}
{{- end}}
- **LLM Summary:** {{with .Summary}}{{line .}}{{else}}Not available.{{end}}
{{- end}}
{{- with .Scores}}
- **Scores:**
{{- range .}}
  - {{.Name}}: {{num .Value}}
{{- end}}
{{- else}}
- **Scores:** Not assigned.
{{- end}}
{{else}}
No GitHub projects were analyzed.
{{end}}`))

type view struct {
	Data
	Projects []projectView
}

type projectView struct {
	Title   string
	URL     string
	Status  string
	Error   string
	Success *candidate.Success
	Scores  []namedScore
}

// Render returns the Markdown report for d.
func Render(d Data) (string, error) {
	if d.Candidate == "" {
		d.Candidate = "N/A"
	}
	v := view{Data: d, Projects: make([]projectView, 0, len(d.Projects))}
	for _, p := range d.Projects {
		pv := projectView{Title: p.URL, URL: p.URL, Status: p.Status()}
		if p.Owner != "" && p.Name != "" {
			pv.Title = p.Owner + "/" + p.Name
		}
		if f, ok := p.Failed(); ok {
			pv.Error = f.Error()
		}
		if s, ok := p.Succeeded(); ok {
			pv.Success = s
			pv.Scores = orderedScores(s.Scores)
		}
		v.Projects = append(v.Projects, pv)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, v); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return sb.String(), nil
}

type namedScore struct {
	Name  candidate.ScoreName
	Value float64
}

func orderedScores(s candidate.Scores) []namedScore {
	var out []namedScore
	for _, name := range candidate.ScoreOrder {
		if v, ok := s.Get(name); ok {
			out = append(out, namedScore{name, v})
		}
	}
	return out
}

// formatNum prints the shortest representation that parses back to v.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(time.RFC3339)
}

// snippet quotes the start of the resume. Every line is indented so that
// nothing the candidate wrote can pass for a report line.
func snippet(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return snippetIndent + "N/A"
	}
	if runes := []rune(s); len(runes) > SnippetLength {
		s = string(runes[:SnippetLength]) + "..."
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = snippetIndent + strings.TrimRight(l, "\r")
	}
	return strings.Join(lines, "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ─── re-extraction ────────────────────────────────────────────────────────────

// Extracted holds the numbers found in a rendered report.
type Extracted struct {
	OverallScore          float64
	EloScore              float64
	NumSuccessfulProjects int
	// Scores maps project URL to the scores listed for it.
	Scores map[string]candidate.Scores
}

var (
	overallRe = regexp.MustCompile(`^\*\*Overall Score:\*\* (\S+)$`)
	eloRe     = regexp.MustCompile(`^\*\*Simulated Elo Rating:\*\* (\S+)$`)
	countRe   = regexp.MustCompile(`^\*\*Number of Successful Projects Analyzed:\*\* (\d+)$`)
	projectRe = regexp.MustCompile(`^### \[.*\]\((\S+)\)$`)
	scoreRe   = regexp.MustCompile(`^  - ([a-z_]+): (\S+)$`)
)

// ParseScores reads the overview numbers and per-project scores back out of
// a report produced by Render. Project blocks count only below the projects
// heading.
func ParseScores(doc string) (Extracted, error) {
	out := Extracted{Scores: map[string]candidate.Scores{}}
	var (
		current  string
		inScores bool
		overview = true
		projects bool
		found    int
	)

	sc := bufio.NewScanner(strings.NewReader(doc))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		var err error
		switch {
		case line == "**Resume Snippet:**":
			overview = false
		case overview && overallRe.MatchString(line):
			out.OverallScore, err = strconv.ParseFloat(overallRe.FindStringSubmatch(line)[1], 64)
			found++
		case overview && eloRe.MatchString(line):
			out.EloScore, err = strconv.ParseFloat(eloRe.FindStringSubmatch(line)[1], 64)
			found++
		case overview && countRe.MatchString(line):
			out.NumSuccessfulProjects, err = strconv.Atoi(countRe.FindStringSubmatch(line)[1])
			found++
		case !overview && line == projectsHeading:
			projects = true
		case projects && projectRe.MatchString(line):
			current, inScores = projectRe.FindStringSubmatch(line)[1], false
		case line == "- **Scores:**":
			inScores = current != ""
		case inScores && scoreRe.MatchString(line):
			m := scoreRe.FindStringSubmatch(line)
			var v float64
			v, err = strconv.ParseFloat(m[2], 64)
			if err == nil {
				if out.Scores[current] == nil {
					out.Scores[current] = candidate.Scores{}
				}
				out.Scores[current][candidate.ScoreName(m[1])] = v
			}
		default:
			inScores = false
		}
		if err != nil {
			return Extracted{}, fmt.Errorf("report line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return Extracted{}, err
	}
	if found < 3 {
		return Extracted{}, fmt.Errorf("report is missing the candidate overview")
	}
	return out, nil
}
