// Package runner wires the evaluation stages into a pipeline and runs it for
// one candidate.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
	"github.com/ravi-parthasarathy/codecredx/pkg/report"
	"github.com/ravi-parthasarathy/codecredx/pkg/scoring"
	"github.com/ravi-parthasarathy/codecredx/pkg/stages"
)

// NoReport is the record's report when the run never rendered one.
const NoReport = "Report could not be generated."

// DefaultDOT is the stock wiring in Graphviz form. It is what New builds when
// Options.GraphDOT is empty.
const DefaultDOT = `digraph codecredx {
    resume_input [start=true]
    resume_input -> url_extraction
    url_extraction -> profile_repos
    profile_repos -> url_consolidation
    url_consolidation -> github_analyzer
    url_consolidation -> aggregation [label=no_projects]
    github_analyzer -> llm_summarizer
    llm_summarizer -> contribution
    contribution -> originality
    originality -> trust
    trust -> aggregation
    aggregation -> elo_ranking
    elo_ranking -> report_generation
}
`

// Deps are the collaborators the stages talk to. Any of them may be nil; a
// stage that needs a missing collaborator records a failure or aborts as
// described on the stage.
type Deps struct {
	Repositories stages.RepositorySource
	Profiles     stages.ProfileSource
	Generator    llm.TextGenerator
	Sink         report.Sink
	Logger       *zap.Logger
}

// Options tune the run.
type Options struct {
	Scoring scoring.Config
	// Random overrides the source of fork originality draws.
	Random         scoring.IntSource
	Concurrency    int
	MaxPromptChars int
	SkipForks      bool
	MaxVisits      int
	// GraphDOT replaces the default wiring. It may only name the stock stages.
	GraphDOT string
}

// Runner runs the evaluation pipeline.
type Runner struct {
	pipeline    *pipeline.Pipeline
	logger      *zap.Logger
	baselineElo float64
	now         func() time.Time
}

// Nodes returns every stock stage wrapped for the pipeline.
func Nodes(d Deps, o Options) []*pipeline.Node {
	sc := scoring.New(o.Scoring, o.Random)
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	named := func(name string) *zap.Logger { return log.Named(name) }

	return []*pipeline.Node{
		stages.NewResumeInput(named(stages.NameResumeInput)).Node(),
		stages.NewURLExtraction(named(stages.NameURLExtraction)).Node(),
		stages.NewProfileRepos(d.Profiles, o.SkipForks, named(stages.NameProfileRepos)).Node(),
		stages.NewURLConsolidation(named(stages.NameURLConsolidation)).Node(),
		stages.NewGitHubAnalyzer(d.Repositories, o.Concurrency, named(stages.NameGitHubAnalyzer)).Node(),
		stages.NewLLMSummarizer(d.Generator, o.MaxPromptChars, named(stages.NameLLMSummarizer)).Node(),
		stages.NewContribution(sc, named(stages.NameContribution)).Node(),
		stages.NewOriginality(sc, named(stages.NameOriginality)).Node(),
		stages.NewTrust(sc, named(stages.NameTrust)).Node(),
		stages.NewAggregation(named(stages.NameAggregation)).Node(),
		stages.NewEloRanking(sc, named(stages.NameEloRanking)).Node(),
		stages.NewReportGeneration(d.Sink, named(stages.NameReportGeneration)).Node(),
	}
}

// DefaultGraph wires nodes in the stock order.
func DefaultGraph(nodes []*pipeline.Node) *pipeline.Builder {
	return pipeline.NewBuilder().
		Add(nodes...).
		Start(stages.NameResumeInput).
		Chain(
			stages.NameResumeInput,
			stages.NameURLExtraction,
			stages.NameProfileRepos,
			stages.NameURLConsolidation,
			stages.NameGitHubAnalyzer,
			stages.NameLLMSummarizer,
			stages.NameContribution,
			stages.NameOriginality,
			stages.NameTrust,
			stages.NameAggregation,
			stages.NameEloRanking,
			stages.NameReportGeneration,
		).
		Connect(stages.NameURLConsolidation, stages.LabelNoProjects, stages.NameAggregation)
}

// New builds a Runner. It fails when the wiring does not validate.
func New(d Deps, o Options) (*Runner, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if o.Scoring == (scoring.Config{}) {
		o.Scoring = scoring.DefaultConfig()
	}
	nodes := Nodes(d, o)

	b := DefaultGraph(nodes)
	if o.GraphDOT != "" {
		var err error
		if b, err = pipeline.FromDOT(o.GraphDOT, nodes...); err != nil {
			return nil, fmt.Errorf("load pipeline graph: %w", err)
		}
	}

	opts := []pipeline.Option{pipeline.WithLogger(d.Logger)}
	if o.MaxVisits > 0 {
		opts = append(opts, pipeline.WithMaxVisits(o.MaxVisits))
	}
	p, err := b.Build(opts...)
	if err != nil {
		return nil, err
	}
	return &Runner{
		pipeline:    p,
		logger:      d.Logger,
		baselineElo: o.Scoring.EloMin,
		now:         time.Now,
	}, nil
}

// Pipeline returns the wired pipeline.
func (r *Runner) Pipeline() *pipeline.Pipeline { return r.pipeline }

// Input seeds a run. ResumeText is used when ResumePath is empty.
type Input struct {
	ResumePath string
	ResumeText string
	ProfileURL string
}

// Result is the outcome of one run. Context and Record are always set; Err
// is the *pipeline.StageError that stopped the run early, if any.
type Result struct {
	ID      uuid.UUID
	Context *pipeline.Context
	Trace   pipeline.Trace
	Record  candidate.RunRecord
	Err     error
}

// Run evaluates one candidate.
func (r *Runner) Run(ctx context.Context, in Input) *Result {
	id := uuid.New()
	log := r.logger.With(zap.String("run_id", id.String()))

	c := pipeline.NewContext()
	if in.ResumePath != "" {
		stages.ResumeFilePath.Set(c, in.ResumePath)
	}
	if in.ResumeText != "" {
		stages.ResumeText.Set(c, in.ResumeText)
	}
	if in.ProfileURL != "" {
		stages.GitHubProfileURL.Set(c, in.ProfileURL)
	}

	log.Info("starting evaluation",
		zap.String("resume", in.ResumePath),
		zap.String("profile", in.ProfileURL),
	)
	trace, err := r.pipeline.Run(ctx, c)

	res := &Result{
		ID:      id,
		Context: c,
		Trace:   trace,
		Record:  r.record(id, c, in.ProfileURL),
		Err:     err,
	}
	if err != nil {
		res.Record.Failed = true
		res.Record.Failure = err.Error()
		log.Error("evaluation aborted", zap.Error(err), zap.Strings("completed", trace.Stages()))
		return res
	}
	log.Info("evaluation finished",
		zap.Float64("overall_score", res.Record.OverallScore),
		zap.Float64("elo_score", res.Record.EloScore),
	)
	return res
}

// record reads the run's summary out of whatever c holds. Values the run
// never produced keep their defaults.
func (r *Runner) record(id uuid.UUID, c *pipeline.Context, profileURL string) candidate.RunRecord {
	rec := candidate.RunRecord{
		ID:        id,
		Candidate: stages.CandidateIdentity(profileURL),
		EloScore:  r.baselineElo,
		Report:    NoReport,
		CreatedAt: r.now().UTC(),
	}
	if m, err := stages.CandidateMetrics.Get(c, candidate.Metrics{}); err == nil && c.Has(stages.CandidateMetrics.Name) {
		rec.OverallScore = m.OverallScore
		if assigned, _ := stages.EloAssigned.Get(c, false); assigned {
			rec.EloScore = m.EloScore
		}
	}
	if doc, err := stages.CandidateReport.Get(c, ""); err == nil && doc != "" {
		rec.Report = doc
	}
	return rec
}
