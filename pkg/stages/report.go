package stages

import (
	"context"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
	"github.com/ravi-parthasarathy/codecredx/pkg/report"
)

// ReportGeneration renders the Markdown report and hands it to the sink. A
// sink failure is recorded in report_error and does not fail the run.
type ReportGeneration struct {
	sink   report.Sink
	logger *zap.Logger
}

// NewReportGeneration returns the stage. sink may be nil to skip persisting.
func NewReportGeneration(sink report.Sink, logger *zap.Logger) *ReportGeneration {
	return &ReportGeneration{sink: sink, logger: orNop(logger)}
}

type reportResult struct {
	Doc     string
	Path    string
	SinkErr string
}

func (s *ReportGeneration) Node() *pipeline.Node { return pipeline.NewNode(NameReportGeneration, s) }

func (s *ReportGeneration) Keys() []pipeline.KeySpec {
	return append(
		pipeline.Reads(GitHubProfileURL, ResumeText, GitHubProjectURLs, ProfileGitHubURLs, OtherURLs, AnalyzedProjects, CandidateMetrics),
		pipeline.Writes(CandidateReport, CandidateReportPath, ReportError)...,
	)
}

func (s *ReportGeneration) Prepare(c *pipeline.Context) (report.Data, error) {
	var (
		d   report.Data
		err error
	)
	profile, err := GitHubProfileURL.Get(c, "")
	if err != nil {
		return d, err
	}
	d.Candidate = CandidateIdentity(profile)
	if d.ResumeText, err = ResumeText.Get(c, ""); err != nil {
		return d, err
	}
	if d.ProjectURLs, err = GitHubProjectURLs.Get(c, nil); err != nil {
		return d, err
	}
	if d.ProfileURLs, err = ProfileGitHubURLs.Get(c, nil); err != nil {
		return d, err
	}
	if d.OtherURLs, err = OtherURLs.Get(c, nil); err != nil {
		return d, err
	}
	if d.Projects, err = AnalyzedProjects.Get(c, nil); err != nil {
		return d, err
	}
	if d.Metrics, err = CandidateMetrics.Get(c, candidate.Metrics{}); err != nil {
		return d, err
	}
	return d, nil
}

func (s *ReportGeneration) Execute(ctx context.Context, in report.Data) (reportResult, error) {
	doc, err := report.Render(in)
	if err != nil {
		return reportResult{}, err
	}
	res := reportResult{Doc: doc}
	if s.sink == nil {
		return res, nil
	}

	path, err := s.sink.Save(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reportResult{}, ctxErr
		}
		res.SinkErr = err.Error()
		return res, nil
	}
	res.Path = path
	return res, nil
}

func (s *ReportGeneration) Finalize(c *pipeline.Context, _ report.Data, out reportResult) string {
	CandidateReport.Set(c, out.Doc)
	if out.Path != "" {
		CandidateReportPath.Set(c, out.Path)
		s.logger.Info("report saved", zap.String("path", out.Path))
	}
	if out.SinkErr != "" {
		ReportError.Set(c, out.SinkErr)
		s.logger.Warn("report not saved", zap.String("error", out.SinkErr))
	}
	return pipeline.DefaultLabel
}
