// Package stages holds the concrete stages of a candidate evaluation and the
// context keys they communicate through.
package stages

import (
	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

// Stage names as used in the pipeline graph.
const (
	NameResumeInput      = "resume_input"
	NameURLExtraction    = "url_extraction"
	NameProfileRepos     = "profile_repos"
	NameURLConsolidation = "url_consolidation"
	NameGitHubAnalyzer   = "github_analyzer"
	NameLLMSummarizer    = "llm_summarizer"
	NameContribution     = "contribution"
	NameOriginality      = "originality"
	NameTrust            = "trust"
	NameAggregation      = "aggregation"
	NameEloRanking       = "elo_ranking"
	NameReportGeneration = "report_generation"
	LabelNoProjects      = "no_projects"
)

// Context keys.
var (
	ResumeFilePath      = pipeline.NewKey[string]("resume_file_path")
	ResumeText          = pipeline.NewKey[string]("resume_text")
	ResumeError         = pipeline.NewKey[*candidate.Failure]("resume_error")
	ResumeGitHubURLs    = pipeline.NewKey[[]string]("resume_github_urls")
	OtherURLs           = pipeline.NewKey[[]string]("other_urls")
	GitHubProfileURL    = pipeline.NewKey[string]("github_profile_url")
	ProfileGitHubURLs   = pipeline.NewKey[[]string]("profile_github_urls")
	ProfileError        = pipeline.NewKey[*candidate.Failure]("profile_error")
	GitHubProjectURLs   = pipeline.NewKey[[]string]("github_project_urls")
	AnalyzedProjects    = pipeline.NewKey[[]candidate.Project]("analyzed_github_projects")
	CandidateMetrics    = pipeline.NewKey[candidate.Metrics]("overall_candidate_metrics")
	EloAssigned         = pipeline.NewKey[bool]("elo_assigned")
	CandidateReport     = pipeline.NewKey[string]("candidate_report")
	CandidateReportPath = pipeline.NewKey[string]("candidate_report_path")
	ReportError         = pipeline.NewKey[string]("report_error")
)
