package stages

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/github"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

// DefaultConcurrency bounds the repositories fetched at once.
const DefaultConcurrency = 4

// RepositorySource fetches repository metadata and README text.
type RepositorySource interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	GetReadme(ctx context.Context, owner, name string) (string, error)
}

// GitHubAnalyzer fetches every URL in github_project_urls. Expected API
// failures are recorded on the project; anything else aborts the stage.
type GitHubAnalyzer struct {
	source      RepositorySource
	concurrency int
	logger      *zap.Logger
}

func NewGitHubAnalyzer(source RepositorySource, concurrency int, logger *zap.Logger) *GitHubAnalyzer {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &GitHubAnalyzer{source: source, concurrency: concurrency, logger: orNop(logger)}
}

func (s *GitHubAnalyzer) Node() *pipeline.Node { return pipeline.NewNode(NameGitHubAnalyzer, s) }

func (s *GitHubAnalyzer) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(GitHubProjectURLs), pipeline.Writes(AnalyzedProjects)...)
}

func (s *GitHubAnalyzer) Prepare(c *pipeline.Context) ([]string, error) {
	return GitHubProjectURLs.Get(c, nil)
}

// Execute analyzes urls in parallel. The result has one project per URL in
// the order of urls.
func (s *GitHubAnalyzer) Execute(ctx context.Context, urls []string) ([]candidate.Project, error) {
	if len(urls) == 0 {
		return []candidate.Project{}, nil
	}
	if s.source == nil {
		return nil, errors.New("no repository source configured")
	}

	out := make([]candidate.Project, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			p, err := s.analyze(gctx, u)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", u, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GitHubAnalyzer) analyze(ctx context.Context, u string) (candidate.Project, error) {
	id, err := github.ParseRepoURL(u)
	if err != nil {
		s.logger.Warn("invalid github url", zap.String("url", u), zap.Error(err))
		return candidate.Project{URL: u, Outcome: &candidate.Failure{
			Kind:    candidate.FailureInvalidURL,
			Message: "Invalid GitHub URL format.",
		}}, nil
	}
	p := candidate.Project{URL: u, Owner: id.Owner, Name: id.Name}

	repo, err := s.source.GetRepository(ctx, id.Owner, id.Name)
	if err != nil {
		ghErr, ok := github.Classify(err)
		if !ok {
			return p, err
		}
		s.logger.Warn("repository not analyzed", zap.String("repo", id.String()), zap.Error(ghErr))
		p.Outcome = ghErr.Failure()
		return p, nil
	}

	success := &candidate.Success{Metadata: repo.Metadata()}
	readme, err := s.source.GetReadme(ctx, id.Owner, id.Name)
	if err != nil {
		ghErr, ok := github.Classify(err)
		if !ok {
			return p, err
		}
		s.logger.Info("readme unavailable", zap.String("repo", id.String()), zap.String("reason", ghErr.Message))
		success.ReadmeIssue = ghErr.Message
	} else {
		success.Readme = readme
	}
	p.Outcome = success

	s.logger.Debug("repository analyzed", zap.String("repo", id.String()), zap.Bool("readme", readme != ""))
	return p, nil
}

func (s *GitHubAnalyzer) Finalize(c *pipeline.Context, _ []string, out []candidate.Project) string {
	AnalyzedProjects.Set(c, out)
	s.logger.Info("analyzed repositories",
		zap.Int("total", len(out)),
		zap.Int("successful", candidate.CountSuccessful(out)),
	)
	return pipeline.DefaultLabel
}
