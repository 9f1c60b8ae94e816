package stages

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/github"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

// MergeURLs unions the repository URLs of every list by canonical form. The
// result is sorted, so it depends only on the set of repositories named and
// not on which list named them or in what order. URLs that do not name a
// GitHub repository are returned in rejected.
func MergeURLs(lists ...[]string) (merged, rejected []string) {
	seen := map[string]bool{}
	for _, list := range lists {
		for _, raw := range list {
			u, err := github.Canonical(raw)
			if err != nil {
				rejected = append(rejected, raw)
				continue
			}
			if !seen[u] {
				seen[u] = true
				merged = append(merged, u)
			}
		}
	}
	slices.Sort(merged)
	return merged, rejected
}

// URLConsolidation merges the repository URLs found in the resume with
// those listed on the profile. It routes LabelNoProjects when there are none.
type URLConsolidation struct {
	logger *zap.Logger
}

func NewURLConsolidation(logger *zap.Logger) *URLConsolidation {
	return &URLConsolidation{logger: orNop(logger)}
}

type urlSources struct {
	Resume  []string
	Profile []string
}

func (s *URLConsolidation) Node() *pipeline.Node { return pipeline.NewNode(NameURLConsolidation, s) }

func (s *URLConsolidation) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(ResumeGitHubURLs, ProfileGitHubURLs), pipeline.Writes(GitHubProjectURLs)...)
}

func (s *URLConsolidation) Prepare(c *pipeline.Context) (urlSources, error) {
	resume, err := ResumeGitHubURLs.Get(c, nil)
	if err != nil {
		return urlSources{}, err
	}
	profile, err := ProfileGitHubURLs.Get(c, nil)
	if err != nil {
		return urlSources{}, err
	}
	return urlSources{Resume: resume, Profile: profile}, nil
}

func (s *URLConsolidation) Execute(_ context.Context, in urlSources) ([]string, error) {
	merged, rejected := MergeURLs(in.Resume, in.Profile)
	for _, u := range rejected {
		s.logger.Warn("skipping invalid github url", zap.String("url", u))
	}
	return merged, nil
}

func (s *URLConsolidation) Finalize(c *pipeline.Context, in urlSources, out []string) string {
	GitHubProjectURLs.Set(c, out)
	s.logger.Info("consolidated project urls",
		zap.Int("resume", len(in.Resume)),
		zap.Int("profile", len(in.Profile)),
		zap.Int("unique", len(out)),
	)
	if len(out) == 0 {
		return LabelNoProjects
	}
	return pipeline.DefaultLabel
}
