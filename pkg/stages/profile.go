package stages

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/github"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

// ProfileSource lists the public repositories of a GitHub user.
type ProfileSource interface {
	ListUserRepositories(ctx context.Context, user string) ([]github.RepoRef, error)
}

// ProfileRepos lists the repositories of the profile in github_profile_url.
type ProfileRepos struct {
	source    ProfileSource
	skipForks bool
	logger    *zap.Logger
}

// NewProfileRepos returns the stage. Forks are listed unless skipForks is set.
func NewProfileRepos(source ProfileSource, skipForks bool, logger *zap.Logger) *ProfileRepos {
	return &ProfileRepos{source: source, skipForks: skipForks, logger: orNop(logger)}
}

type profileResult struct {
	User string
	URLs []string
	Err  *candidate.Failure
}

func (s *ProfileRepos) Node() *pipeline.Node { return pipeline.NewNode(NameProfileRepos, s) }

func (s *ProfileRepos) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(GitHubProfileURL), pipeline.Writes(ProfileGitHubURLs, ProfileError)...)
}

func (s *ProfileRepos) Prepare(c *pipeline.Context) (string, error) {
	return GitHubProfileURL.Get(c, "")
}

func (s *ProfileRepos) Execute(ctx context.Context, profileURL string) (profileResult, error) {
	if profileURL == "" {
		return profileResult{}, nil
	}
	user, ok := github.ProfileUser(profileURL)
	if !ok {
		return profileResult{Err: &candidate.Failure{
			Kind:    candidate.FailureInvalidURL,
			Message: "Invalid GitHub profile URL.",
		}}, nil
	}
	if s.source == nil {
		return profileResult{}, errors.New("no profile source configured")
	}

	refs, err := s.source.ListUserRepositories(ctx, user)
	if err != nil {
		if ghErr, ok := github.Classify(err); ok {
			return profileResult{User: user, Err: ghErr.Failure()}, nil
		}
		return profileResult{}, err
	}

	res := profileResult{User: user}
	for _, ref := range refs {
		if s.skipForks && ref.Fork {
			continue
		}
		u := ref.HTMLURL
		if u == "" {
			u = "https://github.com/" + ref.FullName
		}
		if !slices.Contains(res.URLs, u) {
			res.URLs = append(res.URLs, u)
		}
	}
	return res, nil
}

func (s *ProfileRepos) Finalize(c *pipeline.Context, _ string, out profileResult) string {
	ProfileGitHubURLs.Set(c, out.URLs)
	if out.Err != nil {
		ProfileError.Set(c, out.Err)
		s.logger.Warn("profile repositories not listed", zap.String("user", out.User), zap.Error(out.Err))
		return pipeline.DefaultLabel
	}
	if out.User != "" {
		s.logger.Info("listed profile repositories", zap.String("user", out.User), zap.Int("count", len(out.URLs)))
	}
	return pipeline.DefaultLabel
}

// CandidateIdentity names the candidate after the GitHub user of profileURL,
// or "From_Resume" when there is none.
func CandidateIdentity(profileURL string) string {
	if user, ok := github.ProfileUser(profileURL); ok {
		return user
	}
	return "From_Resume"
}
