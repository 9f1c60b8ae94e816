package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// ─── resume_input ─────────────────────────────────────────────────────────────

// ResumeInput loads the resume text from resume_file_path. Without a path it
// keeps whatever resume_text the caller seeded.
type ResumeInput struct {
	logger *zap.Logger
}

func NewResumeInput(logger *zap.Logger) *ResumeInput {
	return &ResumeInput{logger: orNop(logger)}
}

type resumeSource struct {
	Path string
	Text string
}

type resumeResult struct {
	Text string
	Err  *candidate.Failure
}

func (s *ResumeInput) Node() *pipeline.Node { return pipeline.NewNode(NameResumeInput, s) }

func (s *ResumeInput) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(ResumeFilePath, ResumeText), pipeline.Writes(ResumeText, ResumeError)...)
}

func (s *ResumeInput) Prepare(c *pipeline.Context) (resumeSource, error) {
	path, err := ResumeFilePath.Get(c, "")
	if err != nil {
		return resumeSource{}, err
	}
	text, err := ResumeText.Get(c, "")
	if err != nil {
		return resumeSource{}, err
	}
	return resumeSource{Path: path, Text: text}, nil
}

func (s *ResumeInput) Execute(_ context.Context, in resumeSource) (resumeResult, error) {
	if in.Path == "" {
		return resumeResult{Text: in.Text}, nil
	}

	switch ext := strings.ToLower(filepath.Ext(in.Path)); ext {
	case ".txt", ".md", ".markdown", "":
	default:
		return resumeResult{Text: in.Text, Err: &candidate.Failure{
			Kind:    candidate.FailureUnsupported,
			Message: fmt.Sprintf("unsupported resume format %q: provide a .txt or .md file", ext),
		}}, nil
	}

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return resumeResult{Text: in.Text, Err: &candidate.Failure{
			Kind:    candidate.FailureUnreadable,
			Message: fmt.Sprintf("could not read resume: %v", err),
		}}, nil
	}
	return resumeResult{Text: string(data)}, nil
}

func (s *ResumeInput) Finalize(c *pipeline.Context, in resumeSource, out resumeResult) string {
	ResumeText.Set(c, out.Text)
	if out.Err != nil {
		ResumeError.Set(c, out.Err)
		s.logger.Warn("resume not loaded", zap.String("path", in.Path), zap.Error(out.Err))
		return pipeline.DefaultLabel
	}
	s.logger.Info("resume loaded", zap.String("path", in.Path), zap.Int("chars", len(out.Text)))
	return pipeline.DefaultLabel
}

// ─── url_extraction ───────────────────────────────────────────────────────────

var (
	urlRe  = regexp.MustCompile(`https?://[^\s\]]+`)
	repoRe = regexp.MustCompile(`^https?://(?:www\.)?github\.com/[^/\s]+/[^/\s#?]+`)
)

// ExtractURLs splits the URLs found in text into GitHub repository URLs,
// truncated to owner/name, and everything else. Both lists keep the order of
// first occurrence.
func ExtractURLs(text string) (repos, other []string) {
	seenRepo := map[string]bool{}
	seenOther := map[string]bool{}
	for _, raw := range urlRe.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ").,;")
		if m := repoRe.FindString(u); m != "" {
			if !seenRepo[m] {
				seenRepo[m] = true
				repos = append(repos, m)
			}
			continue
		}
		if !seenOther[u] {
			seenOther[u] = true
			other = append(other, u)
		}
	}
	return repos, other
}

// URLExtraction pulls project and other URLs out of resume_text.
type URLExtraction struct {
	logger *zap.Logger
}

func NewURLExtraction(logger *zap.Logger) *URLExtraction {
	return &URLExtraction{logger: orNop(logger)}
}

type extractedURLs struct {
	GitHub []string
	Other  []string
}

func (s *URLExtraction) Node() *pipeline.Node { return pipeline.NewNode(NameURLExtraction, s) }

func (s *URLExtraction) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(ResumeText), pipeline.Writes(ResumeGitHubURLs, OtherURLs)...)
}

func (s *URLExtraction) Prepare(c *pipeline.Context) (string, error) {
	return ResumeText.Get(c, "")
}

func (s *URLExtraction) Execute(_ context.Context, text string) (extractedURLs, error) {
	gh, other := ExtractURLs(text)
	return extractedURLs{GitHub: gh, Other: other}, nil
}

func (s *URLExtraction) Finalize(c *pipeline.Context, _ string, out extractedURLs) string {
	ResumeGitHubURLs.Set(c, out.GitHub)
	OtherURLs.Set(c, out.Other)
	s.logger.Info("extracted urls",
		zap.Int("github", len(out.GitHub)),
		zap.Int("other", len(out.Other)),
	)
	return pipeline.DefaultLabel
}
