package stages

import (
	"context"
	"errors"

	"go.uber.org/zap"

	logutil "github.com/ravi-parthasarathy/codecredx/internal/logger"
	"github.com/ravi-parthasarathy/codecredx/pkg/candidate"
	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
	"github.com/ravi-parthasarathy/codecredx/pkg/pipeline"
)

const (
	readmePrompt      = "Summarize the following GitHub repository README content in 2-3 sentences, focusing on the project's purpose and key features:\n\n"
	descriptionPrompt = "Summarize the following project description in one concise sentence:\n\n"

	// NoContentSummary is the summary of a project with neither README nor description.
	NoContentSummary = "No content available to summarize for this project."
	// SummaryErrorPrefix starts the summary of a project the model failed on.
	SummaryErrorPrefix = "Error generating summary from LLM: "

	// DefaultMaxPromptChars caps the README text sent to the model.
	DefaultMaxPromptChars = 12000

	promptLogChars = 120
)

var errNoGenerator = errors.New("no language model configured")

// SummaryPrompt returns the prompt for s, or "" when there is nothing to
// summarize. README text beyond maxChars runes is dropped.
func SummaryPrompt(s *candidate.Success, maxChars int) string {
	if s.Readme != "" {
		readme := []rune(s.Readme)
		if maxChars > 0 && len(readme) > maxChars {
			readme = readme[:maxChars]
		}
		return readmePrompt + string(readme)
	}
	if s.Metadata.Description != "" {
		return descriptionPrompt + s.Metadata.Description
	}
	return ""
}

// LLMSummarizer asks the model for a short summary of every fetched project.
type LLMSummarizer struct {
	generator      llm.TextGenerator
	maxPromptChars int
	logger         *zap.Logger
}

// NewLLMSummarizer returns the stage. A nil generator records an error
// summary on every project that has content.
func NewLLMSummarizer(generator llm.TextGenerator, maxPromptChars int, logger *zap.Logger) *LLMSummarizer {
	if maxPromptChars <= 0 {
		maxPromptChars = DefaultMaxPromptChars
	}
	return &LLMSummarizer{generator: generator, maxPromptChars: maxPromptChars, logger: orNop(logger)}
}

func (s *LLMSummarizer) Node() *pipeline.Node { return pipeline.NewNode(NameLLMSummarizer, s) }

func (s *LLMSummarizer) Keys() []pipeline.KeySpec {
	return append(pipeline.Reads(AnalyzedProjects), pipeline.Writes(AnalyzedProjects)...)
}

func (s *LLMSummarizer) Prepare(c *pipeline.Context) ([]candidate.Project, error) {
	return AnalyzedProjects.Get(c, nil)
}

// Execute summarizes projects one at a time in input order. Only
// cancellation of ctx fails the stage.
func (s *LLMSummarizer) Execute(ctx context.Context, in []candidate.Project) ([]candidate.Project, error) {
	out := candidate.CloneAll(in)
	for _, p := range out {
		success, ok := p.Succeeded()
		if !ok {
			continue
		}

		prompt := SummaryPrompt(success, s.maxPromptChars)
		if prompt == "" {
			success.Summary, success.SummaryState = NoContentSummary, candidate.SummaryNoContent
			continue
		}

		s.logger.Debug("requesting summary",
			zap.String("url", p.URL),
			zap.String("prompt", logutil.Truncate(prompt, promptLogChars)),
		)
		summary, err := s.generate(ctx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("summary failed", zap.String("url", p.URL), zap.Error(err))
			success.Summary, success.SummaryState = SummaryErrorPrefix+err.Error(), candidate.SummaryError
			continue
		}
		success.Summary, success.SummaryState = summary, candidate.SummaryOK
	}
	return out, nil
}

func (s *LLMSummarizer) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", errNoGenerator
	}
	return s.generator.Generate(ctx, prompt)
}

func (s *LLMSummarizer) Finalize(c *pipeline.Context, _ []candidate.Project, out []candidate.Project) string {
	AnalyzedProjects.Set(c, out)
	ok := 0
	for _, p := range out {
		if success, isSuccess := p.Succeeded(); isSuccess && success.SummaryState == candidate.SummaryOK {
			ok++
		}
	}
	s.logger.Info("summarized projects", zap.Int("total", len(out)), zap.Int("summarized", ok))
	return pipeline.DefaultLabel
}
