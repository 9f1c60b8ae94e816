package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// TextGenerator turns a prompt into text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PromptClient sends single-prompt requests through a Client.
type PromptClient struct {
	client    Client
	model     string
	system    string
	maxTokens int
	logger    *zap.Logger
}

// NewPromptClient wraps client. system may be empty.
func NewPromptClient(client Client, model, system string, maxTokens int, logger *zap.Logger) *PromptClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptClient{
		client:    client,
		model:     model,
		system:    system,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate returns the trimmed text of the model's answer.
func (p *PromptClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Complete(ctx, GenerateRequest{
		Model:     p.model,
		Messages:  []Message{UserMessage(prompt)},
		System:    p.system,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", err
	}

	p.logger.Debug("generated text",
		zap.String("model", p.model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.String("stop_reason", string(resp.StopReason)),
	)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
