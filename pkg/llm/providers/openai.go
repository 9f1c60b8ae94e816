package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
)

func init() {
	llm.RegisterProvider("openai", func(modelName string, opts llm.Options) (llm.Client, error) {
		key := opts.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openai: no API key configured and OPENAI_API_KEY not set")
		}
		return newOpenAIClient(modelName, key, opts), nil
	})
}

type openaiClient struct {
	sdk       *openai.Client
	modelName string
	retry     llm.Backoff
}

func newOpenAIClient(modelName, key string, opts llm.Options) *openaiClient {
	cfg := openai.DefaultConfig(key)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &openaiClient{
		sdk:       openai.NewClientWithConfig(cfg),
		modelName: modelName,
		retry:     opts.Retry,
	}
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *openaiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, c.retry, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *openaiClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	maxTokens := defaultMaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := openai.ChatCompletionRequest{
		Model:     c.modelName,
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.Messages, req.System),
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}

	resp, err := c.sdk.CreateChatCompletion(ctx, params)
	if err != nil {
		return llm.GenerateResponse{}, mapOpenAIError(err)
	}
	out := convertOpenAIResponse(resp)
	if out.StopReason == llm.StopReasonFiltered {
		return llm.GenerateResponse{}, &llm.ContentFilterError{
			LLMError: llm.LLMError{Code: http.StatusOK, Message: "response blocked by content filter"},
		}
	}
	return out, nil
}

// ─── message conversion ───────────────────────────────────────────────────────

// buildMessages converts unified messages to OpenAI's chat completion format.
// The system prompt, if any, is always the first message.
func buildMessages(msgs []llm.Message, system string) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			// Handled above via req.System.
			continue
		case llm.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		case llm.RoleAssistant:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text})
		}
	}
	return out
}

// convertOpenAIResponse maps an OpenAI response to the unified GenerateResponse.
func convertOpenAIResponse(resp openai.ChatCompletionResponse) llm.GenerateResponse {
	out := llm.GenerateResponse{
		StopReason: llm.StopReasonEndTurn,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Text = choice.Message.Content
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		out.StopReason = llm.StopReasonMaxTokens
	case openai.FinishReasonContentFilter:
		out.StopReason = llm.StopReasonFiltered
	}
	return out
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return fmt.Errorf("openai: %w", err)
}
