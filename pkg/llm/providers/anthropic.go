// Package providers registers LLM provider adapters.
// Import this package with a blank identifier to activate all providers:
//
//	import _ "github.com/ravi-parthasarathy/codecredx/pkg/llm/providers"
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
)

const defaultMaxTokens = 1024

func init() {
	llm.RegisterProvider("anthropic", func(modelName string, opts llm.Options) (llm.Client, error) {
		return newAnthropicClient(modelName, opts), nil
	})
}

type anthropicClient struct {
	sdk       anthropicsdk.Client
	modelName string
	retry     llm.Backoff
}

func newAnthropicClient(modelName string, opts llm.Options) *anthropicClient {
	// Without an explicit key the SDK reads ANTHROPIC_API_KEY.
	reqOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &anthropicClient{
		sdk:       anthropicsdk.NewClient(reqOpts...),
		modelName: modelName,
		retry:     opts.Retry,
	}
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (a *anthropicClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, a.retry, func() error {
		var innerErr error
		resp, innerErr = a.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (a *anthropicClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	msg, err := a.sdk.Messages.New(ctx, a.buildParams(req))
	if err != nil {
		return llm.GenerateResponse{}, mapError(err)
	}
	return convertResponse(msg), nil
}

func (a *anthropicClient) buildParams(req llm.GenerateRequest) anthropicsdk.MessageNewParams {
	// System turns go through the System param.
	msgs := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleUser:
			msgs = append(msgs, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Text)))
		case llm.RoleAssistant:
			msgs = append(msgs, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Text)))
		}
	}

	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.modelName),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Temperature))
	}
	return params
}

func convertResponse(msg *anthropicsdk.Message) llm.GenerateResponse {
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	stop := llm.StopReasonEndTurn
	if msg.StopReason == anthropicsdk.StopReasonMaxTokens {
		stop = llm.StopReasonMaxTokens
	}

	return llm.GenerateResponse{
		Text:       sb.String(),
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Error(), err)
	}
	return fmt.Errorf("anthropic: %w", err)
}

// classifyStatus maps an HTTP status code to the llm error family shared by
// all providers.
func classifyStatus(code int, message string, cause error) error {
	base := llm.LLMError{Code: code, Message: message, Cause: cause}
	switch code {
	case 429:
		return &llm.RateLimitError{LLMError: base}
	case 401, 403:
		return &llm.AuthError{LLMError: base}
	case 400, 413:
		return &llm.ContextLengthError{LLMError: base}
	case 500, 502, 503, 504, 529:
		return &llm.ServerError{LLMError: base}
	default:
		return &base
	}
}
