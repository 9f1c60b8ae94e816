package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
)

func init() {
	llm.RegisterProvider("gemini", func(modelName string, opts llm.Options) (llm.Client, error) {
		return newGeminiClient(modelName, opts)
	})
}

type geminiClient struct {
	sdk       *genai.Client
	modelName string
	retry     llm.Backoff
}

func newGeminiClient(modelName string, opts llm.Options) (*geminiClient, error) {
	key := opts.APIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: no API key configured and GEMINI_API_KEY not set")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(key)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	// genai.NewClient requires a context; use Background for construction.
	sdk, err := genai.NewClient(context.Background(), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &geminiClient{sdk: sdk, modelName: modelName, retry: opts.Retry}, nil
}

// Complete performs a blocking generation with automatic retry on transient errors.
func (c *geminiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, c.retry, func() error {
		var innerErr error
		resp, innerErr = c.doComplete(ctx, req)
		return innerErr
	})
	return resp, err
}

func (c *geminiClient) doComplete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	model := c.sdk.GenerativeModel(c.modelName)

	if req.MaxTokens > 0 {
		n := int32(req.MaxTokens)
		model.MaxOutputTokens = &n
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}

	// System prompt goes to SystemInstruction, not the message history.
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	history, last := buildContents(req.Messages)
	if last == nil {
		return llm.GenerateResponse{}, fmt.Errorf("gemini: no user message to send")
	}

	cs := model.StartChat()
	cs.History = history

	apiResp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return llm.GenerateResponse{}, mapGeminiError(err)
	}
	out := convertGeminiResponse(apiResp)
	if out.StopReason == llm.StopReasonFiltered {
		return llm.GenerateResponse{}, &llm.ContentFilterError{
			LLMError: llm.LLMError{Message: "response blocked by safety filter"},
		}
	}
	return out, nil
}

// ─── message translation ─────────────────────────────────────────────────────

// buildContents translates unified messages into Gemini's format. The final
// user turn is returned separately for cs.SendMessage; everything before it
// becomes chat history.
func buildContents(msgs []llm.Message) (history []*genai.Content, last *genai.Content) {
	var contents []*genai.Content
	for _, m := range msgs {
		var role string
		switch m.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Text)}})
	}

	if n := len(contents); n > 0 && contents[n-1].Role == "user" {
		return contents[:n-1], contents[n-1]
	}
	return contents, nil
}

// ─── response conversion ─────────────────────────────────────────────────────

func convertGeminiResponse(resp *genai.GenerateContentResponse) llm.GenerateResponse {
	out := llm.GenerateResponse{StopReason: llm.StopReasonEndTurn}
	if resp == nil {
		return out
	}

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			var sb strings.Builder
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
			out.Text = sb.String()
		}
		switch cand.FinishReason {
		case genai.FinishReasonMaxTokens:
			out.StopReason = llm.StopReasonMaxTokens
		case genai.FinishReasonSafety:
			out.StopReason = llm.StopReasonFiltered
		}
	}

	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out
}

// ─── error mapping ────────────────────────────────────────────────────────────

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
