package providers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
)

// ─── TestBuildMessages ────────────────────────────────────────────────────────

func TestBuildMessages_UserText(t *testing.T) {
	out := buildMessages([]llm.Message{llm.UserMessage("hello")}, "")
	if len(out) != 1 {
		t.Fatalf("want 1 message, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("role: want %q, got %q", openai.ChatMessageRoleUser, out[0].Role)
	}
	if out[0].Content != "hello" {
		t.Errorf("content: want %q, got %q", "hello", out[0].Content)
	}
}

func TestBuildMessages_SystemPrepend(t *testing.T) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Text: "ignored inline system"},
		llm.UserMessage("hi"),
		{Role: llm.RoleAssistant, Text: "hello"},
	}
	out := buildMessages(msgs, "you are helpful")
	if len(out) != 3 {
		t.Fatalf("want 3 messages, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "you are helpful" {
		t.Errorf("first message = %+v", out[0])
	}
	if out[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("third role: want assistant, got %q", out[2].Role)
	}
}

// ─── TestConvertOpenAIResponse ────────────────────────────────────────────────

func TestConvertOpenAIResponse(t *testing.T) {
	tests := []struct {
		name   string
		reason openai.FinishReason
		want   llm.StopReason
	}{
		{"stop", openai.FinishReasonStop, llm.StopReasonEndTurn},
		{"length", openai.FinishReasonLength, llm.StopReasonMaxTokens},
		{"filter", openai.FinishReasonContentFilter, llm.StopReasonFiltered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := openai.ChatCompletionResponse{
				Choices: []openai.ChatCompletionChoice{{
					Message:      openai.ChatCompletionMessage{Content: "text"},
					FinishReason: tt.reason,
				}},
				Usage: openai.Usage{PromptTokens: 7, CompletionTokens: 3},
			}
			got := convertOpenAIResponse(resp)
			if got.StopReason != tt.want {
				t.Errorf("stop reason = %q, want %q", got.StopReason, tt.want)
			}
			if got.Text != "text" || got.Usage.InputTokens != 7 || got.Usage.OutputTokens != 3 {
				t.Errorf("response = %+v", got)
			}
		})
	}
}

func TestConvertOpenAIResponse_NoChoices(t *testing.T) {
	got := convertOpenAIResponse(openai.ChatCompletionResponse{})
	if got.Text != "" || got.StopReason != llm.StopReasonEndTurn {
		t.Errorf("response = %+v", got)
	}
}

// ─── TestMapOpenAIError ───────────────────────────────────────────────────────

func makeAPIError(code int) error {
	return &openai.APIError{
		HTTPStatusCode: code,
		Message:        "test error",
	}
}

func TestMapOpenAIError_RateLimit(t *testing.T) {
	err := mapOpenAIError(makeAPIError(429))
	var rl *llm.RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("want *llm.RateLimitError, got %T", err)
	}
	if !llm.Retryable(err) {
		t.Error("RateLimitError should be retryable")
	}
}

func TestMapOpenAIError_Auth(t *testing.T) {
	for _, code := range []int{401, 403} {
		err := mapOpenAIError(makeAPIError(code))
		var ae *llm.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("code %d: want *llm.AuthError, got %T", code, err)
		}
		if llm.Retryable(err) {
			t.Errorf("code %d: AuthError should not be retryable", code)
		}
	}
}

func TestMapOpenAIError_Server(t *testing.T) {
	for _, code := range []int{500, 502, 503} {
		err := mapOpenAIError(makeAPIError(code))
		var se *llm.ServerError
		if !errors.As(err, &se) {
			t.Errorf("code %d: want *llm.ServerError, got %T", code, err)
		}
	}
}

func TestMapOpenAIError_Nil(t *testing.T) {
	if err := mapOpenAIError(nil); err != nil {
		t.Errorf("want nil, got %v", err)
	}
}

// ─── OpenAI-compatible server (Ollama) ────────────────────────────────────────

func TestOllamaProvider_CompletesAgainstCompatibleServer(t *testing.T) {
	var gotModel atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotModel.Store(req.Model)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "A small CLI tool."},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer srv.Close()

	client, err := llm.NewClient("ollama:llama3", llm.Options{BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Complete(t.Context(), llm.GenerateRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "A small CLI tool." {
		t.Errorf("text = %q", resp.Text)
	}
	if got, _ := gotModel.Load().(string); got != "llama3" {
		t.Errorf("model = %q, want llama3", got)
	}
}

func TestOpenAIProvider_AuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client, err := llm.NewClient("openai:gpt-4o-mini", llm.Options{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Complete(t.Context(), llm.GenerateRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	var ae *llm.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}
