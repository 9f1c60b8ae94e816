package providers

import (
	"os"

	"github.com/ravi-parthasarathy/codecredx/pkg/llm"
)

// Ollama serves an OpenAI-compatible API under /v1.
const defaultOllamaURL = "http://localhost:11434/v1"

func init() {
	llm.RegisterProvider("ollama", func(modelName string, opts llm.Options) (llm.Client, error) {
		if opts.BaseURL == "" {
			opts.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
		if opts.BaseURL == "" {
			opts.BaseURL = defaultOllamaURL
		}
		// Ollama ignores the key but the client insists on one.
		key := opts.APIKey
		if key == "" {
			key = "ollama"
		}
		return newOpenAIClient(modelName, key, opts), nil
	})
}
