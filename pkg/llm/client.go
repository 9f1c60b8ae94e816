package llm

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Client is the provider-agnostic LLM interface.
type Client interface {
	// Complete performs a blocking generation and returns the full response.
	Complete(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// Options carries provider settings resolved from configuration. Empty fields
// fall back to each provider's environment variables and defaults.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   Backoff
}

// ProviderFactory creates a Client for a given model name within a provider.
type ProviderFactory func(modelName string, opts Options) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

// RegisterProvider registers a factory function for a named provider.
// Call this from init() in provider packages.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Providers lists registered provider names.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewClient constructs a Client for a model ID of the form
// "provider:model-name", e.g. "ollama:llama3" or "openai:gpt-4o-mini".
func NewClient(modelID string, opts Options) (Client, error) {
	provider, modelName, err := ParseModelID(modelID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: %w", err)
	}
	registryMu.RLock()
	factory, ok := registry[provider]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (model ID %q); registered: %v", provider, modelID, Providers())
	}
	return factory(modelName, opts)
}
