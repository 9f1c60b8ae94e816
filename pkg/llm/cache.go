package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// CachedGenerator memoizes a TextGenerator by exact prompt text and persists
// the entries as a JSON object in a file. Failed generations are not cached.
type CachedGenerator struct {
	next    TextGenerator
	path    string
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string]string
}

// NewCachedGenerator loads the cache at path. A missing file starts an empty
// cache; an unreadable or corrupt one is logged and replaced on next write.
func NewCachedGenerator(next TextGenerator, path string, logger *zap.Logger) *CachedGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CachedGenerator{
		next:    next,
		path:    path,
		logger:  logger.With(zap.String("cache", path)),
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		c.logger.Warn("could not read llm cache, starting empty", zap.Error(err))
	default:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			c.logger.Warn("corrupt llm cache, starting empty", zap.Error(err))
			c.entries = make(map[string]string)
		}
	}
	c.logger.Debug("llm cache loaded", zap.Int("entries", len(c.entries)))
	return c
}

// Len returns the number of cached prompts.
func (c *CachedGenerator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Generate returns the cached answer for prompt or asks the wrapped generator.
func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	if text, ok := c.entries[prompt]; ok {
		c.mu.Unlock()
		c.logger.Debug("llm cache hit")
		return text, nil
	}
	c.mu.Unlock()

	text, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[prompt] = text
	if err := c.save(); err != nil {
		// The answer is still good; only persistence failed.
		c.logger.Warn("could not save llm cache", zap.Error(err))
	}
	return text, nil
}

// save writes the cache atomically. Callers hold mu.
func (c *CachedGenerator) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".llm-cache-*")
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache write: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}
