package pipeline

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

// Context is the key-value bag shared by every stage of one run.
//
// Only the pipeline goroutine touches a Context, so it carries no locking.
// Stages read it in Prepare and write it in Finalize; Execute never sees it.
type Context struct {
	data map[string]any
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{data: make(map[string]any)}
}

// NewContextFrom creates a Context pre-seeded with a copy of seed.
func NewContextFrom(seed map[string]any) *Context {
	c := NewContext()
	maps.Copy(c.data, seed)
	return c
}

func (c *Context) clone() *Context {
	return &Context{data: maps.Clone(c.data)}
}

// Set stores a value under key, replacing any earlier value.
func (c *Context) Set(key string, value any) {
	c.data[key] = value
}

// Get returns the value stored under key, or def if the key is absent.
func (c *Context) Get(key string, def any) any {
	if v, ok := c.data[key]; ok {
		return v
	}
	return def
}

// Lookup retrieves a value by key.
func (c *Context) Lookup(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Has reports whether key has been produced.
func (c *Context) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Snapshot returns a shallow copy of all key-value pairs.
func (c *Context) Snapshot() map[string]any {
	return maps.Clone(c.data)
}

// dump is the JSON form written by WriteJSON.
type dump struct {
	LastStage string         `json:"last_stage,omitempty"`
	Data      map[string]any `json:"data"`
}

// WriteJSON persists the context and the last completed stage to path.
func (c *Context) WriteJSON(path, lastStage string) error {
	data, err := json.MarshalIndent(dump{LastStage: lastStage, Data: c.data}, "", "  ")
	if err != nil {
		return fmt.Errorf("context marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("context write: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("context write: %w", err)
	}
	return nil
}
