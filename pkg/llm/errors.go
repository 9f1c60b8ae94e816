package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// LLMError is the base error type for all LLM client errors.
type LLMError struct {
	Code    int
	Message string
	Cause   error
}

func (e *LLMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm error %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}

func (e *LLMError) Unwrap() error { return e.Cause }

// RateLimitError is returned when the provider rate-limits the request.
type RateLimitError struct{ LLMError }

// ServerError is returned on 5xx responses from the provider.
type ServerError struct{ LLMError }

// AuthError is returned on authentication/authorization failures.
type AuthError struct{ LLMError }

// ContextLengthError is returned when the request exceeds the model's context window.
type ContextLengthError struct{ LLMError }

// ContentFilterError is returned when the request is blocked by the provider's safety filter.
type ContentFilterError struct{ LLMError }

// Retryable returns true if the error is transient and the request may be retried.
func Retryable(err error) bool {
	var rl *RateLimitError
	var se *ServerError
	return errors.As(err, &rl) || errors.As(err, &se)
}

// Backoff configures WithRetry.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultBackoff is used when a provider is given a zero Backoff.
var DefaultBackoff = Backoff{Attempts: 4, Base: time.Second, Max: 30 * time.Second}

func (b Backoff) orDefault() Backoff {
	if b.Attempts <= 0 {
		return DefaultBackoff
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	return b
}

// delay returns the wait before attempt i+1: exponential, capped at Max,
// with ±25% jitter.
func (b Backoff) delay(i int) time.Duration {
	d := b.Base << uint(i)
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	jitter := time.Duration(rand.Float64() * 0.5 * float64(d))
	return d/4*3 + jitter
}

// WithRetry calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. It respects context cancellation.
func WithRetry(ctx context.Context, b Backoff, fn func() error) error {
	b = b.orDefault()
	var lastErr error
	for i := range b.Attempts {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if i == b.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delay(i)):
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", b.Attempts, lastErr)
}
