// Package provider implements the content-generation provider chain:
// interchangeable LLM backends tried in a randomized, default-biased order
// with per-provider retry budgets, and a deterministic template fallback
// when every API provider fails.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"linkforge/internal/retry"
)

// Options tune one generation call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	WordCount   int // Target article length; advisory
}

// Usage records token consumption for one generation call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result is one successful generation.
type Result struct {
	Provider string `json:"provider"`
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
}

// WordCount counts the words in the generated content.
func (r *Result) WordCount() int {
	return len(strings.Fields(r.Content))
}

// Provider is one interchangeable content-generation backend.
type Provider interface {
	Name() string
	// IsConfigured reports whether the provider has credentials. The chain
	// records unconfigured providers as failed attempts without calling out.
	IsConfigured() bool
	Generate(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// Error is a classified provider failure. Its kind feeds the shared retry
// taxonomy so the executor and the chain make consistent decisions.
type Error struct {
	Provider string
	Kind     retry.Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RetryKind implements retry.Classified.
func (e *Error) RetryKind() retry.Kind { return e.Kind }

// Attempt is one entry in a generation call's audit trail.
type Attempt struct {
	Provider  string    `json:"provider"`
	Success   bool      `json:"success"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChainError reports that every provider, including the fallback, failed.
// It carries the full attempt log; raw provider errors never propagate
// past it.
type ChainError struct {
	Attempts []Attempt
	Last     error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("all %d providers failed, last: %v", len(e.Attempts), e.Last)
}

func (e *ChainError) Unwrap() error { return e.Last }
