// Package llm provides the model gateway used by every pipeline stage.
// It defines a provider-agnostic Gateway interface with an OpenAI implementation,
// a placeholder used when no credential is configured, composable decorators
// (timeout, rate limit, metrics) and a deterministic mock for testing.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLLMFailed     = errors.New("LLM request failed")
	ErrInvalidConfig = errors.New("invalid LLM configuration")
)

// PlaceholderResponse is returned by the gateway when no API key is available.
// Callers validate it like any other reply.
const PlaceholderResponse = `{"title": "Mock Story", "story": "This is a test story.", "moral": "Always test your code!"}`

// CallOptions are the per-call sampling parameters.
type CallOptions struct {
	// MaxTokens limits the response length (0 = use provider default)
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative)
	Temperature float32
}

// Gateway defines the single capability the pipeline needs from a language model.
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Complete sends prompt to the model and returns the raw text reply.
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// GatewayFunc adapts a plain function to the Gateway interface.
type GatewayFunc func(ctx context.Context, prompt string, opts CallOptions) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, prompt string, opts CallOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// Config holds connection settings for the OpenAI-backed gateway.
type Config struct {
	// Model specifies the model identifier (e.g., "gpt-4o-mini", "gpt-4o")
	Model string

	// APIKey is the authentication key; falls back to OPENAI_API_KEY
	APIKey string

	// BaseURL overrides the API endpoint for compatible providers
	BaseURL string

	// Timeout bounds every individual call (0 = no timeout)
	Timeout time.Duration

	// RequestsPerMinute caps the call rate (0 = unlimited)
	RequestsPerMinute int
}

// DefaultConfig returns sensible defaults for story generation.
func DefaultConfig() Config {
	return Config{
		Model:             "gpt-4o-mini",
		Timeout:           90 * time.Second,
		RequestsPerMinute: 60,
	}
}
