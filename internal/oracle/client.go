// Package oracle provides the client boundary to the external reasoning
// service. The core consumes one operation — Complete — and treats the
// service as opaque: tool use happens inside the call, and the final text
// blob comes back for the codec to interpret.
package oracle

import (
	"context"
	"fmt"
	"time"
)

// Provider constants for oracle provider selection.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds oracle client configuration.
type Config struct {
	Provider string // "anthropic" or "openai"
	APIKey   string // Required
	BaseURL  string // Optional: custom API endpoint
	Model    string // Model name; provider default when empty
}

// Request is one oracle call. Schema and Tools are opaque descriptors: the
// adapters use them to shape the call, the core never interprets them.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	// Timeout bounds this call; 0 leaves the caller's context in charge.
	Timeout time.Duration
	// SchemaName and Schema request strict structured output when set.
	SchemaName string
	Schema     any
	// Tools is an optional tool-set descriptor for the oracle's internal
	// use. Opaque to the core.
	Tools       any
	MaxTokens   int
	Temperature *float64 // nil = model default
}

// Client is the request/response boundary the core drives.
type Client interface {
	// Complete sends one prompt pair and returns the final text blob.
	Complete(ctx context.Context, req Request) (string, error)
	// Model returns the configured model name.
	Model() string
}

// New creates a Client for the configured provider.
// Defaults to Anthropic when no provider is specified.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderAnthropic
	}

	switch provider {
	case ProviderAnthropic:
		return newAnthropicClient(cfg)
	case ProviderOpenAI:
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", provider)
	}
}

// callContext applies the per-request timeout when set.
func callContext(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return context.WithTimeout(ctx, req.Timeout)
	}
	return ctx, func() {}
}

// Temp returns a pointer to a temperature value for Request.Temperature.
func Temp(t float64) *float64 {
	return &t
}
