// Package provider implements the client layer for LLM vendors. Two wire
// dialects are supported: OpenAI-compatible chat completions and the
// Anthropic messages API. Each dialect is handled by an adapter built on the
// vendor's official SDK; the Client wraps an adapter with transport policy
// (timeout, retry with backoff, circuit breaking) and classified errors.
package provider

import (
	"context"
	"fmt"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/config"
)

// Config holds the resolved connection parameters for one provider. It is
// immutable for the lifetime of a client; switching providers means building
// a new client against the same message history.
type Config struct {
	ID          string  // provider name from the configuration (e.g. "openai")
	Dialect     string  // config.DialectOpenAI or config.DialectAnthropic
	BaseURL     string
	APIKey      string  // empty for local providers; no auth header is sent
	KeyEnv      string  // env var the key came from, for error guidance
	Model       string
	MaxTokens   int
	Temperature float64
}

// adapter is the dialect-specific half of a client: it builds the vendor
// wire request from a neutral ChatRequest and parses the vendor response
// back into a neutral ChatResponse. The set of dialects is closed; adding a
// vendor is a new case in newAdapter, not a plugin.
type adapter interface {
	send(ctx context.Context, req chat.ChatRequest, onDelta func(string)) (*chat.ChatResponse, error)
}

// newAdapter returns the adapter for the config's dialect.
func newAdapter(cfg Config) (adapter, error) {
	switch cfg.Dialect {
	case config.DialectOpenAI:
		return newOpenAIAdapter(cfg), nil
	case config.DialectAnthropic:
		return newAnthropicAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown dialect %q", cfg.ID, cfg.Dialect)
	}
}
