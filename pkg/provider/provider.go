// Package provider abstracts the generative-language backends the relay
// proxies chat turns to. Every provider streams its reply incrementally
// through a delta callback.
package provider

import (
	"context"
	"fmt"
)

// Role values for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of provider-facing conversation history.
type Message struct {
	Role string
	Text string
}

// Request carries a full conversation to the provider. The last message
// is the pending user turn.
type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int
}

// Provider streams a model reply for a conversation. onDelta is invoked
// once per text increment, in order, on the calling goroutine.
type Provider interface {
	// Stream generates a reply, delivering increments to onDelta. An
	// error before the first delta means nothing was generated.
	Stream(ctx context.Context, req Request, onDelta func(text string)) error

	// Name returns the provider name.
	Name() string
}

// Config selects and authenticates a provider backend.
type Config struct {
	Provider string // gemini, openai, anthropic, scripted
	APIKey   string
}

// New creates a provider from config.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(cfg.APIKey), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey), nil
	case "scripted":
		return NewScriptedEcho(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
