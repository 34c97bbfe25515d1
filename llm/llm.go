package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/docqa/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client produces a completion for a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)
}

// GenerateSettings holds per-call sampling settings. A nil Temperature leaves
// the provider default in place.
type GenerateSettings struct {
	Temperature *float32
}

type GenerateOption func(*GenerateSettings)

// WithTemperature sets the sampling temperature for a single call.
func WithTemperature(t float32) GenerateOption {
	return func(s *GenerateSettings) {
		s.Temperature = &t
	}
}

// ApplyOptions folds opts into a GenerateSettings value.
func ApplyOptions(opts []GenerateOption) GenerateSettings {
	var settings GenerateSettings
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
