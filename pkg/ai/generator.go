package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"learnai/pkg/domain"
)

// ChatGenerator produces the next assistant turn for a conversation.
// All LLM providers (Anthropic, OpenAI-compatible, Ollama) implement it.
type ChatGenerator interface {
	Chat(ctx context.Context, systemPrompt string, history []domain.Message) (string, error)
}

const (
	ProviderAnthropic    = "anthropic"
	ProviderOpenAICompat = "openai-compat"
	ProviderOllama       = "ollama"

	defaultMaxTokens = 1024
	defaultTimeout   = 120 * time.Second
)

// Config selects and configures one provider.
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewChatGenerator builds the provider named by cfg.Provider.
func NewChatGenerator(cfg Config) (ChatGenerator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm model required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicGenerator(cfg)
	case ProviderOpenAICompat:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base URL required")
		}
		return NewOpenAICompatGenerator(cfg), nil
	case ProviderOllama:
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL, cfg.Timeout), cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}

// MergeTurns drops blank messages and joins consecutive messages of the same
// role, so the outbound history always alternates between user and assistant.
func MergeTurns(history []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(history))
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == msg.Role {
			out[n-1].Content += "\n\n" + msg.Content
			continue
		}
		out = append(out, msg)
	}
	return out
}
