package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/togpt/togpt/internal/config"
)

// NewProvider builds the provider for a model name ("gemini", "grok",
// "mock"). A backend without credentials still yields a provider; every call
// to it fails with an authorization error so the chat shows why.
func NewProvider(ctx context.Context, model string, cfg *config.Config) (Provider, error) {
	switch model {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return unavailableProvider{name: "gemini", reason: "GEMINI_API_KEY is not set"}, nil
		}
		return NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "grok":
		if cfg.XAI.APIKey == "" {
			return unavailableProvider{name: "xai", reason: "XAI_API_KEY is not set"}, nil
		}
		return NewXAIProvider(cfg.XAI.APIKey, cfg.XAI.Model, cfg.XAI.BaseURL), nil
	case "mock":
		return NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("unknown model: %s (valid: gemini, grok, mock)", model)
	}
}

type unavailableProvider struct {
	name   string
	reason string
}

func (p unavailableProvider) Name() string { return p.name + " (unconfigured)" }

func (p unavailableProvider) Stream(context.Context, Request) (Stream, error) {
	return nil, &StatusError{Provider: p.name, StatusCode: 401, Err: errors.New(p.reason)}
}
