package llm

import (
	"fmt"
	"log/slog"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/config"
)

// NewProvider builds a concrete provider from config. Callers receive
// the domain.LLMProvider interface and never depend on the vendor type.
func NewProvider(cfg config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch cfg.Type {
	case "openai", "openai-compatible", "":
		return NewOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	case "ollama":
		return NewOllamaProvider(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// Build assembles the provider registry from config and returns the
// default provider, wrapped with a circuit breaker when enabled.
func Build(cfg config.LLMConfig, logger *slog.Logger) (*Registry, domain.LLMProvider, error) {
	registry := NewRegistry()

	for _, pc := range cfg.Providers {
		provider, err := NewProvider(pc, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}

		if cfg.CircuitBreaker.Enabled {
			provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
		}

		if err := registry.Register(provider); err != nil {
			return nil, nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	defaultProvider, err := registry.Get(cfg.DefaultProvider)
	if err != nil {
		return nil, nil, fmt.Errorf("default llm provider: %w", err)
	}

	return registry, defaultProvider, nil
}
