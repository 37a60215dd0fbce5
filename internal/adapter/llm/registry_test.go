package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/config"
)

type stubProvider struct {
	name string
	resp *domain.ChatResponse
	err  error
}

func (s *stubProvider) Chat(context.Context, domain.ChatRequest) (*domain.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{name: "openai"}))

	p, err := r.Get("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestRegistryDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&stubProvider{name: "openai"}))
	assert.Error(t, r.Register(&stubProvider{name: "openai"}))
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("no-existe")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestBuildWiresDefaultProvider(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "local",
		Providers: []config.ProviderConfig{
			{Name: "openai", Type: "openai", Model: "gpt-4o-mini"},
			{Name: "local", Type: "ollama", Model: "llama3"},
		},
	}

	registry, def, err := Build(cfg, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "local", def.Name())
	assert.ElementsMatch(t, []string{"openai", "local"}, registry.List())
}

func TestBuildCircuitBreakerWrapping(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "openai",
		Providers: []config.ProviderConfig{
			{Name: "openai", Type: "openai", Model: "gpt-4o-mini"},
		},
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true},
	}

	_, def, err := Build(cfg, testLogger())
	require.NoError(t, err)

	_, ok := def.(*CircuitBreakerProvider)
	assert.True(t, ok, "default provider should be breaker-wrapped")
}

func TestBuildUnknownProviderType(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "x",
		Providers:       []config.ProviderConfig{{Name: "x", Type: "telepathy"}},
	}
	_, _, err := Build(cfg, testLogger())
	assert.Error(t, err)
}

func TestBuildMissingDefaultProvider(t *testing.T) {
	cfg := config.LLMConfig{
		DefaultProvider: "no-existe",
		Providers:       []config.ProviderConfig{{Name: "openai", Type: "openai"}},
	}
	_, _, err := Build(cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubProvider{name: "flaky", err: errors.New("upstream down")}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		Enabled:     true,
		MaxFailures: 3,
	}, testLogger())

	ctx := context.Background()
	req := domain.ChatRequest{Model: "m"}

	for i := 0; i < 3; i++ {
		_, err := cb.Chat(ctx, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream down")
	}

	// Breaker is now open: calls fail fast without touching the provider.
	inner.err = nil
	inner.resp = &domain.ChatResponse{}
	_, err := cb.Chat(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	inner := &stubProvider{name: "ok", resp: &domain.ChatResponse{ID: "r1"}}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{Enabled: true}, testLogger())

	resp, err := cb.Chat(context.Background(), domain.ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "ok", cb.Name())
}
