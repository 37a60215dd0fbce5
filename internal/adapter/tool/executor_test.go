package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeTool is a scriptable tool for registry and executor tests.
type fakeTool struct {
	name    string
	schema  json.RawMessage
	result  *domain.ToolResult
	err     error
	called  int
	lastCtx context.Context
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "herramienta de prueba" }

func (f *fakeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: f.name, Description: f.Description(), Parameters: f.schema}
}

func (f *fakeTool) Execute(ctx context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	f.called++
	f.lastCtx = ctx
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.ToolResult{Content: `{"ok":true}`}, nil
}

func newTestRegistry(t *testing.T, tools ...domain.Tool) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, r.Register(tl))
	}
	return r
}

func TestExecutorRunSuccess(t *testing.T) {
	ft := &fakeTool{name: "consultar_catalogo", result: &domain.ToolResult{Content: `{"plans":[]}`}}
	e := NewExecutor(newTestRegistry(t, ft), nil, 0, testLogger())

	out := e.Run(context.Background(), domain.ToolCall{
		ID: "c1", Name: "consultar_catalogo", Arguments: json.RawMessage(`{}`),
	})
	assert.Equal(t, `{"plans":[]}`, out)
	assert.Equal(t, 1, ft.called)
}

func TestExecutorRunUnknownToolReturnsErrorJSON(t *testing.T) {
	e := NewExecutor(newTestRegistry(t), nil, 0, testLogger())

	out := e.Run(context.Background(), domain.ToolCall{
		ID: "c1", Name: "no_existe", Arguments: json.RawMessage(`{}`),
	})

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "unknown tool: no_existe")
}

func TestExecutorRunToolErrorReturnsErrorJSON(t *testing.T) {
	ft := &fakeTool{name: "fallona", err: errors.New("servicio caído")}
	e := NewExecutor(newTestRegistry(t, ft), nil, 0, testLogger())

	out := e.Run(context.Background(), domain.ToolCall{Name: "fallona", Arguments: json.RawMessage(`{}`)})

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "servicio caído")
}

func TestExecutorRunErrorResultBecomesErrorJSON(t *testing.T) {
	ft := &fakeTool{name: "parcial", result: &domain.ToolResult{IsError: true, Content: "sin resultados"}}
	e := NewExecutor(newTestRegistry(t, ft), nil, 0, testLogger())

	out := e.Run(context.Background(), domain.ToolCall{Name: "parcial", Arguments: json.RawMessage(`{}`)})

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "sin resultados", payload["error"])
}

func TestExecutorRunAppliesTimeout(t *testing.T) {
	ft := &fakeTool{name: "lenta"}
	e := NewExecutor(newTestRegistry(t, ft), nil, 50*time.Millisecond, testLogger())

	e.Run(context.Background(), domain.ToolCall{Name: "lenta", Arguments: json.RawMessage(`{}`)})

	require.NotNil(t, ft.lastCtx)
	deadline, ok := ft.lastCtx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 40*time.Millisecond)
}

func TestExecutorRunRateLimited(t *testing.T) {
	ft := &fakeTool{name: "cara"}
	limiter := NewRateLimiter(1, 1) // one call per minute, burst 1
	e := NewExecutor(newTestRegistry(t, ft), limiter, 0, testLogger())

	call := domain.ToolCall{Name: "cara", Arguments: json.RawMessage(`{}`)}

	first := e.Run(context.Background(), call)
	assert.NotContains(t, first, "rate limit")

	second := e.Run(context.Background(), call)
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(second), &payload))
	assert.Contains(t, payload["error"], "rate limit")
	assert.Equal(t, 1, ft.called)
}

func TestExecutorSchemas(t *testing.T) {
	e := NewExecutor(newTestRegistry(t,
		&fakeTool{name: "a"},
		&fakeTool{name: "b"},
	), nil, 0, testLogger())

	schemas := e.Schemas()
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestRegistryDuplicateName(t *testing.T) {
	r := newTestRegistry(t, &fakeTool{name: "x"})
	assert.Error(t, r.Register(&fakeTool{name: "x"}))
}

func TestRegistryRejectsBrokenSchema(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&fakeTool{name: "rota", schema: json.RawMessage(`{"type":`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rota")
}

func TestRegistryAlwaysValidatesArguments(t *testing.T) {
	ft := &fakeTool{
		name: "estricta",
		schema: json.RawMessage(`{
			"type": "object",
			"properties": {"monto": {"type": "number"}},
			"required": ["monto"]
		}`),
	}
	e := NewExecutor(newTestRegistry(t, ft), nil, 0, testLogger())

	out := e.Run(context.Background(), domain.ToolCall{Name: "estricta", Arguments: json.RawMessage(`{}`)})

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "schema validation failed")
	assert.Zero(t, ft.called)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("no_existe")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestRateLimiterIsPerTool(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	// A different tool has its own bucket.
	assert.True(t, limiter.Allow("b"))
}
