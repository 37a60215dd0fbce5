package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/config"
)

func TestAnthropicChatSystemPromptAndToolWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, defaultAnthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// System prompt travels as a top-level parameter, not a message.
		assert.Equal(t, "Eres asesor.", req.System)
		for _, m := range req.Messages {
			assert.NotEqual(t, "system", m.Role)
		}
		assert.Equal(t, defaultAnthropicMaxTokens, req.MaxTokens)

		// Tool results arrive as user messages with tool_result blocks.
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, "user", last.Role)
		require.Len(t, last.Content, 1)
		assert.Equal(t, "tool_result", last.Content[0].Type)
		assert.Equal(t, "toolu-1", last.Content[0].ToolUseID)

		// Tool schemas use input_schema.
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "consultar_catalogo", req.Tools[0].Name)
		assert.JSONEq(t, `{"type":"object"}`, string(req.Tools[0].InputSchema))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg-1",
			Model: "claude-sonnet",
			Role:  "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Con gusto."},
			},
			Usage: anthropicUsage{InputTokens: 30, OutputTokens: 7},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{
		Name:    "anthropic",
		BaseURL: srv.URL,
		APIKey:  "sk-ant-test",
	}, testLogger())

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Model: "claude-sonnet",
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "Eres asesor."},
			{Role: domain.RoleUser, Content: "hola"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
				{ID: "toolu-1", Name: "consultar_catalogo", Arguments: json.RawMessage(`{}`)},
			}},
			{Role: domain.RoleTool, Content: `{"plans":[]}`, ToolCallID: "toolu-1"},
		},
		Tools: []domain.ToolSchema{{
			Name:       "consultar_catalogo",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Con gusto.", resp.Message.Content)
	assert.Equal(t, 30, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
	assert.Equal(t, 37, resp.Usage.TotalTokens)
}

func TestAnthropicChatToolUseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(anthropicResponse{
			ID:   "msg-2",
			Role: "assistant",
			Content: []anthropicContent{
				{Type: "text", Text: "Déjame revisar."},
				{Type: "tool_use", ID: "toolu-9", Name: "consultar_catalogo", Input: json.RawMessage(`{"query":"40GB"}`)},
			},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(config.ProviderConfig{Name: "anthropic", BaseURL: srv.URL}, testLogger())
	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Model:    "claude-sonnet",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "¿qué planes hay?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Déjame revisar.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "toolu-9", resp.Message.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"40GB"}`, string(resp.Message.ToolCalls[0].Arguments))
}
