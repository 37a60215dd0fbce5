package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
// The set of schemas is fixed at startup and advertised to the model
// on every iteration.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is the model's request to invoke a named tool. ID is an
// opaque correlation token issued by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool. Content is a
// JSON-encoded payload fed back to the model.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Tool is the interface every registered tool implements.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor dispatches tool calls by name. Run always returns a
// JSON string: unknown tools and tool failures come back as
// {"error": ...} payloads so the model can react, never as an error
// unwinding the conversation loop.
type ToolExecutor interface {
	Run(ctx context.Context, call ToolCall) string
	Schemas() []ToolSchema
}
