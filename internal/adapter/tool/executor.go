package tool

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/tracer"
)

// Executor dispatches tool calls against the registry. It implements
// domain.ToolExecutor: unknown names and tool failures are returned as
// {"error": ...} JSON fed back into the conversation, never as errors
// unwinding the loop.
type Executor struct {
	registry *Registry
	limiter  *RateLimiter // nil = unlimited
	timeout  time.Duration
	logger   *slog.Logger
}

var _ domain.ToolExecutor = (*Executor)(nil)

// NewExecutor creates an executor over the given registry. A zero
// timeout disables the per-call deadline.
func NewExecutor(registry *Registry, limiter *RateLimiter, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		limiter:  limiter,
		timeout:  timeout,
		logger:   logger,
	}
}

// Schemas implements domain.ToolExecutor.
func (e *Executor) Schemas() []domain.ToolSchema {
	return e.registry.Schemas()
}

// Run implements domain.ToolExecutor. The returned string is always
// valid JSON.
func (e *Executor) Run(ctx context.Context, call domain.ToolCall) string {
	ctx, span := tracer.StartSpan(ctx, "tool.run",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	t, err := e.registry.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		e.logger.Warn("unknown tool requested", "tool", call.Name)
		return errorJSON("unknown tool: " + call.Name)
	}

	if e.limiter != nil && !e.limiter.Allow(call.Name) {
		err := errors.New("rate limit exceeded for tool " + call.Name)
		tracer.RecordError(span, err)
		e.logger.Warn("tool rate limited", "tool", call.Name)
		return errorJSON(err.Error())
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		e.logger.Error("tool execution failed", "tool", call.Name, "error", err)
		return errorJSON(err.Error())
	}
	if result.IsError {
		e.logger.Warn("tool returned error result", "tool", call.Name, "detail", result.Content)
		return errorJSON(result.Content)
	}

	tracer.SetOK(span)
	e.logger.Debug("tool executed", "tool", call.Name)
	return result.Content
}

// errorJSON encodes a message as an {"error": ...} payload. Marshaling
// a plain string cannot fail, so the output is always parseable.
func errorJSON(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
