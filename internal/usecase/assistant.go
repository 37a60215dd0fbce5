package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/config"
	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/infra/tracer"
)

const (
	defaultMaxToolRounds = 5
	defaultHistoryWindow = 20
)

// AssistantDeps collects everything the assistant needs to serve a turn.
type AssistantDeps struct {
	LLM     domain.LLMProvider
	Tools   domain.ToolExecutor
	History domain.HistoryStore
	Prompt  *PromptRenderer
	Logger  *slog.Logger

	Model         string
	Temperature   float64
	MaxToolRounds int
	HistoryWindow int
	Pricing       map[string]config.Pricing
}

// Assistant runs the ask-model/execute-tools conversation loop. One
// Assistant serves many conversations; per-turn state lives on the
// stack of Reply.
type Assistant struct {
	llm     domain.LLMProvider
	tools   domain.ToolExecutor
	history domain.HistoryStore
	prompt  *PromptRenderer
	logger  *slog.Logger

	model         string
	temperature   float64
	maxToolRounds int
	historyWindow int
	pricing       map[string]config.Pricing
}

// NewAssistant builds an Assistant from its dependencies, applying
// defaults for unset knobs.
func NewAssistant(deps AssistantDeps) *Assistant {
	if deps.MaxToolRounds <= 0 {
		deps.MaxToolRounds = defaultMaxToolRounds
	}
	if deps.HistoryWindow <= 0 {
		deps.HistoryWindow = defaultHistoryWindow
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Assistant{
		llm:           deps.LLM,
		tools:         deps.Tools,
		history:       deps.History,
		prompt:        deps.Prompt,
		logger:        deps.Logger,
		model:         deps.Model,
		temperature:   deps.Temperature,
		maxToolRounds: deps.MaxToolRounds,
		historyWindow: deps.HistoryWindow,
		pricing:       deps.Pricing,
	}
}

// Reply processes one inbound user message and returns the assistant's
// final text answer.
//
// The loop asks the model with tools enabled for up to maxToolRounds
// rounds. Each round either terminates (the model answered in plain
// text) or executes the requested tool calls in order and feeds the
// results back. If the cap is exhausted, one last call is made with
// tools disabled so the model must produce text. Every model call is
// recorded for accounting; a persistence failure after the answer is
// computed is logged but never hides the answer from the caller.
func (a *Assistant) Reply(ctx context.Context, conversationID, message string, snap domain.ContextSnapshot) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "assistant.reply")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("conversation.id", conversationID))

	history, err := a.history.Recent(ctx, conversationID, a.historyWindow)
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("assistant.reply", err)
	}

	system, err := a.prompt.Render(snap, time.Now())
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.WrapOp("assistant.reply", err)
	}

	userTurn := domain.Message{Role: domain.RoleUser, Content: message, Timestamp: time.Now()}

	// Turns sent to the model this call: system prompt, windowed
	// history, the new user message, then whatever the loop appends.
	turns := make([]domain.Message, 0, len(history)+2)
	turns = append(turns, domain.Message{Role: domain.RoleSystem, Content: system})
	turns = append(turns, history...)
	turns = append(turns, userTurn)

	// newTurns is what gets persisted at the end: the user message plus
	// every assistant and tool turn produced during this call.
	newTurns := []domain.Message{userTurn}

	answer := ""
	for round := 0; round <= a.maxToolRounds; round++ {
		// After maxToolRounds tool rounds the model no longer gets the
		// option to call tools, forcing a text answer.
		var schemas []domain.ToolSchema
		if round < a.maxToolRounds {
			schemas = a.tools.Schemas()
		}

		resp, err := a.ask(ctx, conversationID, turns, schemas)
		if err != nil {
			tracer.RecordError(span, err)
			return "", err
		}

		assistantTurn := resp.Message
		assistantTurn.Timestamp = time.Now()
		turns = append(turns, assistantTurn)
		newTurns = append(newTurns, assistantTurn)

		if len(assistantTurn.ToolCalls) == 0 {
			if assistantTurn.Content == "" {
				err := domain.NewDomainError("assistant.reply", domain.ErrEmptyResponse,
					"model returned neither text nor tool calls")
				tracer.RecordError(span, err)
				a.logger.Error("model protocol violation",
					"conversation_id", conversationID, "round", round, "error", err)
				return "", err
			}
			answer = assistantTurn.Content
			break
		}

		// Tools were not advertised on the final round, so a tool-call
		// response here is a protocol violation. Nothing may execute:
		// the cap bounds tool rounds for any model behavior.
		if round == a.maxToolRounds {
			err := domain.NewDomainError("assistant.reply", domain.ErrEmptyResponse,
				"model requested tools on the final round with tools disabled")
			tracer.RecordError(span, err)
			a.logger.Error("model protocol violation",
				"conversation_id", conversationID, "round", round, "error", err)
			return "", err
		}

		// The model must emit well-formed arguments for every call in
		// the batch before any of them runs.
		for _, call := range assistantTurn.ToolCalls {
			if !json.Valid(call.Arguments) {
				err := domain.NewDomainError("assistant.reply", domain.ErrMalformedToolArgs,
					fmt.Sprintf("tool %s: arguments are not valid JSON", call.Name))
				tracer.RecordError(span, err)
				a.logger.Error("model protocol violation",
					"conversation_id", conversationID, "round", round, "error", err)
				return "", err
			}
		}

		for _, call := range assistantTurn.ToolCalls {
			if ctx.Err() != nil {
				tracer.RecordError(span, ctx.Err())
				return "", domain.WrapOp("assistant.reply", ctx.Err())
			}
			content := a.tools.Run(ctx, call)
			toolTurn := domain.Message{
				Role:       domain.RoleTool,
				Content:    content,
				Name:       call.Name,
				ToolCallID: call.ID,
				Timestamp:  time.Now(),
			}
			turns = append(turns, toolTurn)
			newTurns = append(newTurns, toolTurn)
		}
	}

	if err := a.history.Append(ctx, conversationID, newTurns); err != nil {
		// The answer is already computed; losing it over a storage
		// hiccup would be worse than a gap in history.
		a.logger.Error("persist conversation turns failed",
			"conversation_id", conversationID, "error", err)
	}

	tracer.SetOK(span)
	return answer, nil
}

// ask performs one model call and writes its accounting record. The
// record is written for failed calls too, with zero usage.
func (a *Assistant) ask(ctx context.Context, conversationID string, turns []domain.Message, schemas []domain.ToolSchema) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "assistant.ask")
	defer span.End()

	req := domain.ChatRequest{
		Model:       a.model,
		Messages:    turns,
		Tools:       schemas,
		Temperature: a.temperature,
	}

	resp, chatErr := a.llm.Chat(ctx, req)

	rec := domain.CallRecord{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Status:         domain.CallStatusOK,
		ModelName:      a.model,
		CreatedAt:      time.Now(),
	}
	if input, err := json.Marshal(turns); err == nil {
		rec.Input = input
	}
	if chatErr != nil {
		rec.Status = domain.CallStatusError
	} else {
		rec.TokensIn = resp.Usage.PromptTokens
		rec.TokensOut = resp.Usage.CompletionTokens
		rec.ModelName = resp.Model
		rec.Cost = a.callCost(resp.Model, resp.Usage)
	}
	if err := a.history.RecordCall(ctx, rec); err != nil {
		a.logger.Warn("record model call failed",
			"conversation_id", conversationID, "error", err)
	}

	if chatErr != nil {
		tracer.RecordError(span, chatErr)
		return nil, domain.WrapOp("assistant.ask", chatErr)
	}
	span.SetAttributes(
		tracer.IntAttr("llm.tokens.prompt", resp.Usage.PromptTokens),
		tracer.IntAttr("llm.tokens.completion", resp.Usage.CompletionTokens),
	)
	return resp, nil
}

// callCost prices a call from the per-model table. Unknown models cost
// zero rather than failing the turn.
func (a *Assistant) callCost(model string, usage domain.Usage) float64 {
	p, ok := a.pricing[model]
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)/1000.0*p.InputPer1K +
		float64(usage.CompletionTokens)/1000.0*p.OutputPer1K
}
