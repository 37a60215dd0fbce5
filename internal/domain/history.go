package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Call status values for persisted model-call records.
const (
	CallStatusOK    = "ok"
	CallStatusError = "error"
)

// CallRecord is the durable accounting row written once per model call.
// Input holds the serialized turn set sent to the model. Records are
// append-only: created once, never updated or deleted.
type CallRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Input          json.RawMessage `json:"input"`
	Status         string          `json:"status"`
	Cost           float64         `json:"cost"`
	TokensIn       int             `json:"tokens_in"`
	TokensOut      int             `json:"tokens_out"`
	ModelName      string          `json:"model_name"`
	CreatedAt      time.Time       `json:"created_at"`
}

// HistoryStore is the conversation memory contract. Recent returns the
// most recent turns in chronological order; Append preserves the exact
// turn order produced by the loop, including interleaved tool turns.
type HistoryStore interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Append(ctx context.Context, conversationID string, turns []Message) error
	RecordCall(ctx context.Context, rec CallRecord) error
}
