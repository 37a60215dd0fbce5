package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/edwindpineda/bitel-portabilidad-sub000/internal/domain"
)

// Store implements domain.HistoryStore backed by SQLite. Turn order is
// preserved through ULID primary keys (monotonic within a process) plus
// rowid insertion order; reads reverse a newest-first query back to
// chronological order.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var _ domain.HistoryStore = (*Store)(nil)

// New opens (or creates) a SQLite database at path, runs migrations,
// and returns a ready Store.
func New(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrHistoryStore, err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", domain.ErrHistoryStore, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrHistoryStore, err)
	}

	return &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID(t time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Recent implements domain.HistoryStore. It queries newest-first and
// reverses to chronological order.
func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, name, tool_calls, tool_call_id, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY rowid DESC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query turns: %v", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var newestFirst []domain.Message
	for rows.Next() {
		var msg domain.Message
		var toolCalls, createdAt string
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Name, &toolCalls, &msg.ToolCallID, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", domain.ErrHistoryStore, err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("%w: decode tool calls: %v", domain.ErrHistoryStore, err)
			}
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			msg.Timestamp = ts
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turns: %v", domain.ErrHistoryStore, err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(newestFirst)-1; i < j; i, j = i+1, j-1 {
		newestFirst[i], newestFirst[j] = newestFirst[j], newestFirst[i]
	}
	return newestFirst, nil
}

// Append implements domain.HistoryStore. Turns are inserted in a single
// transaction in the exact order given.
func (s *Store) Append(ctx context.Context, conversationID string, turns []domain.Message) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrHistoryStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, content, name, tool_calls, tool_call_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", domain.ErrHistoryStore, err)
	}
	defer stmt.Close()

	for _, turn := range turns {
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		var toolCalls string
		if len(turn.ToolCalls) > 0 {
			encoded, err := json.Marshal(turn.ToolCalls)
			if err != nil {
				return fmt.Errorf("%w: encode tool calls: %v", domain.ErrHistoryStore, err)
			}
			toolCalls = string(encoded)
		}

		if _, err := stmt.ExecContext(ctx,
			s.newID(ts), conversationID, turn.Role, turn.Content,
			turn.Name, toolCalls, turn.ToolCallID, ts.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("%w: insert turn: %v", domain.ErrHistoryStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

// RecordCall implements domain.HistoryStore. One row per model call,
// never updated or deleted.
func (s *Store) RecordCall(ctx context.Context, rec domain.CallRecord) error {
	if rec.ID == "" {
		rec.ID = s.newID(time.Now())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_calls (id, conversation_id, input, status, cost, tokens_in, tokens_out, model_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, string(rec.Input), rec.Status,
		rec.Cost, rec.TokensIn, rec.TokensOut, rec.ModelName,
		rec.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("%w: insert call record: %v", domain.ErrHistoryStore, err)
	}
	return nil
}

// Calls returns the call records for a conversation, oldest first.
// Used for cost reporting; the loop itself never reads these.
func (s *Store) Calls(ctx context.Context, conversationID string) ([]domain.CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, input, status, cost, tokens_in, tokens_out, model_name, created_at
		FROM llm_calls
		WHERE conversation_id = ?
		ORDER BY rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: query calls: %v", domain.ErrHistoryStore, err)
	}
	defer rows.Close()

	var records []domain.CallRecord
	for rows.Next() {
		var rec domain.CallRecord
		var input, createdAt string
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &input, &rec.Status,
			&rec.Cost, &rec.TokensIn, &rec.TokensOut, &rec.ModelName, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan call record: %v", domain.ErrHistoryStore, err)
		}
		rec.Input = json.RawMessage(input)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
