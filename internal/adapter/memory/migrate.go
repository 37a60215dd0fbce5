package memory

import "database/sql"

// migrate creates the schema if it doesn't exist. Both tables are
// append-only: rows are inserted by the loop and never updated.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS turns (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL DEFAULT '',
			name            TEXT NOT NULL DEFAULT '',
			tool_calls      TEXT NOT NULL DEFAULT '',
			tool_call_id    TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_turns_conversation
			ON turns(conversation_id);

		CREATE TABLE IF NOT EXISTS llm_calls (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			input           TEXT NOT NULL,
			status          TEXT NOT NULL,
			cost            REAL NOT NULL DEFAULT 0,
			tokens_in       INTEGER NOT NULL DEFAULT 0,
			tokens_out      INTEGER NOT NULL DEFAULT 0,
			model_name      TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_llm_calls_conversation
			ON llm_calls(conversation_id);
	`
	_, err := db.Exec(schema)
	return err
}
