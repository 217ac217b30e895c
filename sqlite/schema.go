package sqlite

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	kind INTEGER NOT NULL DEFAULT 0,
	visibility INTEGER NOT NULL DEFAULT 0,
	timer_ns INTEGER NULL,
	pending_delete INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL REFERENCES threads (id),
	body TEXT NULL,
	quote TEXT NULL,
	preview TEXT NULL,
	sticker TEXT NULL,
	state INTEGER NOT NULL DEFAULT 0,
	attempts INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NULL,
	created_at TIMESTAMP NOT NULL,
	sent_at TIMESTAMP NULL,
	claimed_at INTEGER NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_state_id ON messages (state, id);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages (thread_id);

CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	message_id TEXT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
	file_name TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL,
	size INTEGER NOT NULL,
	data BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments (message_id);
`

// Schema returns the store's DDL.
func Schema() string {
	return schema
}

// Migrate applies the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)

	return err
}
