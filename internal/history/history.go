// Package history is the durable per-conversation message log backing
// the pagination loader. It mirrors the session's confirmed messages to
// sqlite so older pages survive a reload.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/teamdeck/teamdeck/internal/types"
)

// Store wraps the sqlite history database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("history pragma: %w", err)
		}
	}
	s := &Store{db: conn}
	if err := s.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id TEXT PRIMARY KEY,
			conversation TEXT NOT NULL,
			ts INTEGER NOT NULL,
			author TEXT NOT NULL,
			deleted_at INTEGER,
			payload TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_conv_ts
			ON chat_messages(conversation, ts, id);
	`)
	if err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append upserts one message under its conversation key. Replaying the
// same id refreshes the stored payload, so at-least-once delivery is
// safe.
func (s *Store) Append(ctx context.Context, conversation string, msg types.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, conversation, ts, author, deleted_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation = excluded.conversation,
			ts = excluded.ts,
			author = excluded.author,
			deleted_at = excluded.deleted_at,
			payload = excluded.payload
	`, msg.ID, conversation, msg.TS, msg.From, msg.DeletedAt, string(payload))
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Delete hard-removes a row. Only id-correlation cleanup uses this:
// when the server assigns its own id to an optimistic send, the row
// stored under the client-generated id is superseded by the echo.
// Remote deletes go through MarkDeleted instead.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chat_messages WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// MarkDeleted records a soft delete for an already-persisted message.
// Unknown ids are ignored.
func (s *Store) MarkDeleted(ctx context.Context, id string, deletedAt int64) error {
	row := s.db.QueryRowContext(ctx, "SELECT payload FROM chat_messages WHERE id = ?", id)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("load message for delete: %w", err)
	}
	var msg types.Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode message for delete: %w", err)
	}
	if msg.DeletedAt == nil {
		msg.DeletedAt = &deletedAt
	}
	updated, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message for delete: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"UPDATE chat_messages SET deleted_at = ?, payload = ? WHERE id = ?",
		*msg.DeletedAt, string(updated), id)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

// PageBefore returns up to limit messages strictly older than the
// cursor, in chronological order. A nil cursor returns the newest page.
func (s *Store) PageBefore(ctx context.Context, conversation string, before *types.MessageCursor, limit int) ([]types.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := "SELECT payload FROM chat_messages WHERE conversation = ?"
	params := []any{conversation}
	if before != nil {
		query += " AND (ts < ? OR (ts = ? AND id < ?))"
		params = append(params, before.TS, before.TS, before.ID)
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("page history: %w", err)
	}
	defer rows.Close()

	var page []types.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		var msg types.Message
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		page = append(page, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("page history: %w", err)
	}

	// Fetched newest-first; reverse to chronological order.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// Count returns the number of stored messages for a conversation.
func (s *Store) Count(ctx context.Context, conversation string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE conversation = ?", conversation)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}
