// Package conversation persists chat history per conversation id so
// the orchestration loop can be resumed across process restarts.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/signal42/campaign-agent/internal/llm"
)

// DefaultMaxTurns caps stored messages per conversation. Older entries
// are trimmed first; the cap keeps prompt sizes bounded.
const DefaultMaxTurns = 40

// Store persists conversation history in SQLite.
type Store struct {
	db       *sql.DB
	maxTurns int
}

// NewStore opens (creating if needed) the conversation database at
// dbPath. maxTurns <= 0 selects DefaultMaxTurns.
func NewStore(dbPath string, maxTurns int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewStoreWithDB(db, maxTurns)
}

// NewStoreWithDB wraps an existing connection.
func NewStoreWithDB(db *sql.DB, maxTurns int) (*Store, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	s := &Store{db: db, maxTurns: maxTurns}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// History returns the stored messages for a conversation in order.
func (s *Store) History(ctx context.Context, conversationID string) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []llm.Message
	for rows.Next() {
		var (
			m          llm.Message
			toolCalls  sql.NullString
			toolCallID sql.NullString
		)
		if err := rows.Scan(&m.Role, &m.Content, &toolCalls, &toolCallID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		m.ToolCallID = toolCallID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// Append stores messages at the end of a conversation and trims the
// oldest entries past the turn cap.
func (s *Store) Append(ctx context.Context, conversationID string, messages []llm.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range messages {
		toolCalls := ""
		if len(m.ToolCalls) > 0 {
			b, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("encode tool calls: %w", err)
			}
			toolCalls = string(b)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (conversation_id, role, content, tool_calls, tool_call_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, conversationID, m.Role, m.Content, toolCalls, m.ToolCallID, now)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := s.trim(ctx, tx, conversationID); err != nil {
		return err
	}

	return tx.Commit()
}

// trim drops the oldest messages past the turn cap. The cut lands on a
// user turn, never mid tool exchange: a history opening with a tool
// result whose tool_use partner was deleted is rejected by the model
// API. When the retained window holds no user turn, the plain window
// cut applies so the cap still binds.
func (s *Store) trim(ctx context.Context, tx *sql.Tx, conversationID string) error {
	row := tx.QueryRowContext(ctx, `
		SELECT MIN(CASE WHEN role = 'user' THEN id END), MIN(id)
		FROM (
			SELECT id, role FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		) AS recent
	`, conversationID, s.maxTurns)

	var userCut, windowCut sql.NullInt64
	if err := row.Scan(&userCut, &windowCut); err != nil {
		return fmt.Errorf("find trim boundary: %w", err)
	}

	cut := windowCut
	if userCut.Valid {
		cut = userCut
	}
	if !cut.Valid {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id = ? AND id < ?
	`, conversationID, cut.Int64)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// Clear removes all messages for a conversation.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

// Conversations lists distinct conversation ids with message counts.
func (s *Store) Conversations(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*)
		FROM messages
		GROUP BY conversation_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}
