package threads

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ToolInvocation records one tool call made while producing a message.
type ToolInvocation struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Agent      string          `json:"agent,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     string          `json:"result,omitempty"`
	State      string          `json:"state"` // "call" until a result arrives, then "result"
}

// Message is one entry of a thread.
type Message struct {
	ID              string           `json:"id" yaml:"id"`
	ThreadID        string           `json:"thread_id" yaml:"thread_id"`
	Role            string           `json:"role" yaml:"role"`
	Content         string           `json:"content" yaml:"content"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty" yaml:"tool_invocations,omitempty"`
	CreatedAt       time.Time        `json:"created_at" yaml:"created_at"`
}

// SaveMessage appends a message to a thread and bumps the thread's updated_at.
func (s *Store) SaveMessage(ctx context.Context, threadID, role, content string, calls []ToolInvocation) (*Message, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return nil, fmt.Errorf("save message: invalid role %q", role)
	}

	var invocations sql.NullString
	if len(calls) > 0 {
		data, err := json.Marshal(calls)
		if err != nil {
			return nil, fmt.Errorf("encode tool invocations: %w", err)
		}
		invocations = sql.NullString{String: string(data), Valid: true}
	}

	ts := now()
	m := &Message{
		ID:              uuid.New().String(),
		ThreadID:        threadID,
		Role:            role,
		Content:         content,
		ToolInvocations: calls,
		CreatedAt:       ts,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE threads SET updated_at = ? WHERE id = ?", formatTime(ts), threadID)
	if err != nil {
		return nil, fmt.Errorf("touch thread %s: %w", threadID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, thread_id, role, content, tool_invocations, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.ID, threadID, role, content, invocations, formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit message: %w", err)
	}
	return m, nil
}

// Messages returns the messages of a thread, oldest first.
func (s *Store) Messages(ctx context.Context, threadID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, tool_invocations, created_at
		 FROM messages WHERE thread_id = ? ORDER BY created_at ASC, rowid ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var (
			m           Message
			invocations sql.NullString
			created     string
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &invocations, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(created)
		if invocations.Valid && invocations.String != "" {
			if err := json.Unmarshal([]byte(invocations.String), &m.ToolInvocations); err != nil {
				return nil, fmt.Errorf("decode tool invocations of %s: %w", m.ID, err)
			}
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// DeleteMessage removes a single message.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}
