package threads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Thread is a conversation.
type Thread struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// CreateThread inserts a new thread.
func (s *Store) CreateThread(ctx context.Context, title string) (*Thread, error) {
	ts := now()
	th := &Thread{ID: uuid.New().String(), Title: title, CreatedAt: ts, UpdatedAt: ts}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO threads (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		th.ID, nullable(title), formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return th, nil
}

// EnsureThread returns the thread with id, creating it when missing.
func (s *Store) EnsureThread(ctx context.Context, id, title string) (*Thread, error) {
	th, err := s.GetThread(ctx, id)
	if err == nil {
		return th, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	ts := now()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO threads (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		id, nullable(title), formatTime(ts), formatTime(ts))
	if err != nil {
		return nil, fmt.Errorf("ensure thread %s: %w", id, err)
	}
	return s.GetThread(ctx, id)
}

// GetThread returns the thread with id or ErrNotFound.
func (s *Store) GetThread(ctx context.Context, id string) (*Thread, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM threads WHERE id = ?", id)
	th, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", id, err)
	}
	return th, nil
}

// ListThreads returns all threads, most recently updated first.
func (s *Store) ListThreads(ctx context.Context) ([]*Thread, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM threads ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []*Thread
	for rows.Next() {
		th, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

// UpdateTitle renames a thread.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	return s.exec(ctx, id, "UPDATE threads SET title = ?, updated_at = ? WHERE id = ?",
		nullable(title), formatTime(now()), id)
}

// Touch bumps updated_at.
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.exec(ctx, id, "UPDATE threads SET updated_at = ? WHERE id = ?", formatTime(now()), id)
}

// DeleteThread removes a thread and, by cascade, its messages.
func (s *Store) DeleteThread(ctx context.Context, id string) error {
	return s.exec(ctx, id, "DELETE FROM threads WHERE id = ?", id)
}

func (s *Store) exec(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("thread %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanThread(sc scanner) (*Thread, error) {
	var (
		th               Thread
		title            sql.NullString
		created, updated string
	)
	if err := sc.Scan(&th.ID, &title, &created, &updated); err != nil {
		return nil, err
	}
	th.Title = title.String
	th.CreatedAt = parseTime(created)
	th.UpdatedAt = parseTime(updated)
	return &th, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
