package threads

import (
	"context"
	"fmt"
)

// RecordSettingsSubmission marks the settings form shown by toolCallID as
// submitted. Re-submitting overwrites the previous record.
func (s *Store) RecordSettingsSubmission(ctx context.Context, toolCallID, settingsKey string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO settings_submissions (tool_call_id, settings_key, submitted_at) VALUES (?, ?, ?)",
		toolCallID, settingsKey, formatTime(now()))
	if err != nil {
		return fmt.Errorf("record settings submission: %w", err)
	}
	return nil
}

// SettingsSubmitted reports whether the form of toolCallID was submitted.
func (s *Store) SettingsSubmitted(ctx context.Context, toolCallID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM settings_submissions WHERE tool_call_id = ?", toolCallID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check settings submission: %w", err)
	}
	return n > 0, nil
}
