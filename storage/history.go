package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DispatchEvent is one row of dispatch history. Argument values are never
// stored, only which command ran against which record and how it ended.
type DispatchEvent struct {
	ID        string        `json:"id"`
	Vault     string        `json:"vault"`
	RecordID  string        `json:"record_id"`
	Command   string        `json:"command"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RecordDispatch appends an event to the history. A missing ID is generated.
func (s *SqliteStorage) RecordDispatch(ctx context.Context, ev DispatchEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.StartedAt.IsZero() {
		ev.StartedAt = time.Now()
	}

	var errText interface{}
	if ev.Error != "" {
		errText = ev.Error
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_history
			(id, vault, record_id, command, state, error, exit_code, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Vault, ev.RecordID, ev.Command, ev.State, errText, ev.ExitCode,
		ev.StartedAt.UnixMilli(), ev.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record dispatch: %w", err)
	}
	return nil
}

// RecentDispatches returns up to limit events, newest first.
func (s *SqliteStorage) RecentDispatches(ctx context.Context, limit int) ([]DispatchEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vault, record_id, command, state, error, exit_code, started_at, duration_ms
		FROM dispatch_history
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	events := []DispatchEvent{} // Start with empty slice, not nil
	for rows.Next() {
		var (
			ev       DispatchEvent
			errText  sql.NullString
			started  int64
			duration int64
		)
		if err := rows.Scan(&ev.ID, &ev.Vault, &ev.RecordID, &ev.Command, &ev.State,
			&errText, &ev.ExitCode, &started, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		ev.Error = errText.String
		ev.StartedAt = time.UnixMilli(started)
		ev.Duration = time.Duration(duration) * time.Millisecond
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return events, nil
}
