package store

import (
	"context"
	"fmt"
	"time"
)

// Event kinds recorded in the operations log.
const (
	EventDownloadStarted   = "download_started"
	EventDownloadFinished  = "download_finished"
	EventDownloadCancelled = "download_cancelled"
	EventConfigSwitched    = "config_switched"
	EventContainerAction   = "container_action"
	EventModelDeleted      = "model_deleted"
	EventModelRenamed      = "model_renamed"
)

// Event is one entry in the operations log.
type Event struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendEvent records an operation. Failures are the caller's to log; the
// event log never blocks the operation that produced the event.
func (s *Store) AppendEvent(ctx context.Context, kind, subject, detail string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO events (kind, subject, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, kind, subject, detail, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit, offset int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, subject, detail, created_at
		FROM events
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Subject, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// PruneEvents deletes events older than the retention window.
func (s *Store) PruneEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.DB.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}
