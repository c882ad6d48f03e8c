package store

import (
	"context"
	"fmt"

	"github.com/juchong/vllm-dashboard/internal/core"
)

// The Store doubles as the tracker's journal: download lifecycle
// transitions land in the events table as they happen.

// DownloadStarted records a newly accepted download task.
func (s *Store) DownloadStarted(ctx context.Context, taskID, modelName string) error {
	return s.AppendEvent(ctx, EventDownloadStarted, modelName, "task "+taskID)
}

// DownloadFinished records a task reaching completed or failed.
func (s *Store) DownloadFinished(ctx context.Context, taskID, modelName string, status core.DownloadStatus, detail string) error {
	return s.AppendEvent(ctx, EventDownloadFinished, modelName,
		fmt.Sprintf("task %s %s: %s", taskID, status, detail))
}

// DownloadCancelled records a user-initiated cancellation.
func (s *Store) DownloadCancelled(ctx context.Context, taskID, modelName string) error {
	return s.AppendEvent(ctx, EventDownloadCancelled, modelName, "task "+taskID)
}
