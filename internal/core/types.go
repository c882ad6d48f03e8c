package core

import (
	"time"
)

// DownloadStatus describes the lifecycle state of a download task.
type DownloadStatus string

const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusFailed      DownloadStatus = "failed"
	DownloadStatusCancelled   DownloadStatus = "cancelled"
)

// Terminal reports whether no further transition is possible from s.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case DownloadStatusCompleted, DownloadStatusFailed, DownloadStatusCancelled:
		return true
	}
	return false
}

// DownloadTask tracks one model fetch attempt. All mutable fields are
// guarded by the tracker mutex.
type DownloadTask struct {
	ID              string
	ModelName       string
	Revision        *string
	Status          DownloadStatus
	Progress        string
	Error           *string
	StartedAt       time.Time
	CompletedAt     *time.Time
	DownloadPath    string
	CancelRequested bool
}

// TaskView is a point-in-time snapshot of a task combined with live-computed
// fields (on-disk size, elapsed time measured on the server clock).
type TaskView struct {
	ID                  string         `json:"id"`
	ModelName           string         `json:"model_name"`
	Revision            *string        `json:"revision"`
	Status              DownloadStatus `json:"status"`
	Progress            string         `json:"progress"`
	Error               *string        `json:"error"`
	StartedAt           string         `json:"started_at"`
	CompletedAt         *string        `json:"completed_at"`
	DownloadedSize      int64          `json:"downloaded_size"`
	DownloadedSizeHuman string         `json:"downloaded_size_human"`
	ElapsedSeconds      int            `json:"elapsed_seconds"`
}
