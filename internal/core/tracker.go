package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/juchong/vllm-dashboard/internal/fsutil"
)

// Fetcher is the collaborator that performs the actual model fetch. Fetch
// blocks until the download finishes and returns a human-readable result
// message. The tracker treats its errors as opaque.
type Fetcher interface {
	Fetch(ctx context.Context, modelName string, revision *string) (string, error)
	ModelsDir() string
}

// Notifier receives a notification when a task reaches a terminal state.
// Matches the notify package interface; failures are logged, never surfaced.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Journal records download lifecycle transitions in the operations log.
// Write-only from the tracker's side: task state is never rebuilt from it.
type Journal interface {
	DownloadStarted(ctx context.Context, taskID, modelName string) error
	DownloadFinished(ctx context.Context, taskID, modelName string, status DownloadStatus, detail string) error
	DownloadCancelled(ctx context.Context, taskID, modelName string) error
}

// ErrDuplicateDownload is returned by Start when the model already has a
// pending or downloading task.
var ErrDuplicateDownload = fmt.Errorf("model is already being downloaded")

// Tracker owns the in-memory download task table. One mutex guards the
// table; workers run one goroutine per task and acquire the lock only for
// short field mutations, never around the fetch call itself.
type Tracker struct {
	fetcher  Fetcher
	logger   *slog.Logger
	notifier Notifier
	journal  Journal

	mu    sync.Mutex
	tasks map[string]*DownloadTask
}

// SetNotifier installs a notifier for terminal task transitions. Optional.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

// SetJournal installs an operations log for lifecycle events. Optional.
func (t *Tracker) SetJournal(j Journal) {
	t.journal = j
}

// NewTracker constructs a tracker around the given fetcher.
func NewTracker(fetcher Fetcher, logger *slog.Logger) *Tracker {
	return &Tracker{
		fetcher: fetcher,
		logger:  logger,
		tasks:   make(map[string]*DownloadTask),
	}
}

// Start registers a new download task and dispatches a background worker for
// it. It returns immediately; progress is observed via Status. The duplicate
// check and the table insert happen atomically under the lock so two
// near-simultaneous submissions for the same model cannot both pass.
func (t *Tracker) Start(modelName string, revision *string) (string, error) {
	task := &DownloadTask{
		ID:        NewTaskID(),
		ModelName: modelName,
		Revision:  revision,
		Status:    DownloadStatusPending,
		StartedAt: time.Now().UTC(),
	}

	t.mu.Lock()
	for _, existing := range t.tasks {
		if existing.ModelName == modelName && !existing.Status.Terminal() {
			t.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDuplicateDownload, modelName)
		}
	}
	t.tasks[task.ID] = task
	t.mu.Unlock()

	t.record(func(ctx context.Context, j Journal) error {
		return j.DownloadStarted(ctx, task.ID, modelName)
	})

	go t.worker(task.ID)

	return task.ID, nil
}

// worker performs the fetch for one task. Cancellation is cooperative: the
// flag is consulted before starting, before the downloading transition and
// after the fetch returns. A cancelled task is never overwritten.
func (t *Tracker) worker(taskID string) {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if !ok || task.CancelRequested {
		t.mu.Unlock()
		return
	}
	task.DownloadPath = filepath.Join(t.fetcher.ModelsDir(), task.ModelName)
	task.Status = DownloadStatusDownloading
	task.Progress = "Starting download..."
	modelName, revision := task.ModelName, task.Revision
	t.mu.Unlock()

	t.logger.Info("download started", "task_id", taskID, "model", modelName)

	// The fetch itself runs without the lock and is not interrupted on
	// cancel; only its eventual result is discarded.
	result, err := t.fetcher.Fetch(context.Background(), modelName, revision)

	t.mu.Lock()
	if task.CancelRequested {
		t.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	if err != nil {
		msg := err.Error()
		task.Status = DownloadStatusFailed
		task.Error = &msg
		task.CompletedAt = &now
		t.mu.Unlock()
		t.logger.Error("download failed", "task_id", taskID, "model", modelName, "err", err)
		t.notify("Download failed", fmt.Sprintf("%s: %s", modelName, msg))
		t.record(func(ctx context.Context, j Journal) error {
			return j.DownloadFinished(ctx, taskID, modelName, DownloadStatusFailed, msg)
		})
		return
	}
	task.Status = DownloadStatusCompleted
	task.Progress = result
	task.CompletedAt = &now
	t.mu.Unlock()
	t.logger.Info("download completed", "task_id", taskID, "model", modelName)
	t.notify("Download completed", modelName)
	t.record(func(ctx context.Context, j Journal) error {
		return j.DownloadFinished(ctx, taskID, modelName, DownloadStatusCompleted, result)
	})
}

func (t *Tracker) notify(title, body string) {
	if t.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.notifier.Send(ctx, title, body); err != nil {
		t.logger.Warn("notify", "title", title, "err", err)
	}
}

func (t *Tracker) record(call func(context.Context, Journal) error) {
	if t.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := call(ctx, t.journal); err != nil {
		t.logger.Warn("journal event", "err", err)
	}
}

// Cancel requests cancellation of a task. It returns false without mutating
// anything when the task is unknown or already terminal, so a second Cancel
// on the same task is a no-op. On success the recorded status becomes
// cancelled immediately, even if the underlying fetch is still running, and
// any partial download directory is removed best-effort.
func (t *Tracker) Cancel(taskID string) bool {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if !ok || task.Status.Terminal() {
		t.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	msg := "Download cancelled by user"
	task.CancelRequested = true
	task.Status = DownloadStatusCancelled
	task.Error = &msg
	task.CompletedAt = &now
	path := task.DownloadPath
	model := task.ModelName
	t.mu.Unlock()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := os.RemoveAll(path); err != nil {
				t.logger.Warn("failed to clean up partial download", "path", path, "err", err)
			} else {
				t.logger.Info("cleaned up partial download", "path", path)
			}
		}
	}

	t.logger.Info("download cancelled", "task_id", taskID, "model", model)
	t.notify("Download cancelled", model)
	t.record(func(ctx context.Context, j Journal) error {
		return j.DownloadCancelled(ctx, taskID, model)
	})
	return true
}

// Status returns a snapshot for the given task, or ok=false if it does not
// exist. The on-disk size is measured at call time; elapsed time is computed
// against the server clock to avoid caller clock skew.
func (t *Tracker) Status(taskID string) (TaskView, bool) {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if !ok {
		t.mu.Unlock()
		return TaskView{}, false
	}
	snapshot := *task
	t.mu.Unlock()

	return t.view(&snapshot), true
}

// Active returns snapshots of every pending or downloading task.
func (t *Tracker) Active() []TaskView {
	return t.snapshots(func(task *DownloadTask) bool {
		return !task.Status.Terminal()
	})
}

// All returns snapshots of every tracked task, including finished ones that
// have not been swept yet.
func (t *Tracker) All() []TaskView {
	return t.snapshots(func(*DownloadTask) bool { return true })
}

func (t *Tracker) snapshots(keep func(*DownloadTask) bool) []TaskView {
	t.mu.Lock()
	copies := make([]DownloadTask, 0, len(t.tasks))
	for _, task := range t.tasks {
		if keep(task) {
			copies = append(copies, *task)
		}
	}
	t.mu.Unlock()

	views := make([]TaskView, 0, len(copies))
	for i := range copies {
		views = append(views, t.view(&copies[i]))
	}
	return views
}

// Sweep removes finished tasks whose completion is older than maxAge.
// Active tasks are never removed regardless of how long they have run.
func (t *Tracker) Sweep(maxAge time.Duration) {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, task := range t.tasks {
		if task.CompletedAt != nil && now.Sub(*task.CompletedAt) > maxAge {
			delete(t.tasks, id)
		}
	}
}

// view builds a TaskView from a task copy. Callers take the snapshot under
// the lock first; the directory walk here never holds it.
func (t *Tracker) view(task *DownloadTask) TaskView {
	var size int64
	if task.DownloadPath != "" {
		size = fsutil.DirectorySize(task.DownloadPath)
	}
	elapsed := int(time.Now().UTC().Sub(task.StartedAt).Seconds())

	var completedAt *string
	if task.CompletedAt != nil {
		formatted := task.CompletedAt.Format(time.RFC3339)
		completedAt = &formatted
	}

	return TaskView{
		ID:                  task.ID,
		ModelName:           task.ModelName,
		Revision:            task.Revision,
		Status:              task.Status,
		Progress:            task.Progress,
		Error:               task.Error,
		StartedAt:           task.StartedAt.Format(time.RFC3339),
		CompletedAt:         completedAt,
		DownloadedSize:      size,
		DownloadedSizeHuman: humanize.IBytes(uint64(size)),
		ElapsedSeconds:      elapsed,
	}
}
