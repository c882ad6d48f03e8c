package store

import (
	"context"
	"testing"

	"github.com/juchong/vllm-dashboard/internal/core"
)

func TestJournalAppendsLifecycleEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.DownloadStarted(ctx, "abc123", "org/model-a"); err != nil {
		t.Fatalf("DownloadStarted() err=%v, want nil", err)
	}
	if err := s.DownloadFinished(ctx, "abc123", "org/model-a", core.DownloadStatusCompleted, "done"); err != nil {
		t.Fatalf("DownloadFinished() err=%v, want nil", err)
	}
	if err := s.DownloadCancelled(ctx, "def456", "org/model-b"); err != nil {
		t.Fatalf("DownloadCancelled() err=%v, want nil", err)
	}

	events, err := s.ListEvents(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListEvents() err=%v, want nil", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// newest first
	if events[0].Kind != EventDownloadCancelled || events[1].Kind != EventDownloadFinished || events[2].Kind != EventDownloadStarted {
		t.Fatalf("unexpected kinds: %s, %s, %s", events[0].Kind, events[1].Kind, events[2].Kind)
	}
	if events[1].Detail != "task abc123 completed: done" {
		t.Fatalf("finished detail=%q", events[1].Detail)
	}
	if events[2].Subject != "org/model-a" {
		t.Fatalf("started subject=%q, want org/model-a", events[2].Subject)
	}
}
