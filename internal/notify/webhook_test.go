package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookNotifierSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method=%s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type=%s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL)
	if err != nil {
		t.Fatalf("NewWebhookNotifier() err=%v, want nil", err)
	}
	if err := n.Send(context.Background(), "Download finished", "org/model completed"); err != nil {
		t.Fatalf("Send() err=%v, want nil", err)
	}
	if got["title"] != "Download finished" || got["body"] != "org/model completed" {
		t.Fatalf("payload=%v", got)
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Send(context.Background(), "t", "b"); err == nil {
		t.Fatal("Send() err=nil, want error for 500 response")
	}
}

func TestNewWebhookNotifierEmptyURL(t *testing.T) {
	if _, err := NewWebhookNotifier(""); err == nil {
		t.Fatal("NewWebhookNotifier(\"\") err=nil, want error")
	}
}
