package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotifier_PostsEvent(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("Payload is not JSON: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, time.Second, nil)
	n.Notify(context.Background(), "shutdown_requested", map[string]any{
		"reason": "signal received",
	})

	select {
	case payload := <-received:
		if payload["event"] != "shutdown_requested" {
			t.Errorf("event = %v", payload["event"])
		}
		if payload["reason"] != "signal received" {
			t.Errorf("reason = %v", payload["reason"])
		}
		if payload["ts"] == nil {
			t.Error("payload should carry a timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Webhook was never called")
	}
}

func TestNotifier_DisabledWithoutURL(t *testing.T) {
	n := NewNotifier("", time.Second, nil)
	if n.Enabled() {
		t.Error("Notifier without URL should be disabled")
	}
	// Must be a silent no-op
	n.Notify(context.Background(), "anything", nil)
}

func TestNotifier_SurvivesDeadEndpoint(t *testing.T) {
	n := NewNotifier("http://127.0.0.1:1", 100*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Notify(context.Background(), "stream_fatal", nil)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Notify should give up quickly on a dead endpoint")
	}
}
