package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
	"mediaflow/internal/notifications"
	"mediaflow/internal/testsupport"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), requests...)
	}
}

func TestNewNtfyReturnsNilWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Events.NtfyTopic = ""
	if n := notifications.NewNtfy(&cfg); n != nil {
		t.Fatalf("expected nil transport, got %#v", n)
	}
	var n *notifications.Ntfy
	if err := n.Send(context.Background(), events.New("acme", events.KindComplete, events.Payload{})); err != nil {
		t.Fatalf("nil transport should be a no-op, got %v", err)
	}
}

func TestNtfyFormatsTerminalEvents(t *testing.T) {
	srv, captured := newCaptureServer(t, http.StatusOK)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	n := notifications.NewNtfy(cfg)
	ctx := context.Background()

	if err := n.Send(ctx, events.New("acme", events.KindProgress, events.Payload{VideoID: "v1", Progress: 50})); err != nil {
		t.Fatalf("progress send: %v", err)
	}
	if err := n.Send(ctx, events.New("acme", events.KindComplete, events.Payload{VideoID: "v1", Progress: 100, Status: "completed", SensitivityStatus: "flagged"})); err != nil {
		t.Fatalf("complete send: %v", err)
	}
	if err := n.Send(ctx, events.New("acme", events.KindError, events.Payload{VideoID: "v2", Status: "failed", Error: "classifier unavailable"})); err != nil {
		t.Fatalf("error send: %v", err)
	}

	reqs := captured()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 pushes (progress ignored), got %d", len(reqs))
	}
	if reqs[0].title != "Mediaflow - Video Ready" || !strings.Contains(reqs[0].body, "sensitivity: flagged") {
		t.Fatalf("unexpected completion push: %#v", reqs[0])
	}
	if reqs[0].priority != "high" || !strings.Contains(reqs[0].tags, "flagged") {
		t.Fatalf("flagged videos should be high priority, got %#v", reqs[0])
	}
	if reqs[1].title != "Mediaflow - Processing Failed" || !strings.Contains(reqs[1].body, "classifier unavailable") {
		t.Fatalf("unexpected failure push: %#v", reqs[1])
	}
	if reqs[1].tags != "mediaflow,error,alert" {
		t.Fatalf("unexpected tags %q", reqs[1].tags)
	}
}

func TestNtfyReportsServerErrors(t *testing.T) {
	srv, _ := newCaptureServer(t, http.StatusInternalServerError)
	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(srv.URL))
	n := notifications.NewNtfy(cfg)

	if err := n.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
