package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/users"
)

func TestFromJobHidesLocalURLAndAddsStreamPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	dto := FromJob(&jobs.Job{
		ID:          "abc",
		Status:      jobs.StatusCompleted,
		Sensitivity: jobs.SensitivityFlagged,
		Progress:    100,
		URL:         "file:///var/lib/mediaflow/media/abc.mp4",
		Metadata:    jobs.Metadata{Codec: "h264"},
		CreatedAt:   now,
	})
	if dto.URL != "" {
		t.Fatalf("expected local url hidden, got %q", dto.URL)
	}
	if dto.StreamPath != "/api/videos/abc/stream" {
		t.Fatalf("unexpected stream path %q", dto.StreamPath)
	}
	if dto.Metadata == nil || dto.Metadata.Codec != "h264" {
		t.Fatalf("expected metadata, got %+v", dto.Metadata)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.CreatedAt)
	}

	pending := FromJob(&jobs.Job{ID: "def", Status: jobs.StatusProcessing, URL: "https://cdn.example/def.mp4"})
	if pending.StreamPath != "" || pending.URL != "https://cdn.example/def.mp4" {
		t.Fatalf("unexpected processing dto %+v", pending)
	}
}

func TestFromUserNeverSerializesToken(t *testing.T) {
	data, err := json.Marshal(FromUser(&users.User{ID: "u1", Username: "alice", TokenHash: "secret-digest"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-digest") {
		t.Fatalf("token digest leaked: %s", data)
	}
}
