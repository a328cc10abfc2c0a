package ingress_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"mediaflow/internal/access"
	"mediaflow/internal/ingress"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/storage"
	"mediaflow/internal/testsupport"
)

type stubEnqueuer struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (s *stubEnqueuer) Enqueue(job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ids = append(s.ids, job.ID)
	return nil
}

type fixture struct {
	store    *jobs.Store
	provider *storage.LocalProvider
	enqueuer *stubEnqueuer
	gateway  *ingress.Gateway
}

func newFixture(t *testing.T, opts ...ingress.Option) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJobStore(t, cfg)
	provider, err := storage.NewLocalProvider(cfg.Storage.LocalDir, cfg.FFprobeBinary())
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	enq := &stubEnqueuer{}
	return fixture{
		store:    store,
		provider: provider,
		enqueuer: enq,
		gateway:  ingress.NewGateway(store, provider, enq, logging.NewNop(), opts...),
	}
}

func (f fixture) storedObjects(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.provider.Dir())
	if err != nil {
		t.Fatalf("read storage dir: %v", err)
	}
	return len(entries)
}

func (f fixture) jobCount(t *testing.T) int {
	t.Helper()
	list, err := f.store.List(context.Background(), jobs.Filter{Organization: "acme"})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	return len(list)
}

func upload(name, mimeType string, size int) ingress.File {
	return ingress.File{Name: name, MimeType: mimeType, Content: bytes.NewReader(testsupport.MediaBytes(size))}
}

var editor = access.Principal{ID: "editor-1", Organization: "acme", Role: access.RoleEditor}

func TestSubmitCreatesUploadingJobAndEnqueues(t *testing.T) {
	f := newFixture(t)

	job, err := f.gateway.Submit(context.Background(), editor, upload("holiday.mp4", "video/mp4", 2048))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != jobs.StatusUploading || job.Progress != 0 || job.Sensitivity != jobs.SensitivityPending {
		t.Fatalf("unexpected initial state %s/%d/%s", job.Status, job.Progress, job.Sensitivity)
	}
	if job.Organization != "acme" || job.OwnerID != "editor-1" {
		t.Fatalf("expected ownership from principal, got %s/%s", job.Organization, job.OwnerID)
	}
	if job.OriginalName != "holiday.mp4" || job.SizeBytes != 2048 || job.StorageRef == "" {
		t.Fatalf("unexpected transfer fields %+v", job)
	}
	if len(f.enqueuer.ids) != 1 || f.enqueuer.ids[0] != job.ID {
		t.Fatalf("expected job enqueued once, got %v", f.enqueuer.ids)
	}
	stored, err := f.store.Get(context.Background(), job.ID)
	if err != nil || stored == nil {
		t.Fatalf("expected stored job, got %v %v", stored, err)
	}
}

func TestSubmitRejectsViewerWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	viewer := access.Principal{ID: "viewer-1", Organization: "acme", Role: access.RoleViewer}

	_, err := f.gateway.Submit(context.Background(), viewer, upload("clip.mp4", "video/mp4", 16))
	if !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.jobCount(t) != 0 || f.storedObjects(t) != 0 || len(f.enqueuer.ids) != 0 {
		t.Fatal("expected no job, no stored object and no run")
	}
}

func TestSubmitValidatesMimeType(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		mime string
		ok   bool
	}{
		{"video/mp4", true},
		{"VIDEO/WEBM", true},
		{"video/quicktime; codecs=avc1", true},
		{"video/x-msvideo", true},
		{"video/ogg", true},
		{"image/png", false},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, tc := range cases {
		_, err := f.gateway.Submit(context.Background(), editor, upload("clip", tc.mime, 8))
		if tc.ok && err != nil {
			t.Fatalf("mime %q: unexpected error %v", tc.mime, err)
		}
		if !tc.ok && !errors.Is(err, services.ErrValidation) {
			t.Fatalf("mime %q: expected validation error, got %v", tc.mime, err)
		}
	}
}

func TestSubmitRejectsEmptyNameAndContent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.gateway.Submit(context.Background(), editor, upload("  ", "video/mp4", 8)); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if _, err := f.gateway.Submit(context.Background(), editor, ingress.File{Name: "empty.mp4", MimeType: "video/mp4", Content: bytes.NewReader(nil)}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty content, got %v", err)
	}
	if f.storedObjects(t) != 0 {
		t.Fatal("expected empty upload to be released")
	}
}

func TestSubmitEnforcesSizeLimit(t *testing.T) {
	f := newFixture(t, ingress.WithMaxBytes(100))
	_, err := f.gateway.Submit(context.Background(), editor, upload("big.mp4", "video/mp4", 101))
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "upload limit") {
		t.Fatalf("expected size limit error, got %v", err)
	}
	if f.jobCount(t) != 0 || f.storedObjects(t) != 0 {
		t.Fatal("expected oversized upload to leave nothing behind")
	}
}

func TestSubmitFailsJobWhenQueueRejects(t *testing.T) {
	f := newFixture(t)
	f.enqueuer.err = errors.New("queue full")

	if _, err := f.gateway.Submit(context.Background(), editor, upload("clip.mp4", "video/mp4", 8)); err == nil {
		t.Fatal("expected enqueue error")
	}
	list, err := f.store.List(context.Background(), jobs.Filter{Organization: "acme"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != jobs.StatusFailed {
		t.Fatalf("expected one failed job, got %+v", list)
	}
}
