package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/events"
	"mediaflow/internal/jobs"
	"mediaflow/internal/media/ffprobe"
)

type recordedEvent struct {
	organization string
	kind         events.Kind
	payload      events.Payload
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, organization string, kind events.Kind, payload events.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{organization: organization, kind: kind, payload: payload})
	return p.err
}

func (p *recordingPublisher) snapshot() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recordedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// flakyStore fails chosen Update calls (1-based) before they reach the store.
type flakyStore struct {
	*jobs.Store
	mu    sync.Mutex
	calls int
	fail  func(call int, job *jobs.Job) error
}

func (f *flakyStore) Update(ctx context.Context, job *jobs.Job) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(call, job); err != nil {
			return err
		}
	}
	return f.Store.Update(ctx, job)
}

type stubProber struct {
	summary ffprobe.Summary
	err     error
}

func (s stubProber) Probe(context.Context, string) (ffprobe.Summary, error) {
	return s.summary, s.err
}

var errDiskFull = errors.New("disk full")

func mustGetJob(t *testing.T, store *jobs.Store, id string) *jobs.Job {
	t.Helper()
	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}

func waitForStatus(t *testing.T, store *jobs.Store, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job := mustGetJob(t, store, id)
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach %s", id, want)
	return nil
}
