package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/access"
	"mediaflow/internal/api"
	"mediaflow/internal/classifier"
	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/events"
	"mediaflow/internal/ingress"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/storage"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/users"
	"mediaflow/internal/workflow"
)

type harness struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	jobs   *jobs.Store
	users  *users.Store
	base   string
	tokens map[string]string
	ids    map[string]string
}

func safeVerdict() classifier.Classifier {
	return classifier.Func(func(context.Context, classifier.Request) (jobs.Sensitivity, error) {
		return jobs.SensitivitySafe, nil
	})
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *jobs.Store, *users.Store) {
	t.Helper()
	db := testsupport.MustOpenDatabase(t, cfg)
	jobStore, userStore := jobs.NewStore(db), users.NewStore(db)
	provider, err := storage.NewLocalProvider(cfg.Storage.LocalDir, cfg.FFprobeBinary())
	if err != nil {
		t.Fatalf("NewLocalProvider: %v", err)
	}
	logger := logging.NewNop()
	hub := events.NewHub(cfg.Events.HubCapacity)
	publisher := events.NewFanout(logger, hub)
	runner := workflow.NewRunner(jobStore, provider, safeVerdict(), publisher, logger)
	manager := workflow.NewManager(cfg, jobStore, runner, publisher, logger)
	d, err := daemon.New(cfg, daemon.Services{
		Jobs:     api.NewJobService(jobStore, provider, logger),
		Users:    api.NewUserService(userStore, logger),
		Tokens:   userStore,
		Gateway:  ingress.NewGateway(jobStore, provider, manager, logger, ingress.WithMaxBytes(cfg.MaxUploadBytes())),
		Hub:      hub,
		Workflow: manager,
		Database: db,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, jobStore, userStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	d, jobStore, userStore := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	h := &harness{
		cfg:    cfg,
		daemon: d,
		jobs:   jobStore,
		users:  userStore,
		base:   "http://" + d.Addr(),
		tokens: map[string]string{},
		ids:    map[string]string{},
	}
	for _, seed := range []struct {
		name, org string
		role      access.Role
	}{
		{"alice", "acme", access.RoleEditor},
		{"bob", "acme", access.RoleEditor},
		{"vera", "acme", access.RoleViewer},
		{"ada", "acme", access.RoleAdmin},
		{"bert", "beta", access.RoleAdmin},
	} {
		token := "token-" + seed.name
		user := &users.User{
			Username:     seed.name,
			Organization: seed.org,
			Role:         seed.role,
			TokenHash:    users.HashToken(token),
		}
		if err := userStore.Upsert(context.Background(), user); err != nil {
			t.Fatalf("Upsert %s: %v", seed.name, err)
		}
		h.tokens[seed.name] = token
		h.ids[seed.name] = user.ID
	}
	return h
}

func (h *harness) do(t *testing.T, who, method, path string, body io.Reader, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.base+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+h.tokens[who])
	}
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) upload(t *testing.T, who, name, mimeType string, content []byte, metadata string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if metadata != "" {
		if err := mw.WriteField("metadata", metadata); err != nil {
			t.Fatalf("write metadata: %v", err)
		}
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="video"; filename=%q`, name)},
		"Content-Type":        {mimeType},
	})
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return h.do(t, who, http.MethodPost, "/api/videos", &buf, http.Header{"Content-Type": {mw.FormDataContentType()}})
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d (%s)", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func (h *harness) waitCompleted(t *testing.T, id string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.jobs.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job != nil && job.Status == jobs.StatusCompleted {
			return
		}
		if job != nil && job.Status == jobs.StatusFailed {
			t.Fatalf("job failed: %s", job.ErrorMessage)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete", id)
}

func TestHealthzNeedsNoToken(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(t, "", http.MethodGet, "/healthz", nil, nil), http.StatusOK)
}

func TestUnknownTokenIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(t, "", http.MethodGet, "/api/videos", nil, nil), http.StatusUnauthorized)

	resp := h.do(t, "", http.MethodGet, "/api/videos", nil, http.Header{"Authorization": {"Bearer nope"}})
	expectStatus(t, resp, http.StatusUnauthorized)
	if body := decode[api.ErrorResponse](t, resp); body.Error == "" {
		t.Fatal("expected error message in body")
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "ada", http.MethodGet, "/api/me", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	me := decode[api.UserResponse](t, resp)
	if me.User.ID != h.ids["ada"] || me.User.Role != string(access.RoleAdmin) || me.User.Organization != "acme" {
		t.Fatalf("unexpected principal %+v", me.User)
	}
}

func TestUploadRunsToCompletion(t *testing.T) {
	h := newHarness(t)
	resp := h.upload(t, "alice", "clip.mp4", "video/mp4", testsupport.MediaBytes(2048), "")
	expectStatus(t, resp, http.StatusCreated)
	created := decode[api.VideoResponse](t, resp).Video
	if created.Status != string(jobs.StatusUploading) || created.ProcessingProgress != 0 {
		t.Fatalf("expected uploading/0 at creation, got %s/%d", created.Status, created.ProcessingProgress)
	}
	if created.Owner != h.ids["alice"] || created.Organization != "acme" || created.Size != 2048 {
		t.Fatalf("unexpected created video %+v", created)
	}
	h.waitCompleted(t, created.ID)

	resp = h.do(t, "vera", http.MethodGet, "/api/videos/"+created.ID, nil, nil)
	expectStatus(t, resp, http.StatusOK)
	done := decode[api.VideoResponse](t, resp).Video
	if done.SensitivityStatus != string(jobs.SensitivitySafe) || done.ProcessingProgress != 100 {
		t.Fatalf("unexpected finished video %+v", done)
	}
	if done.StreamPath == "" {
		t.Fatal("expected stream path on completed video")
	}

	resp = h.do(t, "vera", http.MethodGet, "/api/videos/"+created.ID+"/stream", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, testsupport.MediaBytes(2048)) {
		t.Fatalf("streamed %d bytes, want the uploaded content", len(body))
	}

	resp = h.do(t, "alice", http.MethodGet, "/api/events?since=0", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	list := decode[api.EventListResponse](t, resp)
	if len(list.Events) == 0 {
		t.Fatal("expected progress events")
	}
	last := list.Events[len(list.Events)-1]
	if last.Event != "video:complete" || last.Channel != "org-acme" || last.Payload.Progress != 100 {
		t.Fatalf("unexpected last event %+v", last)
	}
	prev := -1
	for _, evt := range list.Events {
		if evt.Payload.Progress < prev {
			t.Fatalf("progress went backwards in %+v", list.Events)
		}
		prev = evt.Payload.Progress
	}

	resp = h.do(t, "bert", http.MethodGet, "/api/events?since=0", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if other := decode[api.EventListResponse](t, resp); len(other.Events) != 0 {
		t.Fatalf("another organization saw %d events", len(other.Events))
	}
}

func TestUploadMetadataOverridesName(t *testing.T) {
	h := newHarness(t)
	resp := h.upload(t, "alice", "raw.bin", "application/octet-stream", testsupport.MediaBytes(64),
		`{"originalName":"holiday.mov","mimeType":"video/quicktime"}`)
	expectStatus(t, resp, http.StatusCreated)
	video := decode[api.VideoResponse](t, resp).Video
	if video.OriginalName != "holiday.mov" || video.MimeType != "video/quicktime" {
		t.Fatalf("metadata not applied: %+v", video)
	}

	resp = h.upload(t, "alice", "clip.mp4", "video/mp4", testsupport.MediaBytes(64), `{"colour":"red"}`)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestUploadRejections(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.upload(t, "vera", "clip.mp4", "video/mp4", testsupport.MediaBytes(64), ""), http.StatusForbidden)
	expectStatus(t, h.upload(t, "alice", "notes.txt", "text/plain", testsupport.MediaBytes(64), ""), http.StatusBadRequest)
	expectStatus(t, h.upload(t, "alice", "clip.mp4", "video/mp4", nil, ""), http.StatusBadRequest)

	list, err := h.jobs.List(context.Background(), jobs.Filter{Organization: "acme"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected uploads created %d jobs", len(list))
	}
}

func TestTenantIsolationAndDelete(t *testing.T) {
	h := newHarness(t)
	job := testsupport.MustCreateJob(t, h.jobs, "acme", h.ids["alice"], "clip.mp4")

	expectStatus(t, h.do(t, "bert", http.MethodGet, "/api/videos/"+job.ID, nil, nil), http.StatusNotFound)
	expectStatus(t, h.do(t, "bert", http.MethodDelete, "/api/videos/"+job.ID, nil, nil), http.StatusNotFound)

	resp := h.do(t, "bert", http.MethodGet, "/api/videos", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[api.VideoListResponse](t, resp); list.Count != 0 {
		t.Fatalf("cross-organization list returned %d videos", list.Count)
	}

	expectStatus(t, h.do(t, "bob", http.MethodDelete, "/api/videos/"+job.ID, nil, nil), http.StatusForbidden)
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/videos/"+job.ID+"/stream", nil, nil), http.StatusBadRequest)
	expectStatus(t, h.do(t, "ada", http.MethodDelete, "/api/videos/"+job.ID, nil, nil), http.StatusNoContent)
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/videos/"+job.ID, nil, nil), http.StatusNotFound)
}

func TestListFiltersValidated(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/videos?status=bogus", nil, nil), http.StatusBadRequest)
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/videos?limit=-1", nil, nil), http.StatusBadRequest)
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/videos?status=processing", nil, nil), http.StatusOK)
}

func TestRoleChange(t *testing.T) {
	h := newHarness(t)
	path := "/api/users/" + h.ids["bob"] + "/role"
	jsonHeader := http.Header{"Content-Type": {"application/json"}}

	expectStatus(t, h.do(t, "alice", http.MethodPatch, path, strings.NewReader(`{"role":"admin"}`), jsonHeader), http.StatusForbidden)
	expectStatus(t, h.do(t, "ada", http.MethodPatch, path, strings.NewReader(`{"role":"owner"}`), jsonHeader), http.StatusBadRequest)
	expectStatus(t, h.do(t, "ada", http.MethodPatch, path, strings.NewReader(`{not json`), jsonHeader), http.StatusBadRequest)
	expectStatus(t, h.do(t, "bert", http.MethodPatch, path, strings.NewReader(`{"role":"viewer"}`), jsonHeader), http.StatusNotFound)

	resp := h.do(t, "ada", http.MethodPatch, path, strings.NewReader(`{"role":"viewer"}`), jsonHeader)
	expectStatus(t, resp, http.StatusOK)
	if updated := decode[api.UserResponse](t, resp); updated.User.Role != string(access.RoleViewer) {
		t.Fatalf("expected viewer, got %s", updated.User.Role)
	}
	expectStatus(t, h.upload(t, "bob", "clip.mp4", "video/mp4", testsupport.MediaBytes(64), ""), http.StatusForbidden)

	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/users", nil, nil), http.StatusForbidden)
	resp = h.do(t, "ada", http.MethodGet, "/api/users", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[api.UserListResponse](t, resp); len(list.Users) != 4 {
		t.Fatalf("expected 4 acme users, got %d", len(list.Users))
	}
}

func TestEventStreamEndsAfterTerminalEvent(t *testing.T) {
	h := newHarness(t)
	resp := h.upload(t, "alice", "clip.webm", "video/webm", testsupport.MediaBytes(128), "")
	expectStatus(t, resp, http.StatusCreated)
	id := decode[api.VideoResponse](t, resp).Video.ID
	h.waitCompleted(t, id)

	resp = h.do(t, "alice", http.MethodGet, "/api/events?video="+id, nil, http.Header{"Accept": {"text/event-stream"}})
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "event: video:progress") || !strings.Contains(text, "event: video:complete") {
		t.Fatalf("unexpected stream body %q", text)
	}
	if !strings.Contains(text, `"sensitivityStatus":"safe"`) {
		t.Fatalf("expected verdict in complete payload, got %q", text)
	}
}

func TestLongPollTimesOutEmpty(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, "alice", http.MethodGet, "/api/events?wait=1", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if list := decode[api.EventListResponse](t, resp); len(list.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(list.Events))
	}
	expectStatus(t, h.do(t, "alice", http.MethodGet, "/api/events?since=x", nil, nil), http.StatusBadRequest)
}

func TestStatusScopedToOrganization(t *testing.T) {
	h := newHarness(t)
	testsupport.MustCreateJob(t, h.jobs, "acme", h.ids["alice"], "clip.mp4")

	resp := h.do(t, "bert", http.MethodGet, "/api/status", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	status := decode[api.DaemonStatus](t, resp)
	if !status.Running || status.Workflow.Jobs.Total != 0 {
		t.Fatalf("unexpected status for other organization %+v", status)
	}
	if status.DatabaseDriver != config.DriverSQLite || !status.Database.Reachable {
		t.Fatalf("unexpected database status %+v", status.Database)
	}
}

func TestSecondDaemonCannotStart(t *testing.T) {
	h := newHarness(t)
	second, _, _ := newDaemon(t, h.cfg)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}
