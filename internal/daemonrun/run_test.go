package daemonrun_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaflow/internal/daemon"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/testsupport"
)

func TestRunServesUntilCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedPath := filepath.Join(testsupport.BaseDir(cfg), "users.yaml")
	seed := "users:\n  - username: ada\n    organization: acme\n    role: admin\n    token: secret-token\n"
	if err := os.WriteFile(seedPath, []byte(seed), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	cfg.Paths.SeedFile = seedPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan *daemon.Daemon, 1)
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: "error", Ready: func(d *daemon.Daemon) { ready <- d }})
	}()

	var d *daemon.Daemon
	select {
	case d = <-ready:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon never became ready")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://"+d.Addr()+"/api/me", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected seeded token to authenticate, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "mediaflowd.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
}
