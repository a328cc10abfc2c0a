package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/daemonrun"
	"mediaflow/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     string
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv(TokenEnv, "")
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "mediaflow.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func (e *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *daemon.Daemon, 1)
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, e.cfg, daemonrun.Options{LogLevel: "error", Ready: func(d *daemon.Daemon) { ready <- d }})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})
	select {
	case d := <-ready:
		e.server = "http://" + d.Addr()
	case err := <-done:
		t.Fatalf("daemon exited: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon never became ready")
	}
}

var tokenLine = regexp.MustCompile(`Token: ([0-9a-f]+)`)

func (e *cliTestEnv) addUser(t *testing.T, name, org, role string) string {
	t.Helper()
	out, err := runCLI(t, "--config", e.configPath, "users", "add", name, "--organization", org, "--role", role)
	if err != nil {
		t.Fatalf("users add: %v", err)
	}
	match := tokenLine.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("no token in output %q", out)
	}
	return match[1]
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "mediaflow.toml")
	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}

	env := setupCLITestEnv(t)
	out, err = runCLI(t, "--config", env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Classifier.APIKey = "sk-very-secret"
	writeTestConfig(t, env.configPath, env.cfg)

	out, err := runCLI(t, "--config", env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[storage]")
	requireContains(t, out, redacted)
	if strings.Contains(out, "sk-very-secret") {
		t.Fatalf("secret leaked in output:\n%s", out)
	}
}

func TestUsersAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addUser(t, "ada", "acme", "admin")
	env.addUser(t, "bert", "beta", "editor")

	out, err := runCLI(t, "--config", env.configPath, "users", "list", "--organization", "acme")
	if err != nil {
		t.Fatalf("users list: %v", err)
	}
	requireContains(t, out, "ada")
	if strings.Contains(out, "bert") {
		t.Fatalf("organization filter ignored: %q", out)
	}

	if _, err := runCLI(t, "--config", env.configPath, "users", "add", "x", "--organization", "acme", "--role", "owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestJobsSubmitListShowExport(t *testing.T) {
	env := setupCLITestEnv(t)
	token := env.addUser(t, "alice", "acme", "editor")
	env.startDaemon(t)
	remote := []string{"--config", env.configPath, "--server", env.server, "--token", token}

	media := filepath.Join(t.TempDir(), "clip.mp4")
	testsupport.WriteFile(t, media, 4096)

	out, err := runCLI(t, append(remote, "--json", "jobs", "submit", media)...)
	if err != nil {
		t.Fatalf("jobs submit: %v", err)
	}
	var submitted api.VideoResponse
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output: %v (%q)", err, out)
	}
	id := submitted.Video.ID
	if id == "" || submitted.Video.Status != "uploading" {
		t.Fatalf("unexpected submit result %+v", submitted.Video)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		out, err = runCLI(t, append(remote, "--json", "jobs", "show", id)...)
		if err != nil {
			t.Fatalf("jobs show: %v", err)
		}
		if strings.Contains(out, `"status": "completed"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed: %s", out)
		}
		time.Sleep(50 * time.Millisecond)
	}

	out, err = runCLI(t, append(remote, "jobs", "list")...)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "Completed")

	out, err = runCLI(t, append(remote, "status")...)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Workflow ==")
	requireContains(t, out, "1 completed")

	report := filepath.Join(t.TempDir(), "report.xlsx")
	if _, err := runCLI(t, "--config", env.configPath, "jobs", "export", "--organization", "acme", "--output", report); err != nil {
		t.Fatalf("jobs export: %v", err)
	}
	if info, err := os.Stat(report); err != nil || info.Size() == 0 {
		t.Fatalf("expected report file, got %v", err)
	}

	if _, err := runCLI(t, append(remote, "jobs", "delete", id)...); err != nil {
		t.Fatalf("jobs delete: %v", err)
	}
	_, err = runCLI(t, append(remote, "jobs", "show", id)...)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestRemoteCommandsNeedToken(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := runCLI(t, "--config", env.configPath, "--server", "http://127.0.0.1:1", "jobs", "list")
	if err == nil || !strings.Contains(err.Error(), TokenEnv) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 5 << 20: "5.0 MiB"}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
