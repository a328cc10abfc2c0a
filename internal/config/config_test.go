package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaflow/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mediaflow")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "mediaflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Storage.Backend != config.StorageLocal {
		t.Fatalf("expected local storage by default, got %q", cfg.Storage.Backend)
	}
	if cfg.Server.Bind != "127.0.0.1:7590" {
		t.Fatalf("unexpected bind: %q", cfg.Server.Bind)
	}
	if cfg.Workflow.Workers != config.Default().Workflow.Workers {
		t.Fatalf("unexpected worker count: %d", cfg.Workflow.Workers)
	}
	if cfg.Classifier.Mode != config.ClassifierSimulated {
		t.Fatalf("expected simulated classifier, got %q", cfg.Classifier.Mode)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()
	cfg.Paths.DataDir = "~/media-data"
	cfg.Server.Bind = "0.0.0.0:9000"
	cfg.Workflow.Workers = 8
	cfg.Logging.Format = "JSON"
	cfg.Classifier.FlagRatio = 0.5

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if loaded.Paths.DataDir != filepath.Join(tempHome, "media-data") {
		t.Fatalf("unexpected data dir: %q", loaded.Paths.DataDir)
	}
	if loaded.Server.Bind != "0.0.0.0:9000" {
		t.Fatalf("unexpected bind: %q", loaded.Server.Bind)
	}
	if loaded.Workflow.Workers != 8 {
		t.Fatalf("unexpected workers: %d", loaded.Workflow.Workers)
	}
	if loaded.Logging.Format != "json" {
		t.Fatalf("expected log format normalized to json, got %q", loaded.Logging.Format)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEDIAFLOW_DATABASE_DSN", "postgres://user:pw@localhost/db")
	t.Setenv("MEDIAFLOW_NATS_URL", " nats://localhost:4222 ")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	body := "[database]\ndriver = \"postgresql\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://user:pw@localhost/db" {
		t.Fatalf("expected DSN from env, got %q", cfg.Database.DSN)
	}
	if cfg.DatabasePath() != "" {
		t.Fatalf("expected no sqlite path for postgres, got %q", cfg.DatabasePath())
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" {
		t.Fatalf("expected trimmed NATS url, got %q", cfg.Events.NATSURL)
	}
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"postgres without dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }, "database.dsn"},
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"minio without endpoint", func(c *config.Config) { c.Storage.Backend = config.StorageMinio }, "storage.minio_endpoint"},
		{"minio without credentials", func(c *config.Config) {
			c.Storage.Backend = config.StorageMinio
			c.Storage.MinioEndpoint = "localhost:9000"
		}, "minio_access_key"},
		{"http classifier without url", func(c *config.Config) { c.Classifier.Mode = config.ClassifierHTTP }, "classifier.url"},
		{"flag ratio out of range", func(c *config.Config) { c.Classifier.FlagRatio = 1.5 }, "flag_ratio"},
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }, "workflow.workers"},
		{"timeout below interval", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }, "heartbeat_timeout"},
		{"bad tracing exporter", func(c *config.Config) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.LocalDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Events.NATSSubjectPrefix != "mediaflow" {
		t.Fatalf("unexpected subject prefix: %q", cfg.Events.NATSSubjectPrefix)
	}
}
