// Package daemonrun assembles the mediaflow runtime and blocks until the
// process is asked to stop.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediaflow/internal/api"
	"mediaflow/internal/classifier"
	"mediaflow/internal/config"
	"mediaflow/internal/daemon"
	"mediaflow/internal/database"
	"mediaflow/internal/events"
	"mediaflow/internal/ingress"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/notifications"
	"mediaflow/internal/observability"
	"mediaflow/internal/preflight"
	"mediaflow/internal/storage"
	"mediaflow/internal/users"
	"mediaflow/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the daemon once it is serving.
	Ready func(*daemon.Daemon)
}

// Run starts the mediaflow daemon and blocks until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(signalCtx, cfg.Tracing, "mediaflowd")
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", logging.Error(err))
		}
	}()

	logDependencySnapshot(logger, cfg)
	pidPath := filepath.Join(cfg.Paths.DataDir, "mediaflowd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return err
	}
	defer db.Close()
	jobStore := jobs.NewStore(db)
	userStore := users.NewStore(db)

	if err := applySeed(signalCtx, cfg, userStore, logger); err != nil {
		return err
	}

	provider, err := storage.New(signalCtx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	cls, err := classifier.New(cfg)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}

	hub := events.NewHub(cfg.Events.HubCapacity)
	transports := []events.Transport{hub}
	if url := strings.TrimSpace(cfg.Events.NATSURL); url != "" {
		nt, err := events.DialNATS(url, cfg.Events.NATSSubjectPrefix, logger)
		if err != nil {
			logging.WarnWithContext(logger, "nats unavailable; continuing without broker fan-out", "nats_connect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check events.nats_url and broker availability"),
				logging.String(logging.FieldImpact, "events reach API subscribers only"),
			)
		} else {
			defer nt.Close()
			transports = append(transports, nt)
		}
	}
	if ntfy := notifications.NewNtfy(cfg); ntfy != nil {
		transports = append(transports, ntfy)
	}
	publisher := events.NewFanout(logger, transports...)

	runner := workflow.NewRunner(jobStore, provider, cls, publisher, logger)
	manager := workflow.NewManager(cfg, jobStore, runner, publisher, logger)
	gateway := ingress.NewGateway(jobStore, provider, manager, logger, ingress.WithMaxBytes(cfg.MaxUploadBytes()))

	d, err := daemon.New(cfg, daemon.Services{
		Jobs:     api.NewJobService(jobStore, provider, logger),
		Users:    api.NewUserService(userStore, logger),
		Tokens:   userStore,
		Gateway:  gateway,
		Hub:      hub,
		Workflow: manager,
		Database: db,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address and that no other daemon holds the lock"),
		)
		return err
	}
	defer d.Stop()
	if opts.Ready != nil {
		opts.Ready(d)
	}

	<-signalCtx.Done()
	logger.Info("mediaflow daemon shutting down")
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "mediaflow.log")},
		Development: opts.Development,
	})
}

func applySeed(ctx context.Context, cfg *config.Config, store *users.Store, logger *slog.Logger) error {
	path := strings.TrimSpace(cfg.Paths.SeedFile)
	if path == "" {
		return nil
	}
	seed, err := users.LoadSeedFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("seed file not found; skipping", logging.String("path", path))
			return nil
		}
		return fmt.Errorf("load seed file: %w", err)
	}
	count, err := store.Apply(ctx, seed)
	if err != nil {
		return fmt.Errorf("apply seed file: %w", err)
	}
	logger.Info("seeded users", logging.Int("count", count), logging.String("path", path))
	return nil
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("database_driver", cfg.Database.Driver),
		logging.String("storage_backend", cfg.Storage.Backend),
		logging.String("classifier_mode", cfg.Classifier.Mode),
		logging.Bool("nats_enabled", strings.TrimSpace(cfg.Events.NATSURL) != ""),
		logging.Bool("ntfy_enabled", strings.TrimSpace(cfg.Events.NtfyTopic) != ""),
		logging.String("tracing_exporter", cfg.Tracing.Exporter),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs,
			logging.Bool(strings.ToLower(dep.Name)+"_available", dep.Available),
			logging.String(strings.ToLower(dep.Name)+"_binary", dep.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
