package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/database"
	"mediaflow/internal/events"
	"mediaflow/internal/ingress"
	"mediaflow/internal/logging"
	"mediaflow/internal/preflight"
	"mediaflow/internal/users"
	"mediaflow/internal/workflow"
)

// TokenResolver maps a bearer token to its user. Unknown tokens yield (nil, nil).
type TokenResolver interface {
	FindByToken(ctx context.Context, token string) (*users.User, error)
}

// HealthChecker reports database diagnostics.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (database.Health, error)
}

// Services bundles the collaborators the daemon serves.
type Services struct {
	Jobs     *api.JobService
	Users    *api.UserService
	Tokens   TokenResolver
	Gateway  *ingress.Gateway
	Hub      *events.Hub
	Workflow *workflow.Manager
	Database HealthChecker
}

func (s Services) validate() error {
	switch {
	case s.Jobs == nil, s.Users == nil, s.Gateway == nil:
		return errors.New("daemon requires job, user and ingress services")
	case s.Tokens == nil:
		return errors.New("daemon requires a token resolver")
	case s.Workflow == nil:
		return errors.New("daemon requires a workflow manager")
	case s.Hub == nil:
		return errors.New("daemon requires an event hub")
	}
	return nil
}

// Daemon coordinates the workflow manager and the API server and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	services Services
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information as seen by one organization.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	Workflow     workflow.StatusSummary
	Database     database.Health
	Dependencies []preflight.DependencyStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, services Services, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if err := services.validate(); err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		services: services,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager and starts
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaflow daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.services.Workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.start(runCtx); err != nil {
		cancel()
		d.services.Workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("mediaflow daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bind", d.server.address()),
	)
	return nil
}

// Stop stops the API server and background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.server.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.services.Workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("mediaflow daemon stopped")
}

// Handler exposes the API routes, mainly for in-process tests.
func (d *Daemon) Handler() http.Handler {
	return d.server.handler
}

// Addr returns the address the API server listens on, or "" when stopped.
func (d *Daemon) Addr() string {
	return d.server.address()
}

// Status returns the daemon status. A non-empty organization hides other
// tenants' workflow details.
func (d *Daemon) Status(ctx context.Context, organization string) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Workflow:     d.services.Workflow.Status(ctx, organization),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
	if d.services.Database != nil {
		health, err := d.services.Database.CheckHealth(ctx)
		if err != nil && health.Error == "" {
			health.Error = err.Error()
		}
		status.Database = health
	}
	return status
}
