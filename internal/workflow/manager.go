package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

var (
	// ErrQueueFull is returned by Enqueue when every queue slot is taken.
	ErrQueueFull = fmt.Errorf("%w: workflow queue is full", services.ErrTransient)
	// ErrDuplicateRun is returned by Enqueue when the job already has a run in flight.
	ErrDuplicateRun = errors.New("job already has a run in flight")
	errStopped      = errors.New("workflow stopped before the run started")
)

// JobRunner executes one job to completion or failure.
type JobRunner interface {
	Run(ctx context.Context, jobID string) error
}

// ManagerStore is the subset of jobs.Store the manager needs.
type ManagerStore interface {
	HeartbeatStore
	Summarize(ctx context.Context, organization string) (jobs.Summary, error)
}

// Manager runs jobs on a bounded worker pool.
type Manager struct {
	store           ManagerStore
	runner          JobRunner
	logger          *slog.Logger
	heartbeat       *HeartbeatMonitor
	registry        *Registry
	queue           chan string
	workers         int
	reclaimInterval time.Duration

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJobID string
	startedAt time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	reclaimInterval   time.Duration
}

// WithHeartbeatTiming overrides the configured heartbeat interval, heartbeat
// timeout and reclaim sweep interval.
func WithHeartbeatTiming(interval, timeout, reclaim time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.heartbeatInterval = interval
		o.heartbeatTimeout = timeout
		o.reclaimInterval = reclaim
	}
}

// NewManager constructs a workflow manager. Reclaimed jobs are announced
// through publisher.
func NewManager(cfg *config.Config, store ManagerStore, runner JobRunner, publisher events.Publisher, logger *slog.Logger, opts ...ManagerOption) *Manager {
	wf := cfg.Workflow
	options := &managerOptions{
		heartbeatInterval: time.Duration(wf.HeartbeatInterval) * time.Second,
		heartbeatTimeout:  time.Duration(wf.HeartbeatTimeout) * time.Second,
		reclaimInterval:   time.Duration(wf.ReclaimInterval) * time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}
	workers := wf.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := wf.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	logger = logging.NewComponentLogger(logger, "workflow-manager")
	return &Manager{
		store:           store,
		runner:          runner,
		logger:          logger,
		heartbeat:       NewHeartbeatMonitor(store, publisher, logger, options.heartbeatInterval, options.heartbeatTimeout),
		registry:        NewRegistry(wf.RecentTasks),
		queue:           make(chan string, queueSize),
		workers:         workers,
		reclaimInterval: options.reclaimInterval,
	}
}

// Start reclaims abandoned jobs once and then launches the workers and the
// periodic reclaim sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.startedAt = time.Now().UTC()
	m.wg.Add(m.workers)
	if m.reclaimInterval > 0 {
		m.wg.Add(1)
	}
	m.mu.Unlock()

	m.reclaim(runCtx)

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx)
	}
	if m.reclaimInterval > 0 {
		go m.runReclaimer(runCtx)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Int("queue_capacity", cap(m.queue)),
	)
	return nil
}

// Stop cancels in-flight runs, waits for workers to exit and drops tasks
// that never started. Dropped jobs are failed by the next reclaim sweep.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	for {
		select {
		case id := <-m.queue:
			m.registry.Drop(id, errStopped)
		default:
			m.logger.Info("workflow stopped")
			return
		}
	}
}

// Enqueue hands a job to the worker pool without waiting for the run.
func (m *Manager) Enqueue(job *jobs.Job) error {
	if job == nil || job.ID == "" {
		return services.Wrap(services.ErrValidation, "workflow", "enqueue", "job id is required", nil)
	}
	if !m.registry.Begin(job.ID, job.Organization) {
		return fmt.Errorf("enqueue %s: %w", job.ID, ErrDuplicateRun)
	}
	select {
	case m.queue <- job.ID:
		return nil
	default:
		m.registry.Drop(job.ID, ErrQueueFull)
		return fmt.Errorf("enqueue %s: %w", job.ID, ErrQueueFull)
	}
}

// Reclaim runs one reclaim sweep now.
func (m *Manager) Reclaim(ctx context.Context) (int, error) {
	return m.heartbeat.ReclaimStale(ctx, m.registry.Active())
}

func (m *Manager) runWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			if ctx.Err() != nil {
				m.registry.Drop(id, errStopped)
				return
			}
			m.process(ctx, id)
		}
	}
}

func (m *Manager) process(ctx context.Context, jobID string) {
	m.registry.Start(jobID)
	m.setLastJob(jobID)

	hbCtx, stopHeartbeat := context.WithCancel(services.WithJobID(ctx, jobID))
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, jobID)

	err := m.runner.Run(ctx, jobID)

	stopHeartbeat()
	hbWG.Wait()
	m.registry.Finish(jobID, err)
	if err != nil {
		m.setLastError(err)
	}
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.reclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reclaim(ctx)
		}
	}
}

func (m *Manager) reclaim(ctx context.Context) {
	if _, err := m.Reclaim(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		m.setLastError(err)
		m.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
	}
}
