package workflow

import (
	"context"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool         `json:"running"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	Workers       int          `json:"workers"`
	QueueDepth    int          `json:"queueDepth"`
	QueueCapacity int          `json:"queueCapacity"`
	InFlight      int          `json:"inFlight"`
	LastError     string       `json:"lastError,omitempty"`
	LastJobID     string       `json:"lastJobId,omitempty"`
	Jobs          jobs.Summary `json:"jobs"`
	Tasks         []TaskInfo   `json:"tasks"`
}

// Status returns the latest workflow information. A non-empty organization
// limits job counts and tasks to that tenant.
func (m *Manager) Status(ctx context.Context, organization string) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:       m.running,
		Workers:       m.workers,
		QueueDepth:    len(m.queue),
		QueueCapacity: cap(m.queue),
		LastJobID:     m.lastJobID,
	}
	if m.running {
		started := m.startedAt
		summary.StartedAt = &started
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	if organization != "" {
		summary.LastJobID = ""
		summary.LastError = ""
	}
	summary.Tasks = m.registry.Snapshot(organization)
	for _, task := range summary.Tasks {
		if task.State == TaskQueued || task.State == TaskRunning {
			summary.InFlight++
		}
	}

	counts, err := m.store.Summarize(ctx, organization)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.Jobs = counts
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id string) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}
