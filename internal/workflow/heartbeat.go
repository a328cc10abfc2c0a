package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mediaflow/internal/events"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
)

// HeartbeatStore is the subset of jobs.Store used for liveness tracking.
type HeartbeatStore interface {
	UpdateHeartbeat(ctx context.Context, id string) error
	ReclaimStale(ctx context.Context, cutoff time.Time, skip ...string) ([]*jobs.Job, error)
}

// HeartbeatMonitor refreshes job heartbeats and fails jobs whose run stopped.
type HeartbeatMonitor struct {
	store             HeartbeatStore
	publisher         events.Publisher
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store HeartbeatStore, publisher events.Publisher, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &HeartbeatMonitor{
		store:             store,
		publisher:         publisher,
		logger:            logging.NewComponentLogger(logger, "workflow-heartbeat"),
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale fails non-terminal jobs that have not heartbeated within the
// timeout, skipping ids owned by live runs. Each reclaimed job gets a
// video:error event.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, skip []string) (int, error) {
	if h.heartbeatTimeout <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff, skip...)
	for _, job := range reclaimed {
		jobCtx := services.WithOrganization(services.WithJobID(ctx, job.ID), job.Organization)
		logging.WarnWithContext(logging.WithContext(jobCtx, h.logger), "reclaimed abandoned job", "job_reclaimed",
			logging.Int("progress", job.Progress),
			logging.String(logging.FieldErrorHint, "resubmit the video"),
			logging.String(logging.FieldImpact, "job marked failed"),
		)
		if pubErr := h.publisher.Publish(jobCtx, job.Organization, events.KindError, events.Payload{
			VideoID:  job.ID,
			Progress: job.Progress,
			Status:   string(jobs.StatusFailed),
			Error:    job.ErrorMessage,
		}); pubErr != nil {
			h.logger.Debug("event publish failed", logging.String(logging.FieldJobID, job.ID), logging.Error(pubErr))
		}
	}
	if len(reclaimed) > 0 {
		h.logger.Info("reclaimed stale jobs", logging.Int("count", len(reclaimed)))
	}
	return len(reclaimed), err
}

// StartLoop refreshes the heartbeat of jobID immediately and then on every
// interval until ctx is cancelled.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	logger := logging.WithContext(ctx, h.logger)
	beat := func() {
		if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("heartbeat update cancelled")
				return
			}
			logger.Warn("heartbeat update failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
		}
	}
	beat()
	if h.heartbeatInterval <= 0 {
		return
	}

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}
