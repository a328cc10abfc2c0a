package workflow

import (
	"sort"
	"sync"
	"time"
)

// TaskState is the lifecycle of one run inside the manager.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
	TaskDropped   TaskState = "dropped"
)

// TaskInfo describes a run known to the registry.
type TaskInfo struct {
	JobID        string     `json:"jobId"`
	Organization string     `json:"organization"`
	State        TaskState  `json:"state"`
	EnqueuedAt   time.Time  `json:"enqueuedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Registry tracks queued and running tasks plus a bounded history of
// finished ones. It refuses a second task for a job id still in flight.
type Registry struct {
	mu     sync.Mutex
	active map[string]*TaskInfo
	recent []TaskInfo
	limit  int
	now    func() time.Time
}

// NewRegistry keeps up to limit finished tasks.
func NewRegistry(limit int) *Registry {
	if limit < 0 {
		limit = 0
	}
	return &Registry{
		active: make(map[string]*TaskInfo),
		limit:  limit,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Begin registers a queued task. It returns false when the job already has a
// task in flight.
func (r *Registry) Begin(jobID, organization string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[jobID]; ok {
		return false
	}
	r.active[jobID] = &TaskInfo{
		JobID:        jobID,
		Organization: organization,
		State:        TaskQueued,
		EnqueuedAt:   r.now(),
	}
	return true
}

// Start marks a queued task as running.
func (r *Registry) Start(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.active[jobID]; ok {
		started := r.now()
		task.State = TaskRunning
		task.StartedAt = &started
	}
}

// Finish moves a task to history. A nil error records success.
func (r *Registry) Finish(jobID string, err error) {
	state := TaskSucceeded
	if err != nil {
		state = TaskFailed
	}
	r.finish(jobID, state, err)
}

// Drop removes a task that never ran.
func (r *Registry) Drop(jobID string, reason error) {
	r.finish(jobID, TaskDropped, reason)
}

func (r *Registry) finish(jobID string, state TaskState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.active[jobID]
	if !ok {
		return
	}
	delete(r.active, jobID)
	finished := r.now()
	task.State = state
	task.FinishedAt = &finished
	if err != nil {
		task.Error = err.Error()
	}
	if r.limit == 0 {
		return
	}
	r.recent = append(r.recent, *task)
	if over := len(r.recent) - r.limit; over > 0 {
		r.recent = append(r.recent[:0], r.recent[over:]...)
	}
}

// InFlight reports whether jobID is queued or running.
func (r *Registry) InFlight(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[jobID]
	return ok
}

// Active returns the ids of queued and running tasks.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.active))
	for id := range r.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns active tasks oldest first followed by finished tasks newest
// first. A non-empty organization limits the result to that tenant.
func (r *Registry) Snapshot(organization string) []TaskInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TaskInfo, 0, len(r.active)+len(r.recent))
	for _, task := range r.active {
		if organization != "" && task.Organization != organization {
			continue
		}
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].JobID < out[j].JobID
		}
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	for i := len(r.recent) - 1; i >= 0; i-- {
		if organization != "" && r.recent[i].Organization != organization {
			continue
		}
		out = append(out, r.recent[i])
	}
	return out
}
