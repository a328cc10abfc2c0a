package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Sensitivity is the classifier verdict attached to a job.
type Sensitivity string

const (
	SensitivityPending Sensitivity = "pending"
	SensitivitySafe    Sensitivity = "safe"
	SensitivityFlagged Sensitivity = "flagged"
)

// AbandonedReason is the error message recorded when the reclaim sweep fails a
// job whose run stopped heartbeating.
const AbandonedReason = "abandoned: daemon stopped before completion"

var allStatuses = []Status{
	StatusUploading,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var sensitivitySet = map[Sensitivity]struct{}{
	SensitivityPending: {},
	SensitivitySafe:    {},
	SensitivityFlagged: {},
}

// ParseStatus converts a string into a Status, reporting whether it was recognized.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseSensitivity converts a string into a Sensitivity, reporting whether it was recognized.
func ParseSensitivity(value string) (Sensitivity, bool) {
	normalized := Sensitivity(strings.ToLower(strings.TrimSpace(value)))
	_, ok := sensitivitySet[normalized]
	return normalized, ok
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Metadata holds technical details reported by the storage provider.
type Metadata struct {
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Codec   string `json:"codec,omitempty"`
	Format  string `json:"format,omitempty"`
	Bitrate int64  `json:"bitrate,omitempty"`
}

// IsZero reports whether no metadata has been recorded.
func (m Metadata) IsZero() bool {
	return m == Metadata{}
}

// Job is one submitted media object moving through the pipeline.
type Job struct {
	ID              string
	Status          Status
	Sensitivity     Sensitivity
	Progress        int
	OwnerID         string
	Organization    string
	StorageRef      string
	URL             string
	Filename        string
	OriginalName    string
	SizeBytes       int64
	MimeType        string
	DurationSeconds float64
	Metadata        Metadata
	ErrorMessage    string
	Stage           string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing the original.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.LastHeartbeat != nil {
		hb := *j.LastHeartbeat
		out.LastHeartbeat = &hb
	}
	return &out
}

// Filter narrows List results. Empty fields do not constrain.
type Filter struct {
	Organization string
	Status       Status
	Sensitivity  Sensitivity
	Search       string
	Limit        int
}

// Summary aggregates job counts for status output.
type Summary struct {
	Total      int `json:"total"`
	Uploading  int `json:"uploading"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}
