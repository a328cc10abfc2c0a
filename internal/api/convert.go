package api

import (
	"net/url"
	"time"

	"mediaflow/internal/jobs"
	"mediaflow/internal/users"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) Video {
	if job == nil {
		return Video{}
	}
	dto := Video{
		ID:                 job.ID,
		Status:             string(job.Status),
		SensitivityStatus:  string(job.Sensitivity),
		ProcessingProgress: job.Progress,
		Stage:              job.Stage,
		Owner:              job.OwnerID,
		Organization:       job.Organization,
		OriginalName:       job.OriginalName,
		Filename:           job.Filename,
		MimeType:           job.MimeType,
		Size:               job.SizeBytes,
		Duration:           job.DurationSeconds,
		URL:                publicURL(job.URL),
		ErrorMessage:       job.ErrorMessage,
		CreatedAt:          FormatTime(job.CreatedAt),
		UpdatedAt:          FormatTime(job.UpdatedAt),
	}
	if job.Status == jobs.StatusCompleted {
		dto.StreamPath = StreamPath(job.ID)
	}
	if !job.Metadata.IsZero() {
		dto.Metadata = &VideoMetadata{
			Width:   job.Metadata.Width,
			Height:  job.Metadata.Height,
			Codec:   job.Metadata.Codec,
			Format:  job.Metadata.Format,
			Bitrate: job.Metadata.Bitrate,
		}
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(list []*jobs.Job) []Video {
	out := make([]Video, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromUser converts a user record. The token digest is never exposed.
func FromUser(u *users.User) User {
	if u == nil {
		return User{}
	}
	return User{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Organization: u.Organization,
		Role:         string(u.Role),
		CreatedAt:    FormatTime(u.CreatedAt),
		UpdatedAt:    FormatTime(u.UpdatedAt),
	}
}

// FromUsers converts a slice of user records.
func FromUsers(list []*users.User) []User {
	out := make([]User, 0, len(list))
	for _, u := range list {
		out = append(out, FromUser(u))
	}
	return out
}

// StreamPath returns the API path that serves a completed video.
func StreamPath(id string) string {
	return "/api/videos/" + url.PathEscape(id) + "/stream"
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// publicURL keeps provider URLs that a client can fetch. Local file URLs stay
// inside the daemon.
func publicURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "http" || parsed.Scheme == "https" {
		return raw
	}
	return ""
}
