package api

import (
	"mediaflow/internal/database"
	"mediaflow/internal/events"
	"mediaflow/internal/workflow"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a job in a transport-friendly format.
type Video struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	SensitivityStatus  string         `json:"sensitivityStatus"`
	ProcessingProgress int            `json:"processingProgress"`
	Stage              string         `json:"stage,omitempty"`
	Owner              string         `json:"owner"`
	Organization       string         `json:"organization"`
	OriginalName       string         `json:"originalName"`
	Filename           string         `json:"filename,omitempty"`
	MimeType           string         `json:"mimeType,omitempty"`
	Size               int64          `json:"size"`
	Duration           float64        `json:"duration,omitempty"`
	URL                string         `json:"url,omitempty"`
	StreamPath         string         `json:"streamPath,omitempty"`
	Metadata           *VideoMetadata `json:"metadata,omitempty"`
	ErrorMessage       string         `json:"errorMessage,omitempty"`
	CreatedAt          string         `json:"createdAt,omitempty"`
	UpdatedAt          string         `json:"updatedAt,omitempty"`
}

// VideoMetadata carries technical details reported by the probe.
type VideoMetadata struct {
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Codec   string `json:"codec,omitempty"`
	Format  string `json:"format,omitempty"`
	Bitrate int64  `json:"bitrate,omitempty"`
}

// VideoListResponse wraps a collection of videos.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
	Count  int     `json:"count"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video Video `json:"video"`
}

// StreamResponse answers a stream lookup when the caller asked for JSON.
type StreamResponse struct {
	URL string `json:"url"`
}

// User describes a principal record.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization"`
	Role         string `json:"role"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// UserListResponse wraps a collection of users.
type UserListResponse struct {
	Users []User `json:"users"`
}

// UserResponse wraps a single user.
type UserResponse struct {
	User User `json:"user"`
}

// RoleChangeRequest is the body of a role change.
type RoleChangeRequest struct {
	Role string `json:"role"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool                   `json:"running"`
	PID            int                    `json:"pid"`
	DatabaseDriver string                 `json:"databaseDriver"`
	DatabasePath   string                 `json:"databasePath,omitempty"`
	LockFilePath   string                 `json:"lockFilePath"`
	StorageBackend string                 `json:"storageBackend"`
	Database       database.Health        `json:"database"`
	Workflow       workflow.StatusSummary `json:"workflow"`
	Dependencies   []DependencyStatus     `json:"dependencies"`
}

// SubmitMetadata is the optional JSON part of an upload. Both fields override
// what the multipart file header declares.
type SubmitMetadata struct {
	OriginalName string `json:"originalName,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
}

// EventListResponse answers a long poll. Next is the cursor for the following
// request.
type EventListResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
