package jobs

import (
	"database/sql"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"mediaflow/internal/database"
)

const jobColumns = "id, status, sensitivity, progress, owner_id, organization, storage_ref, url, filename, original_name, size_bytes, mime_type, duration_seconds, metadata_json, error_message, stage, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		statusStr        string
		sensitivityStr   string
		progress         int
		ownerID          string
		organization     string
		storageRef       sql.NullString
		url              sql.NullString
		filename         sql.NullString
		originalName     sql.NullString
		sizeBytes        sql.NullInt64
		mimeType         sql.NullString
		duration         sql.NullFloat64
		metadataRaw      sql.NullString
		errorMessage     sql.NullString
		stage            sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&statusStr,
		&sensitivityStr,
		&progress,
		&ownerID,
		&organization,
		&storageRef,
		&url,
		&filename,
		&originalName,
		&sizeBytes,
		&mimeType,
		&duration,
		&metadataRaw,
		&errorMessage,
		&stage,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Status:          Status(statusStr),
		Sensitivity:     Sensitivity(sensitivityStr),
		Progress:        progress,
		OwnerID:         ownerID,
		Organization:    organization,
		StorageRef:      storageRef.String,
		URL:             url.String,
		Filename:        filename.String,
		OriginalName:    originalName.String,
		SizeBytes:       sizeBytes.Int64,
		MimeType:        mimeType.String,
		DurationSeconds: duration.Float64,
		ErrorMessage:    errorMessage.String,
		Stage:           stage.String,
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		// Unreadable metadata is descriptive only; keep the job usable.
		_ = json.Unmarshal([]byte(metadataRaw.String), &job.Metadata)
	}
	if created, err := database.ParseTime(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := database.ParseTime(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := database.ParseTime(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

// foldSearch case-folds a name so search matches regardless of case.
func foldSearch(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return cases.Fold().String(value)
}
