package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaflow/internal/database"
)

// Store manages job persistence.
type Store struct {
	db *database.DB
}

// NewStore binds a job store to an open database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new job. An empty ID is replaced with a fresh UUID and the
// status and sensitivity default to uploading and pending.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.Organization) == "" {
		return errors.New("create job: organization is required")
	}
	if strings.TrimSpace(job.OwnerID) == "" {
		return errors.New("create job: owner is required")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusUploading
	}
	if job.Sensitivity == "" {
		job.Sensitivity = SensitivityPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	metadataJSON, err := encodeMetadata(job.Metadata)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, status, sensitivity, progress, owner_id, organization,
            storage_ref, url, filename, original_name, search_name,
            size_bytes, mime_type, duration_seconds, metadata_json,
            error_message, stage, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Status),
		string(job.Sensitivity),
		job.Progress,
		job.OwnerID,
		job.Organization,
		database.NullableString(job.StorageRef),
		database.NullableString(job.URL),
		database.NullableString(job.Filename),
		database.NullableString(job.OriginalName),
		database.NullableString(foldSearch(job.OriginalName)),
		job.SizeBytes,
		database.NullableString(job.MimeType),
		job.DurationSeconds,
		metadataJSON,
		database.NullableString(job.ErrorMessage),
		database.NullableString(job.Stage),
		database.FormatTime(job.CreatedAt),
		database.FormatTime(job.UpdatedAt),
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists the mutable fields of an existing job. Owner, organization
// and creation time never change. Jobs already stored in a terminal state are
// left untouched and ErrTerminal is returned.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	metadataJSON, err := encodeMetadata(job.Metadata)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()

	heartbeatClause := "last_heartbeat = last_heartbeat"
	if job.Status.IsTerminal() {
		heartbeatClause = "last_heartbeat = NULL"
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, sensitivity = ?, progress = ?, storage_ref = ?, url = ?,
             filename = ?, original_name = ?, search_name = ?, size_bytes = ?,
             mime_type = ?, duration_seconds = ?, metadata_json = ?, error_message = ?,
             stage = ?, updated_at = ?, `+heartbeatClause+`
         WHERE id = ? AND status NOT IN (?, ?)`,
		string(job.Status),
		string(job.Sensitivity),
		job.Progress,
		database.NullableString(job.StorageRef),
		database.NullableString(job.URL),
		database.NullableString(job.Filename),
		database.NullableString(job.OriginalName),
		database.NullableString(foldSearch(job.OriginalName)),
		job.SizeBytes,
		database.NullableString(job.MimeType),
		job.DurationSeconds,
		metadataJSON,
		database.NullableString(job.ErrorMessage),
		database.NullableString(job.Stage),
		database.FormatTime(updatedAt),
		job.ID,
		string(StatusCompleted),
		string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.Get(ctx, job.ID)
		if getErr != nil {
			return fmt.Errorf("update job: %w", getErr)
		}
		if current == nil {
			return fmt.Errorf("update job %s: %w", job.ID, ErrNotFound)
		}
		return fmt.Errorf("update job %s (%s): %w", job.ID, current.Status, ErrTerminal)
	}
	job.UpdatedAt = updatedAt
	if job.Status.IsTerminal() {
		job.LastHeartbeat = nil
	}
	return nil
}

// Delete removes a job, reporting whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job: rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns jobs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if org := strings.TrimSpace(filter.Organization); org != "" {
		clauses = append(clauses, "organization = ?")
		args = append(args, org)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Sensitivity != "" {
		clauses = append(clauses, "sensitivity = ?")
		args = append(args, string(filter.Sensitivity))
	}
	if term := foldSearch(filter.Search); term != "" {
		clauses = append(clauses, `search_name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+database.EscapeLike(term)+"%")
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func encodeMetadata(meta Metadata) (any, error) {
	if meta.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}
