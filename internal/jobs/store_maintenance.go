package jobs

import (
	"context"
	"fmt"
	"time"

	"mediaflow/internal/database"
)

// Stats returns a count of jobs grouped by status. An empty organization
// counts every tenant.
func (s *Store) Stats(ctx context.Context, organization string) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM jobs`
	var args []any
	if organization != "" {
		query += ` WHERE organization = ?`
		args = append(args, organization)
	}
	query += ` GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

// Summarize folds Stats into a Summary.
func (s *Store) Summarize(ctx context.Context, organization string) (Summary, error) {
	stats, err := s.Stats(ctx, organization)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusUploading:
			summary.Uploading += count
		case StatusProcessing:
			summary.Processing += count
		case StatusCompleted:
			summary.Completed += count
		case StatusFailed:
			summary.Failed += count
		}
	}
	return summary, nil
}

// UpdateHeartbeat refreshes the heartbeat of a non-terminal job. It touches
// only the heartbeat column so it never races a checkpoint write.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ? AND status NOT IN (?, ?)`,
		database.FormatTime(now),
		id,
		string(StatusCompleted),
		string(StatusFailed),
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails non-terminal jobs whose heartbeat (or, lacking one, last
// update) is older than cutoff. Progress is left at its last persisted value.
// Jobs listed in skip are owned by a live run and are never touched.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time, skip ...string) ([]*Job, error) {
	candidates, err := s.staleCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}

	cutoffText := database.FormatTime(cutoff)
	var reclaimed []*Job
	for _, job := range candidates {
		if _, ok := skipped[job.ID]; ok {
			continue
		}
		now := time.Now().UTC()
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ? AND status IN (?, ?)
               AND ((last_heartbeat IS NOT NULL AND last_heartbeat < ?)
                 OR (last_heartbeat IS NULL AND updated_at < ?))`,
			string(StatusFailed),
			AbandonedReason,
			database.FormatTime(now),
			job.ID,
			string(StatusUploading),
			string(StatusProcessing),
			cutoffText,
			cutoffText,
		)
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim job %s: %w", job.ID, err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			continue
		}
		job.Status = StatusFailed
		job.ErrorMessage = AbandonedReason
		job.LastHeartbeat = nil
		job.UpdatedAt = now
		reclaimed = append(reclaimed, job)
	}
	return reclaimed, nil
}

func (s *Store) staleCandidates(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	cutoffText := database.FormatTime(cutoff)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (?, ?)
           AND ((last_heartbeat IS NOT NULL AND last_heartbeat < ?)
             OR (last_heartbeat IS NULL AND updated_at < ?))
         ORDER BY created_at`,
		string(StatusUploading),
		string(StatusProcessing),
		cutoffText,
		cutoffText,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale jobs: %w", err)
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
