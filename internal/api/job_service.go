package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mediaflow/internal/access"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/storage"
)

// JobStore abstracts job persistence needed by the query surface.
type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, filter jobs.Filter) ([]*jobs.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ObjectLocator abstracts the storage operations used after upload.
type ObjectLocator interface {
	Delete(ctx context.Context, ref string) error
	Locate(ctx context.Context, ref string) (storage.Location, error)
}

// ListOptions narrows a listing. Empty fields do not constrain.
type ListOptions struct {
	Status      string
	Sensitivity string
	Search      string
	Limit       int
}

// JobService exposes tenant-scoped job operations.
type JobService struct {
	store   JobStore
	objects ObjectLocator
	logger  *slog.Logger
}

// NewJobService constructs a JobService.
func NewJobService(store JobStore, objects ObjectLocator, logger *slog.Logger) *JobService {
	return &JobService{
		store:   store,
		objects: objects,
		logger:  logging.NewComponentLogger(logger, "api"),
	}
}

// Get returns the job if p may read it. Missing and cross-organization jobs
// both yield services.ErrNotFound.
func (s *JobService) Get(ctx context.Context, p access.Principal, id string) (*jobs.Job, error) {
	return s.authorized(ctx, p, id, access.OpRead)
}

// List returns jobs of p's organization, newest first.
func (s *JobService) List(ctx context.Context, p access.Principal, opts ListOptions) ([]*jobs.Job, error) {
	if strings.TrimSpace(p.Organization) == "" {
		return nil, services.Wrap(services.ErrForbidden, "api", "list", "principal has no organization", nil)
	}
	filter := jobs.Filter{
		Organization: p.Organization,
		Search:       strings.TrimSpace(opts.Search),
		Limit:        opts.Limit,
	}
	if raw := strings.TrimSpace(opts.Status); raw != "" {
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown status %q", raw), nil)
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(opts.Sensitivity); raw != "" {
		sensitivity, ok := jobs.ParseSensitivity(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown sensitivity %q", raw), nil)
		}
		filter.Sensitivity = sensitivity
	}
	if filter.Limit < 0 {
		return nil, services.Wrap(services.ErrValidation, "api", "list", "limit must not be negative", nil)
	}
	return s.store.List(ctx, filter)
}

// Delete removes a job p may delete. The stored object is released first,
// best effort; a storage failure never blocks the record deletion.
func (s *JobService) Delete(ctx context.Context, p access.Principal, id string) error {
	job, err := s.authorized(ctx, p, id, access.OpDelete)
	if err != nil {
		return err
	}
	ctx = services.WithOrganization(services.WithJobID(ctx, job.ID), job.Organization)
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldPrincipal, p.ID))

	if job.StorageRef != "" && s.objects != nil {
		if err := s.objects.Delete(ctx, job.StorageRef); err != nil {
			logging.WarnWithContext(logger, "storage delete failed; removing record anyway", "storage_delete_failed",
				logging.String("storage_ref", job.StorageRef),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stored object may be orphaned"),
			)
		}
	}
	removed, err := s.store.Delete(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "api", "delete", "video not found", nil)
	}
	logger.Info("job deleted", logging.String(logging.FieldEventType, "job_deleted"))
	return nil
}

// StreamURL resolves where a completed job can be played from.
func (s *JobService) StreamURL(ctx context.Context, p access.Principal, id string) (storage.Location, error) {
	job, err := s.authorized(ctx, p, id, access.OpRead)
	if err != nil {
		return storage.Location{}, err
	}
	if job.Status != jobs.StatusCompleted {
		return storage.Location{}, services.Wrap(services.ErrValidation, "api", "stream", "video is still processing", nil)
	}
	if s.objects == nil || job.StorageRef == "" {
		if job.URL != "" {
			return storage.Location{URL: job.URL}, nil
		}
		return storage.Location{}, services.Wrap(services.ErrNotFound, "api", "stream", "video has no stored object", nil)
	}
	loc, err := s.objects.Locate(ctx, job.StorageRef)
	if err != nil {
		return storage.Location{}, fmt.Errorf("locate video: %w", err)
	}
	return loc, nil
}

func (s *JobService) authorized(ctx context.Context, p access.Principal, id string, op access.Operation) (*jobs.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrNotFound, "api", string(op), "video not found", nil)
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "api", string(op), "video not found", nil)
	}
	decision := access.Authorize(p, access.Resource{Organization: job.Organization, OwnerID: job.OwnerID}, op)
	switch decision {
	case access.Allowed:
		return job, nil
	case access.DeniedNotFound:
		return nil, services.Wrap(decision.Err(), "api", string(op), "video not found", nil)
	default:
		return nil, services.Wrap(decision.Err(), "api", string(op), "not permitted to "+string(op)+" this video", nil)
	}
}
