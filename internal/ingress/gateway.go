package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"mediaflow/internal/access"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/services"
	"mediaflow/internal/storage"
)

// AllowedMimeTypes lists the accepted upload media types.
var AllowedMimeTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/quicktime",
	"video/x-msvideo",
}

// File describes one upload.
type File struct {
	Name     string
	MimeType string
	Content  io.Reader
}

// JobCreator persists new jobs.
type JobCreator interface {
	Create(ctx context.Context, job *jobs.Job) error
	Update(ctx context.Context, job *jobs.Job) error
}

// ObjectStore receives upload bytes.
type ObjectStore interface {
	Transfer(ctx context.Context, r io.Reader, name, mimeType string) (storage.Object, error)
	Delete(ctx context.Context, ref string) error
}

// Enqueuer starts the background run of a created job.
type Enqueuer interface {
	Enqueue(job *jobs.Job) error
}

// Gateway validates submissions and creates jobs.
type Gateway struct {
	store    JobCreator
	objects  ObjectStore
	enqueuer Enqueuer
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxBytes rejects uploads larger than n bytes. Zero disables the limit.
func WithMaxBytes(n int64) Option {
	return func(g *Gateway) { g.maxBytes = n }
}

// NewGateway constructs a gateway.
func NewGateway(store JobCreator, objects ObjectStore, enqueuer Enqueuer, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		objects:  objects,
		enqueuer: enqueuer,
		logger:   logging.NewComponentLogger(logger, "ingress"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NormalizeMimeType lowercases a media type and strips parameters.
func NormalizeMimeType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		return parsed
	}
	return strings.ToLower(value)
}

// Allowed reports whether mimeType is on the allow-list.
func Allowed(mimeType string) bool {
	normalized := NormalizeMimeType(mimeType)
	for _, candidate := range AllowedMimeTypes {
		if normalized == candidate {
			return true
		}
	}
	return false
}

// Submit stores the upload, creates an uploading job owned by p and
// enqueues its run. The returned job is the state at creation.
func (g *Gateway) Submit(ctx context.Context, p access.Principal, f File) (*jobs.Job, error) {
	if err := access.CanSubmit(p).Err(); err != nil {
		return nil, fmt.Errorf("submit: role %q may not upload: %w", p.Role, err)
	}
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(f.Name, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return nil, services.Wrap(services.ErrValidation, "ingress", "submit", "file name is required", nil)
	}
	mimeType := NormalizeMimeType(f.MimeType)
	if !Allowed(mimeType) {
		return nil, services.Wrap(services.ErrValidation, "ingress", "submit",
			fmt.Sprintf("unsupported media type %q (allowed: %s)", f.MimeType, strings.Join(AllowedMimeTypes, ", ")), nil)
	}
	if f.Content == nil {
		return nil, services.Wrap(services.ErrValidation, "ingress", "submit", "file content is required", nil)
	}

	ctx = services.WithOrganization(ctx, p.Organization)
	logger := logging.WithContext(ctx, g.logger).With(logging.String(logging.FieldPrincipal, p.ID))

	content := f.Content
	if g.maxBytes > 0 {
		content = io.LimitReader(f.Content, g.maxBytes+1)
	}
	obj, err := g.objects.Transfer(ctx, content, name, mimeType)
	if err != nil {
		return nil, fmt.Errorf("submit: transfer: %w", err)
	}
	if obj.Size == 0 {
		g.release(ctx, logger, obj.Ref)
		return nil, services.Wrap(services.ErrValidation, "ingress", "submit", "file is empty", nil)
	}
	if g.maxBytes > 0 && obj.Size > g.maxBytes {
		g.release(ctx, logger, obj.Ref)
		return nil, services.Wrap(services.ErrValidation, "ingress", "submit",
			fmt.Sprintf("file exceeds the %d byte upload limit", g.maxBytes), nil)
	}

	job := &jobs.Job{
		Status:       jobs.StatusUploading,
		Sensitivity:  jobs.SensitivityPending,
		OwnerID:      p.ID,
		Organization: p.Organization,
		StorageRef:   obj.Ref,
		URL:          obj.URL,
		Filename:     obj.Filename,
		OriginalName: name,
		SizeBytes:    obj.Size,
		MimeType:     mimeType,
	}
	if err := g.store.Create(ctx, job); err != nil {
		g.release(ctx, logger, obj.Ref)
		return nil, fmt.Errorf("submit: create job: %w", err)
	}
	created := job.Clone()
	ctx = services.WithJobID(ctx, job.ID)
	logger = logger.With(logging.String(logging.FieldJobID, job.ID))

	if err := g.enqueuer.Enqueue(job); err != nil {
		g.abandon(ctx, logger, job, err)
		return nil, fmt.Errorf("submit: %w", err)
	}
	logger.Info("job submitted",
		logging.String("original_name", name),
		logging.Int64("size_bytes", obj.Size),
		logging.String("mime_type", mimeType),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	return created, nil
}

// release deletes a stored object that no job will reference.
func (g *Gateway) release(ctx context.Context, logger *slog.Logger, ref string) {
	if ref == "" {
		return
	}
	if err := g.objects.Delete(ctx, ref); err != nil {
		logging.WarnWithContext(logger, "failed to release orphaned upload", "storage_release_failed",
			logging.String("storage_ref", ref),
			logging.Error(err),
			logging.String(logging.FieldImpact, "object remains in storage without a job"),
		)
	}
}

// abandon fails a job that could not be handed to the pipeline so it does
// not linger in uploading until the reclaim sweep.
func (g *Gateway) abandon(ctx context.Context, logger *slog.Logger, job *jobs.Job, cause error) {
	job.Status = jobs.StatusFailed
	job.ErrorMessage = "not scheduled: " + cause.Error()
	if err := g.store.Update(ctx, job); err != nil && !errors.Is(err, jobs.ErrTerminal) {
		logger.Error("failed to record unscheduled job", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "job could not be scheduled", "job_enqueue_failed",
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "raise workflow.queue_size or workflow.workers"),
	)
}
