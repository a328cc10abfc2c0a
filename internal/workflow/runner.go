package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"mediaflow/internal/classifier"
	"mediaflow/internal/events"
	"mediaflow/internal/jobs"
	"mediaflow/internal/logging"
	"mediaflow/internal/media/ffprobe"
	"mediaflow/internal/observability"
	"mediaflow/internal/services"
)

// Checkpoint labels recorded in jobs.Job.Stage and reported as the status of
// progress events.
const (
	StageProcessing = "processing"
	StageAnalyzing  = "analyzing"
	StageFinalizing = "finalizing"
	StageCompleted  = "completed"
)

// Checkpoint progress values.
const (
	ProgressStarted   = 10
	ProgressProbed    = 50
	ProgressAnalyzing = 70
	ProgressFinalize  = 90
	ProgressDone      = 100
)

const failureWriteTimeout = 5 * time.Second

// JobStore is the subset of jobs.Store the runner needs.
type JobStore interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
	Update(ctx context.Context, job *jobs.Job) error
}

// Prober extracts technical metadata for a stored object.
type Prober interface {
	Probe(ctx context.Context, ref string) (ffprobe.Summary, error)
}

// Runner executes the pipeline for a single job.
type Runner struct {
	store      JobStore
	prober     Prober
	classifier classifier.Classifier
	publisher  events.Publisher
	logger     *slog.Logger
}

// NewRunner constructs a runner. A nil publisher discards events.
func NewRunner(store JobStore, prober Prober, cls classifier.Classifier, publisher events.Publisher, logger *slog.Logger) *Runner {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Runner{
		store:      store,
		prober:     prober,
		classifier: cls,
		publisher:  publisher,
		logger:     logging.NewComponentLogger(logger, "workflow-runner"),
	}
}

// run carries the working copy of a job plus the last state known to be
// durable. Failure writes start from durable so progress never moves past
// the last persisted checkpoint.
type run struct {
	job     *jobs.Job
	durable *jobs.Job
	stage   string
}

// Run executes every checkpoint for jobID. A missing or already terminal job
// is logged and skipped without events. The returned error is the cause of a
// failed run; the failure itself has already been recorded.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	ctx = services.WithJobID(ctx, jobID)
	ctx, span := observability.StartSpan(ctx, "workflow.run", attribute.String("job.id", jobID))
	defer span.End()
	logger := logging.WithContext(ctx, r.logger)

	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load job")
		logger.Error("failed to load job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_load_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return err
	}
	if job == nil {
		logger.Warn("job not found; skipping run",
			logging.String(logging.FieldEventType, "job_missing"),
		)
		return nil
	}
	if job.Status.IsTerminal() {
		logger.Info("job already terminal; skipping run",
			logging.String("status", string(job.Status)),
		)
		return nil
	}

	ctx = services.WithOrganization(ctx, job.Organization)
	span.SetAttributes(attribute.String("job.organization", job.Organization))
	st := &run{job: job, durable: job.Clone()}

	if err := r.advance(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, st.stage)
		r.fail(ctx, st, err)
		return err
	}
	logging.WithContext(ctx, r.logger).Info("job completed",
		logging.String("sensitivity", string(st.job.Sensitivity)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	return nil
}

func (r *Runner) advance(ctx context.Context, st *run) error {
	job := st.job

	job.Status = jobs.StatusProcessing
	job.Progress = ProgressStarted
	job.Stage = StageProcessing
	if err := r.checkpoint(ctx, st); err != nil {
		return err
	}
	r.progress(ctx, job, StageProcessing)

	r.probe(ctx, st)
	job.Progress = ProgressProbed
	if err := r.checkpoint(ctx, st); err != nil {
		return err
	}
	r.progress(ctx, job, StageProcessing)

	job.Progress = ProgressAnalyzing
	job.Stage = StageAnalyzing
	if err := r.checkpoint(ctx, st); err != nil {
		return err
	}
	r.progress(ctx, job, StageAnalyzing)

	verdict, err := r.classify(ctx, st)
	if err != nil {
		return err
	}
	job.Sensitivity = verdict

	job.Progress = ProgressFinalize
	job.Stage = StageFinalizing
	if err := r.checkpoint(ctx, st); err != nil {
		return err
	}
	r.progress(ctx, job, StageFinalizing)

	job.Status = jobs.StatusCompleted
	job.Progress = ProgressDone
	job.Stage = StageCompleted
	job.ErrorMessage = ""
	if err := r.checkpoint(ctx, st); err != nil {
		return err
	}
	r.emit(ctx, job.Organization, events.KindComplete, events.Payload{
		VideoID:           job.ID,
		Progress:          ProgressDone,
		Status:            string(jobs.StatusCompleted),
		SensitivityStatus: string(job.Sensitivity),
	})
	return nil
}

// checkpoint persists the working copy. On success it becomes the durable
// state.
func (r *Runner) checkpoint(ctx context.Context, st *run) error {
	st.stage = st.job.Stage
	ctx, span := observability.StartSpan(ctx, "workflow.checkpoint",
		attribute.String("job.id", st.job.ID),
		attribute.String("checkpoint.stage", st.job.Stage),
		attribute.Int("checkpoint.progress", st.job.Progress),
	)
	defer span.End()

	if err := r.store.Update(ctx, st.job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist checkpoint")
		return services.Wrap(services.ErrTransient, st.job.Stage, "persist checkpoint", "", err)
	}
	st.durable = st.job.Clone()
	return nil
}

// probe records technical metadata. A probe failure leaves the job without
// metadata and the run continues.
func (r *Runner) probe(ctx context.Context, st *run) {
	if r.prober == nil || strings.TrimSpace(st.job.StorageRef) == "" {
		return
	}
	ctx, span := observability.StartSpan(ctx, "workflow.probe", attribute.String("job.id", st.job.ID))
	defer span.End()

	summary, err := r.prober.Probe(ctx, st.job.StorageRef)
	if err != nil {
		span.RecordError(err)
		logging.WarnWithContext(logging.WithContext(services.WithStage(ctx, StageProcessing), r.logger),
			"metadata probe failed; continuing without metadata",
			"metadata_probe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the stored object is readable"),
			logging.String(logging.FieldImpact, "job will have no duration or technical metadata"),
		)
		return
	}
	applySummary(st.job, summary)
}

func applySummary(job *jobs.Job, summary ffprobe.Summary) {
	if summary.DurationSeconds > 0 {
		job.DurationSeconds = summary.DurationSeconds
	}
	if summary.SizeBytes > 0 && job.SizeBytes == 0 {
		job.SizeBytes = summary.SizeBytes
	}
	job.Metadata = jobs.Metadata{
		Width:   summary.Width,
		Height:  summary.Height,
		Codec:   summary.Codec,
		Format:  summary.Format,
		Bitrate: summary.Bitrate,
	}
}

func (r *Runner) classify(ctx context.Context, st *run) (jobs.Sensitivity, error) {
	if r.classifier == nil {
		return "", services.Wrap(services.ErrConfiguration, StageAnalyzing, "classify", "no classifier configured", nil)
	}
	ctx, span := observability.StartSpan(ctx, "workflow.classify", attribute.String("job.id", st.job.ID))
	defer span.End()

	verdict, err := r.classifier.Classify(ctx, classifier.Request{
		JobID:    st.job.ID,
		Ref:      st.job.StorageRef,
		URL:      st.job.URL,
		MimeType: st.job.MimeType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classify")
		return "", services.Wrap(services.ErrExternalTool, StageAnalyzing, "classify", "", err)
	}
	if verdict != jobs.SensitivitySafe && verdict != jobs.SensitivityFlagged {
		return "", services.Wrap(services.ErrExternalTool, StageAnalyzing, "classify", "unexpected verdict "+string(verdict), nil)
	}
	span.SetAttributes(attribute.String("job.sensitivity", string(verdict)))
	return verdict, nil
}

func (r *Runner) progress(ctx context.Context, job *jobs.Job, label string) {
	r.emit(ctx, job.Organization, events.KindProgress, events.Payload{
		VideoID:  job.ID,
		Progress: job.Progress,
		Status:   label,
	})
}

// emit publishes an event. Delivery problems never affect the run.
func (r *Runner) emit(ctx context.Context, organization string, kind events.Kind, payload events.Payload) {
	if err := r.publisher.Publish(ctx, organization, kind, payload); err != nil {
		logging.WithContext(ctx, r.logger).Debug("event publish failed",
			logging.String(logging.FieldEventType, kind.EventName()),
			logging.Int("progress", payload.Progress),
			logging.Error(err),
		)
	}
}

// fail records the run failure once, best effort. The error event is only
// published when the failed state was persisted.
func (r *Runner) fail(ctx context.Context, st *run, cause error) {
	stage := st.stage
	if stage == "" {
		stage = StageProcessing
	}
	logger := logging.WithContext(services.WithStage(ctx, stage), r.logger)

	message := failureMessage(ctx, cause)
	failed := st.durable.Clone()
	failed.Status = jobs.StatusFailed
	failed.ErrorMessage = message

	logging.ErrorWithContext(logger, "job failed", "job_failed",
		logging.Int("progress", failed.Progress),
		logging.String("error_message", message),
		logging.Error(cause),
	)

	writeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
		defer cancel()
	}
	if err := r.store.Update(writeCtx, failed); err != nil {
		logging.ErrorWithContext(logger, "failed to persist job failure", "job_failure_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job stays at its last checkpoint until the reclaim sweep fails it"),
		)
		return
	}
	st.durable = failed
	r.emit(writeCtx, failed.Organization, events.KindError, events.Payload{
		VideoID:  failed.ID,
		Progress: failed.Progress,
		Status:   string(jobs.StatusFailed),
		Error:    message,
	})
}

func failureMessage(ctx context.Context, cause error) string {
	if cause == nil {
		return "processing failed"
	}
	if ctx.Err() != nil && errors.Is(cause, context.Canceled) {
		return jobs.AbandonedReason
	}
	if msg := strings.TrimSpace(cause.Error()); msg != "" {
		return msg
	}
	return "processing failed"
}
