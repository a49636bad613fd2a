package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/job/id"
	"github.com/maauso/zoomclip-api/internal/metrics"
	"github.com/maauso/zoomclip-api/internal/storage"
	"github.com/maauso/zoomclip-api/internal/webhook"
)

// Static errors for ClipService.
var (
	// ErrUploadFailed is returned when the rendered clip cannot be pushed to S3.
	ErrUploadFailed = errors.New("job: upload failed")
	// ErrJobCancelled is returned when a job was cancelled or deleted while running.
	ErrJobCancelled = errors.New("job: cancelled")
)

// Producer renders a clip and returns the artifact path.
type Producer interface {
	Produce(ctx context.Context, req clip.Request) (string, error)
}

// DurationProber reads the duration of a rendered clip.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// CreateJobInput contains the parameters of a new clip job.
type CreateJobInput struct {
	// ID is the caller-chosen job ID; a new one is generated when empty.
	ID string
	// ImageURL locates the source image.
	ImageURL string
	// Length is the clip duration in seconds.
	Length float64
	// FrameRate is the clip frame rate.
	FrameRate float64
	// ZoomSpeed is the zoom growth per second.
	ZoomSpeed float64
	// OutputResolution is "<width>x<height>", empty for the default.
	OutputResolution string
	// WebhookURL is notified when the job finishes.
	WebhookURL string
	// PushToS3 indicates whether to upload the clip to S3.
	PushToS3 bool
}

// ProcessOutput contains the result of processing a job.
type ProcessOutput struct {
	// JobID is the processed job.
	JobID string
	// Status is the final job status.
	Status Status
	// OutputPath is the local path of the rendered clip.
	OutputPath string
	// VideoURL is the S3 URL of the clip, if it was uploaded.
	VideoURL string
	// DurationSeconds is the probed clip duration, 0 if unknown.
	DurationSeconds float64
	// Error contains the error message if processing failed.
	Error string
	// ErrorKind is the stable failure label.
	ErrorKind string
}

// ClipService orchestrates clip jobs: it persists them, drives the producer,
// publishes artifacts and notifies webhooks.
type ClipService struct {
	repo     Repository
	producer Producer
	storage  storage.Storage
	prober   DurationProber
	notifier webhook.Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// ServiceOption is a function that configures a ClipService.
type ServiceOption func(*ClipService)

// WithProber enables duration probing of rendered clips.
func WithProber(p DurationProber) ServiceOption {
	return func(s *ClipService) {
		s.prober = p
	}
}

// WithNotifier enables webhook notifications.
func WithNotifier(n webhook.Notifier) ServiceOption {
	return func(s *ClipService) {
		s.notifier = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *ClipService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewClipService creates a new ClipService.
func NewClipService(repo Repository, producer Producer, store storage.Storage, opts ...ServiceOption) *ClipService {
	s := &ClipService{
		repo:     repo,
		producer: producer,
		storage:  store,
		logger:   slog.Default(),
		running:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a new job in IN_QUEUE status.
func (s *ClipService) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	jobID := input.ID
	if jobID == "" {
		jobID = id.Generate()
	}
	if !clip.ValidJobID(jobID) {
		return nil, fmt.Errorf("%w: job id %q is not a safe file name", clip.ErrInvalidParameter, jobID)
	}

	job := NewWithID(jobID)
	job.ImageURL = input.ImageURL
	job.Length = input.Length
	job.FrameRate = input.FrameRate
	job.ZoomSpeed = input.ZoomSpeed
	job.OutputResolution = input.OutputResolution
	job.WebhookURL = input.WebhookURL
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("image_url", input.ImageURL),
		slog.Float64("length_sec", input.Length),
		slog.Float64("frame_rate", input.FrameRate),
		slog.Float64("zoom_speed", input.ZoomSpeed),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Create(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ClipService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, newest first.
func (s *ClipService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// CancelJob cancels a queued or running job. The rendering of a running job
// is interrupted and its partial output discarded.
func (s *ClipService) CancelJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save cancelled job: %w", err)
	}
	s.interrupt(jobID)

	s.logger.Info("job cancelled", slog.String("job_id", jobID))
	return job, nil
}

// DeleteJob removes a job and its artifact. A running job is interrupted first.
func (s *ClipService) DeleteJob(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	s.interrupt(jobID)

	paths := []string{s.storage.OutputPath(jobID)}
	if job.OutputPath != "" && job.OutputPath != paths[0] {
		paths = append(paths, job.OutputPath)
	}
	if err := s.storage.Remove(ctx, paths); err != nil {
		s.logger.Error("failed to delete clip",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("delete clip: %w", err)
	}

	if err := s.repo.Delete(ctx, jobID); err != nil {
		return err
	}

	s.logger.Info("job deleted", slog.String("job_id", jobID))
	return nil
}

// Process creates a job and renders it synchronously.
func (s *ClipService) Process(ctx context.Context, input CreateJobInput) (*ProcessOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// ProcessExistingJob renders a queued job: it runs the producer, optionally
// uploads the clip to S3, probes its duration and notifies the job webhook.
// The returned output reflects the final job state even when err is non-nil.
func (s *ClipService) ProcessExistingJob(ctx context.Context, jobID string) (*ProcessOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(slog.String("job_id", jobID))

	if err := job.Start(); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.SaveIfStatus(ctx, job, StatusInQueue); err != nil {
		return nil, fmt.Errorf("start job %s: %w", jobID, err)
	}

	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	runCtx, cancel := context.WithCancel(ctx)
	s.track(jobID, cancel)
	defer s.untrack(jobID)

	start := time.Now()
	outputPath, err := s.producer.Produce(runCtx, job.Request())
	metrics.ClipDuration.WithLabelValues(metrics.StageRender).Observe(time.Since(start).Seconds())

	if s.abandoned(ctx, jobID) {
		return s.drop(ctx, log, jobID, outputPath)
	}
	if err != nil {
		return s.fail(ctx, log, job, err)
	}

	var videoURL string
	if job.PushToS3 {
		videoURL, err = s.upload(ctx, jobID, outputPath)
		if err != nil {
			return s.fail(ctx, log, job, err)
		}
	}

	var duration float64
	if s.prober != nil {
		if d, probeErr := s.prober.Duration(ctx, outputPath); probeErr != nil {
			log.Warn("failed to probe clip duration", slog.String("error", probeErr.Error()))
		} else {
			duration = d
		}
	}

	job.SetOutput(outputPath, videoURL, duration)
	if err := job.Complete(); err != nil {
		return nil, fmt.Errorf("complete job %s: %w", jobID, err)
	}
	// A cancel or delete may have landed during upload
	if err := s.repo.SaveIfStatus(ctx, job, StatusRunning); err != nil {
		if superseded(err) {
			return s.drop(ctx, log, jobID, outputPath)
		}
		return nil, fmt.Errorf("save job: %w", err)
	}

	metrics.ClipsTotal.WithLabelValues(clip.Kind(nil)).Inc()
	log.Info("job completed",
		slog.String("output_path", outputPath),
		slog.String("video_url", videoURL),
		slog.Float64("duration_sec", duration),
	)

	out := outputOf(job)
	s.notify(ctx, log, job, out)
	return out, nil
}

// fail records err on the job and notifies its webhook.
func (s *ClipService) fail(ctx context.Context, log *slog.Logger, job *Job, err error) (*ProcessOutput, error) {
	kind := ErrorKind(err)
	log.Error("job failed",
		slog.String("error_kind", kind),
		slog.String("error", err.Error()),
	)

	if failErr := job.Fail(kind, err.Error()); failErr != nil {
		return nil, fmt.Errorf("fail job %s: %w", job.ID, failErr)
	}
	if saveErr := s.repo.SaveIfStatus(ctx, job, StatusRunning); saveErr != nil {
		if superseded(saveErr) {
			return s.drop(ctx, log, job.ID, "")
		}
		log.Error("failed to save failed job", slog.String("error", saveErr.Error()))
	}
	metrics.ClipsTotal.WithLabelValues(kind).Inc()

	out := outputOf(job)
	s.notify(ctx, log, job, out)
	return out, err
}

// upload pushes the rendered clip to S3 under "<jobID>.mp4".
func (s *ClipService) upload(ctx context.Context, jobID, outputPath string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ClipDuration.WithLabelValues(metrics.StageUpload).Observe(time.Since(start).Seconds())
	}()

	f, err := s.storage.Open(ctx, outputPath)
	if err != nil {
		return "", fmt.Errorf("%w: open clip: %w", ErrUploadFailed, err)
	}
	defer func() { _ = f.Close() }()

	url, err := s.storage.UploadToS3(ctx, jobID+".mp4", f)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return url, nil
}

// notify sends the job webhook, if any. Delivery failures are only logged.
func (s *ClipService) notify(ctx context.Context, log *slog.Logger, job *Job, out *ProcessOutput) {
	if s.notifier == nil || job.WebhookURL == "" {
		return
	}

	event := webhook.Event{
		JobID:           out.JobID,
		Status:          string(out.Status),
		OutputPath:      out.OutputPath,
		VideoURL:        out.VideoURL,
		DurationSeconds: out.DurationSeconds,
		Error:           out.Error,
		ErrorKind:       out.ErrorKind,
	}
	if err := s.notifier.Notify(ctx, job.WebhookURL, event); err != nil {
		log.Warn("webhook delivery failed",
			slog.String("webhook_url", job.WebhookURL),
			slog.String("error", err.Error()),
		)
		return
	}
	log.Info("webhook delivered", slog.String("webhook_url", job.WebhookURL))
}

// abandoned reports whether the job was deleted or cancelled while running.
func (s *ClipService) abandoned(ctx context.Context, jobID string) bool {
	current, err := s.repo.FindByID(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		return true
	}
	return err == nil && current.GetStatus() == StatusCancelled
}

// superseded reports whether a conditional save failed because the job was
// cancelled or deleted concurrently.
func superseded(err error) bool {
	return errors.Is(err, ErrStatusChanged) || errors.Is(err, ErrJobNotFound)
}

// drop abandons a job that was cancelled or deleted while running: its
// artifact is removed and no further state is recorded.
func (s *ClipService) drop(ctx context.Context, log *slog.Logger, jobID, outputPath string) (*ProcessOutput, error) {
	s.discard(ctx, log, jobID, outputPath)
	metrics.ClipsTotal.WithLabelValues("cancelled").Inc()
	log.Info("job was cancelled while running")
	return &ProcessOutput{JobID: jobID, Status: StatusCancelled}, ErrJobCancelled
}

// discard removes the output of an abandoned job. A killed render reports no
// path, so the deterministic artifact path is always removed too.
func (s *ClipService) discard(ctx context.Context, log *slog.Logger, jobID, outputPath string) {
	paths := []string{s.storage.OutputPath(jobID)}
	if outputPath != "" && outputPath != paths[0] {
		paths = append(paths, outputPath)
	}
	if err := s.storage.Remove(ctx, paths); err != nil {
		log.Warn("failed to discard clip", slog.String("error", err.Error()))
	}
}

func (s *ClipService) track(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[jobID] = cancel
}

func (s *ClipService) untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[jobID]; ok {
		cancel()
		delete(s.running, jobID)
	}
}

// interrupt cancels the rendering of a running job, if any.
func (s *ClipService) interrupt(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[jobID]; ok {
		cancel()
	}
}

// ErrorKind labels err for job records and metrics.
func ErrorKind(err error) string {
	if errors.Is(err, ErrUploadFailed) {
		return "upload_failed"
	}
	return clip.Kind(err)
}

func outputOf(job *Job) *ProcessOutput {
	snap := job.Clone()
	return &ProcessOutput{
		JobID:           snap.ID,
		Status:          snap.Status,
		OutputPath:      snap.OutputPath,
		VideoURL:        snap.VideoURL,
		DurationSeconds: snap.DurationSeconds,
		Error:           snap.Error,
		ErrorKind:       snap.ErrorKind,
	}
}
