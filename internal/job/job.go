// Package job provides the Job aggregate for clip rendering requests, its
// state machine, persistence port and the ClipService use case that drives
// the clip producer.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the clip is being rendered.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the clip was rendered successfully.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates rendering or publishing failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled by a caller.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is a clip rendering request together with its outcome.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It also names the artifact.
	ID string
	// Status is the current job state.
	Status Status

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
	// WebhookURL is notified when the job reaches a terminal state.
	WebhookURL string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool

	// OutputPath is the local path of the rendered clip.
	OutputPath string
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string
	// DurationSeconds is the probed duration of the rendered clip.
	DurationSeconds float64
	// Error contains the error message if the job failed.
	Error string
	// ErrorKind is a stable label for the failure (see clip.Kind).
	ErrorKind string

	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state, recording the error kind and message.
func (j *Job) Fail(kind, errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.ErrorKind = kind
	j.Error = errMsg
	j.mu.Unlock()
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutput records the rendered artifact.
func (j *Job) SetOutput(path, videoURL string, duration float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = path
	j.VideoURL = videoURL
	j.DurationSeconds = duration
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Request returns the clip request this job renders.
func (j *Job) Request() clip.Request {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return clip.Request{
		ImageURL:         j.ImageURL,
		Length:           j.Length,
		FrameRate:        j.FrameRate,
		ZoomSpeed:        j.ZoomSpeed,
		JobID:            j.ID,
		OutputResolution: j.OutputResolution,
		WebhookURL:       j.WebhookURL,
	}
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:               j.ID,
		Status:           j.Status,
		ImageURL:         j.ImageURL,
		Length:           j.Length,
		FrameRate:        j.FrameRate,
		ZoomSpeed:        j.ZoomSpeed,
		OutputResolution: j.OutputResolution,
		WebhookURL:       j.WebhookURL,
		PushToS3:         j.PushToS3,
		OutputPath:       j.OutputPath,
		VideoURL:         j.VideoURL,
		DurationSeconds:  j.DurationSeconds,
		Error:            j.Error,
		ErrorKind:        j.ErrorKind,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
