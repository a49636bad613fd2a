// Package server provides the HTTP server for the zoom clip API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/zoomclip-api/internal/job"
)

// Defaults applied to omitted request fields.
const (
	// DefaultLength is the clip length in seconds when none is given.
	DefaultLength = 5.0
	// DefaultFrameRate is the frame rate when none is given.
	DefaultFrameRate = 30.0
)

// CreateJobRequest is the HTTP request body for creating a new clip job.
type CreateJobRequest struct {
	// ID optionally names the job and its artifact.
	ID string `json:"id" validate:"omitempty,jobid"`
	// ImageURL locates the source image: an http(s) URL or an s3:// locator.
	ImageURL string `json:"image_url" validate:"required,url,remote_source"`
	// Length is the clip duration in seconds.
	Length float64 `json:"length" validate:"omitempty,gt=0,lte=600"`
	// FrameRate is the clip frame rate.
	FrameRate float64 `json:"frame_rate" validate:"omitempty,gt=0,lte=120"`
	// ZoomSpeed is the zoom growth per second.
	ZoomSpeed float64 `json:"zoom_speed" validate:"gte=0"`
	// OutputResolution is "<width>x<height>".
	OutputResolution string `json:"output_resolution" validate:"omitempty,resolution"`
	// WebhookURL is notified when the job finishes.
	WebhookURL string `json:"webhook_url" validate:"omitempty,url"`
	// PushToS3 indicates whether to upload the clip to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// toInput converts the request to the service input, applying defaults.
func (r CreateJobRequest) toInput() job.CreateJobInput {
	length := r.Length
	if length == 0 {
		length = DefaultLength
	}
	frameRate := r.FrameRate
	if frameRate == 0 {
		frameRate = DefaultFrameRate
	}
	return job.CreateJobInput{
		ID:               r.ID,
		ImageURL:         r.ImageURL,
		Length:           length,
		FrameRate:        frameRate,
		ZoomSpeed:        r.ZoomSpeed,
		OutputResolution: r.OutputResolution,
		WebhookURL:       r.WebhookURL,
		PushToS3:         r.PushToS3,
	}
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for job details.
type JobResponse struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	ImageURL         string  `json:"image_url"`
	Length           float64 `json:"length"`
	FrameRate        float64 `json:"frame_rate"`
	ZoomSpeed        float64 `json:"zoom_speed"`
	OutputResolution string  `json:"output_resolution,omitempty"`
	PushToS3         bool    `json:"push_to_s3"`
	OutputPath       string  `json:"output_path,omitempty"`
	VideoURL         string  `json:"video_url,omitempty"`
	DurationSeconds  float64 `json:"duration_seconds,omitempty"`
	Error            string  `json:"error,omitempty"`
	ErrorCode        string  `json:"error_code,omitempty"`
	CreatedAt        string  `json:"created_at"`
	StartedAt        string  `json:"started_at,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
}

// newJobResponse maps a job to its HTTP representation.
func newJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:               j.ID,
		Status:           string(j.Status),
		ImageURL:         j.ImageURL,
		Length:           j.Length,
		FrameRate:        j.FrameRate,
		ZoomSpeed:        j.ZoomSpeed,
		OutputResolution: j.OutputResolution,
		PushToS3:         j.PushToS3,
		OutputPath:       j.OutputPath,
		VideoURL:         j.VideoURL,
		DurationSeconds:  j.DurationSeconds,
		Error:            j.Error,
		ErrorCode:        j.ErrorKind,
		CreatedAt:        formatTime(j.CreatedAt),
		StartedAt:        formatTime(j.StartedAt),
		CompletedAt:      formatTime(j.CompletedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
