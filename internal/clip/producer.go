// Package clip turns a still image into a zoom-in video clip: it fetches the
// image, inspects its orientation, derives the encoder parameters and runs
// ffmpeg, returning the path of the rendered artifact.
package clip

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/maauso/zoomclip-api/internal/media"
	"github.com/maauso/zoomclip-api/internal/zoom"
)

// Request describes one clip to render.
type Request struct {
	// ImageURL locates the source image (http(s), s3:// or a local path).
	ImageURL string `json:"image_url" yaml:"image_url"`
	// Length is the clip duration in seconds.
	Length float64 `json:"length" yaml:"length"`
	// FrameRate is the frames per second of the clip.
	FrameRate float64 `json:"frame_rate" yaml:"frame_rate"`
	// ZoomSpeed is the zoom growth per second; 0 renders a static clip.
	ZoomSpeed float64 `json:"zoom_speed" yaml:"zoom_speed"`
	// JobID names the output artifact.
	JobID string `json:"job_id" yaml:"job_id"`
	// OutputResolution is "<width>x<height>"; empty means zoom.DefaultResolution.
	OutputResolution string `json:"output_resolution,omitempty" yaml:"output_resolution,omitempty"`
	// WebhookURL is carried for the caller's notifier; Produce never calls it.
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
}

// Fetcher retrieves a source image into destDir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, locator, destDir string) (string, error)
}

// DimensionReader reads the pixel size of a local image.
type DimensionReader interface {
	ReadDimensions(ctx context.Context, path string) (width, height int, err error)
}

// Workspace is the directory shared by fetched inputs and rendered outputs.
type Workspace interface {
	Dir() string
	OutputPath(jobID string) string
}

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidJobID reports whether id can be used as an artifact file name.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id) && id != "." && id != ".."
}

// Producer renders clips. It holds no per-call state and may be shared.
type Producer struct {
	workspace         Workspace
	fetcher           Fetcher
	inspector         DimensionReader
	runner            media.Runner
	ffmpegPath        string
	defaultResolution string
	cleanupOnFailure  bool
	logger            *slog.Logger
}

// Option configures a Producer.
type Option func(*Producer)

// WithFFmpegPath sets the ffmpeg binary. Defaults to "ffmpeg" (found via PATH).
func WithFFmpegPath(path string) Option {
	return func(p *Producer) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithDefaultResolution sets the resolution used when a request leaves
// OutputResolution empty. Defaults to zoom.DefaultResolution.
func WithDefaultResolution(res string) Option {
	return func(p *Producer) {
		if res != "" {
			p.defaultResolution = res
		}
	}
}

// WithCleanupOnFailure removes the fetched image on every exit path, not
// only after a successful encode.
func WithCleanupOnFailure(enabled bool) Option {
	return func(p *Producer) {
		p.cleanupOnFailure = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProducer creates a new Producer.
func NewProducer(ws Workspace, fetcher Fetcher, inspector DimensionReader, runner media.Runner, opts ...Option) *Producer {
	p := &Producer{
		workspace:         ws,
		fetcher:           fetcher,
		inspector:         inspector,
		runner:            runner,
		ffmpegPath:        "ffmpeg",
		defaultResolution: zoom.DefaultResolution,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Produce renders req and returns the absolute path of the MP4 artifact.
//
// The fetched image is deleted after a successful encode. On failure it is
// left in the workspace unless WithCleanupOnFailure is set.
func (p *Producer) Produce(ctx context.Context, req Request) (string, error) {
	log := p.logger.With(slog.String("job_id", req.JobID))

	out, err := p.validate(req)
	if err != nil {
		log.Error("invalid clip request", slog.String("error", err.Error()))
		return "", err
	}

	inputPath, err := p.fetcher.Fetch(ctx, req.ImageURL, p.workspace.Dir())
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("fetch cancelled: %w", ctx.Err())
		}
		err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		log.Error("failed to fetch image",
			slog.String("image_url", req.ImageURL),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	log.Info("downloaded image", slog.String("path", inputPath))

	done := false
	if p.cleanupOnFailure {
		defer func() {
			if !done {
				p.removeInput(log, inputPath)
			}
		}()
	}

	width, height, err := p.inspector.ReadDimensions(ctx, inputPath)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrImageReadFailed, err)
		log.Error("failed to read image dimensions",
			slog.String("path", inputPath),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	log.Info("original image dimensions",
		slog.Int("width", width),
		slog.Int("height", height),
	)

	params, err := zoom.NewParams(req.Length, req.FrameRate, req.ZoomSpeed, out, width, height)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	outputPath, err := filepath.Abs(p.workspace.OutputPath(req.JobID))
	if err != nil {
		return "", fmt.Errorf("%w: resolve output path: %w", ErrFilesystem, err)
	}

	log.Info("derived encoder parameters",
		slog.String("output_resolution", params.Output.String()),
		slog.String("scale_dimensions", params.Scale.ScaleString()),
		slog.Float64("length_sec", params.Length),
		slog.Float64("frame_rate", params.FrameRate),
		slog.Int("total_frames", params.TotalFrames),
		slog.Float64("zoom_speed", params.ZoomSpeed),
		slog.Float64("zoom_factor", params.ZoomFactor),
	)

	args := params.Args(inputPath, outputPath)
	log.Debug("running ffmpeg", slog.Any("args", args))

	res, err := p.runner.Run(ctx, p.ffmpegPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("encoding cancelled: %w", ctx.Err())
		}
		err = fmt.Errorf("%w: %w", ErrEncodingFailed, err)
		log.Error("failed to start ffmpeg", slog.String("error", err.Error()))
		return "", err
	}
	if !res.Success() {
		encErr := &EncodingError{ExitCode: res.ExitCode, Args: args, Stderr: res.Stderr}
		log.Error("ffmpeg command failed",
			slog.Int("exit_code", res.ExitCode),
			slog.String("stderr", res.Stderr),
		)
		return "", encErr
	}

	log.Info("video created", slog.String("output_path", outputPath))

	done = true
	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("%w: remove input %s: %w", ErrFilesystem, inputPath, err)
		log.Error("failed to clean up input", slog.String("error", err.Error()))
		return "", err
	}

	return outputPath, nil
}

// removeInput deletes the fetched image, logging rather than returning failures.
func (p *Producer) removeInput(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove input after failure",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// validate checks req before any collaborator is called and returns the
// parsed output resolution.
func (p *Producer) validate(req Request) (zoom.Resolution, error) {
	if !ValidJobID(req.JobID) {
		return zoom.Resolution{}, fmt.Errorf("%w: job id %q is not a safe file name", ErrInvalidParameter, req.JobID)
	}

	if err := zoom.Validate(req.Length, req.FrameRate, req.ZoomSpeed); err != nil {
		return zoom.Resolution{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	res := req.OutputResolution
	if res == "" {
		res = p.defaultResolution
	}
	out, err := zoom.ParseResolution(res)
	if err != nil {
		return zoom.Resolution{}, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	return out, nil
}
