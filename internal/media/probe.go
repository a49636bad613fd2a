package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrFFprobeExecution is returned when the ffprobe command fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// Prober reads container metadata with ffprobe.
type Prober struct {
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	runner      Runner
}

// NewProber creates a new Prober.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
// If runner is nil, ExecRunner is used.
func NewProber(ffprobePath string, runner Runner) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Duration returns the duration in seconds of a media file.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFFprobeExecution, err)
	}
	if !res.Success() {
		return 0, fmt.Errorf("%w: exit status %d, stderr: %s", ErrFFprobeExecution, res.ExitCode, res.Stderr)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}

	return duration, nil
}
