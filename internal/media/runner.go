// Package media provides the external-process and image inspection
// capabilities used to render clips: running ffmpeg/ffprobe and reading the
// pixel size of a source image.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the outcome of a finished process. A non-zero ExitCode is a
// normal result, not an error: callers decide how to treat it.
type Result struct {
	// ExitCode is the process exit status.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout string
	// Stderr is the captured standard error, ffmpeg's diagnostic stream.
	Stderr string
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes an external program and captures its output.
// An error is returned only when the program could not be run to completion
// (missing binary, cancelled context); exit statuses are reported in Result.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = ExecRunner{}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// Run executes name with args and waits for it to exit.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	// #nosec G204 - binary paths come from configuration, arguments are built internally
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	// Check if context was cancelled
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}

	return res, fmt.Errorf("run %s: %w", name, err)
}

// LookPath reports whether the named binary can be resolved.
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found: %w", name, err)
	}
	return nil
}
