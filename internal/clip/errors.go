package clip

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds returned by Producer.Produce. Every error it returns matches
// exactly one of these with errors.Is, except context cancellation.
var (
	// ErrInvalidParameter is returned for malformed resolutions, non-positive
	// length or frame rate, negative zoom speed and unsafe job IDs.
	ErrInvalidParameter = errors.New("clip: invalid parameter")
	// ErrSourceUnavailable is returned when the source image cannot be fetched.
	ErrSourceUnavailable = errors.New("clip: source image unavailable")
	// ErrImageReadFailed is returned when the image dimensions cannot be read.
	ErrImageReadFailed = errors.New("clip: image read failed")
	// ErrEncodingFailed is returned when the encoder cannot run or exits non-zero.
	ErrEncodingFailed = errors.New("clip: encoding failed")
	// ErrFilesystem is returned when the temporary input cannot be removed.
	ErrFilesystem = errors.New("clip: filesystem error")
)

// EncodingError describes an encoder run that exited with a non-zero status.
// It matches ErrEncodingFailed.
type EncodingError struct {
	// ExitCode is the encoder exit status.
	ExitCode int
	// Args is the argument list passed to the encoder.
	Args []string
	// Stderr is the captured diagnostic output.
	Stderr string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("ffmpeg exited with status %d\nargs: %s\nstderr: %s",
		e.ExitCode, strings.Join(e.Args, " "), e.Stderr)
}

// Is reports whether target is ErrEncodingFailed.
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncodingFailed
}

// Kind returns a stable label for err, suitable for metrics and API error codes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrImageReadFailed):
		return "image_read_failed"
	case errors.Is(err, ErrEncodingFailed):
		return "encoding_failed"
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
