// Package zoom derives the encoder parameters for a zoom-in clip rendered
// from a single still image: working canvas size, frame count, zoom ramp and
// the ffmpeg argument list.
package zoom

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScaleFactor is the multiplier applied to the output resolution to obtain
// the intermediate canvas the zoompan filter crops from.
const ScaleFactor = 8

// DefaultResolution is used when a request does not specify one.
const DefaultResolution = "1024x1024"

// MaxDimension bounds each side of an output resolution.
const MaxDimension = 16384

// Static errors for parameter derivation.
var (
	// ErrMalformedResolution is returned when a resolution is not "<int>x<int>".
	ErrMalformedResolution = errors.New("zoom: resolution must be <width>x<height>")
	// ErrNonPositive is returned when a dimension, length or frame rate is not positive.
	ErrNonPositive = errors.New("zoom: value must be positive")
	// ErrNegativeSpeed is returned when the zoom speed is negative.
	ErrNegativeSpeed = errors.New("zoom: zoom speed must not be negative")
	// ErrResolutionTooLarge is returned when a side exceeds MaxDimension.
	ErrResolutionTooLarge = errors.New("zoom: resolution exceeds maximum dimension")
)

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int
	Height int
}

// String renders the resolution as "WxH", the form zoompan's s= option expects.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ScaleString renders the resolution as "W:H", the form the scale filter expects.
func (r Resolution) ScaleString() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// ParseResolution parses "<width>x<height>" into a Resolution.
// Both components must be positive integers no larger than MaxDimension.
func ParseResolution(s string) (Resolution, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return Resolution{}, fmt.Errorf("%w: %q", ErrMalformedResolution, s)
	}

	w, err := strconv.Atoi(parts[0])
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %q", ErrMalformedResolution, s)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %q", ErrMalformedResolution, s)
	}

	if w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("%w: resolution %q", ErrNonPositive, s)
	}
	if w > MaxDimension || h > MaxDimension {
		return Resolution{}, fmt.Errorf("%w: %q (max %d)", ErrResolutionTooLarge, s, MaxDimension)
	}

	return Resolution{Width: w, Height: h}, nil
}

// ScaleDimensions returns the working canvas for the given output resolution.
// The canvas follows the orientation of the source image rather than the
// output: a landscape source keeps (outW, outH), anything else swaps them.
func ScaleDimensions(out Resolution, srcWidth, srcHeight int) Resolution {
	if srcWidth > srcHeight {
		return Resolution{Width: out.Width * ScaleFactor, Height: out.Height * ScaleFactor}
	}
	return Resolution{Width: out.Height * ScaleFactor, Height: out.Width * ScaleFactor}
}

// TotalFrames returns round(length*frameRate), never less than one frame.
func TotalFrames(length, frameRate float64) int {
	n := int(math.Round(length * frameRate))
	if n < 1 {
		n = 1
	}
	return n
}

// ZoomFactor returns the zoom reached on the last frame.
func ZoomFactor(speed, length float64) float64 {
	return 1 + speed*length
}

// Params holds every value needed to render one clip.
type Params struct {
	// Length is the clip duration in seconds.
	Length float64
	// FrameRate is the input and output frame rate.
	FrameRate float64
	// ZoomSpeed is the zoom growth per second.
	ZoomSpeed float64
	// Output is the final video resolution.
	Output Resolution
	// Scale is the intermediate canvas resolution.
	Scale Resolution
	// TotalFrames is the number of frames zoompan emits.
	TotalFrames int
	// ZoomFactor is the zoom on the final frame.
	ZoomFactor float64
}

// Validate checks the animation timing inputs: length and frame rate must be
// positive and finite, speed non-negative and finite.
func Validate(length, frameRate, speed float64) error {
	if length <= 0 || math.IsNaN(length) || math.IsInf(length, 0) {
		return fmt.Errorf("%w: length=%v", ErrNonPositive, length)
	}
	if frameRate <= 0 || math.IsNaN(frameRate) || math.IsInf(frameRate, 0) {
		return fmt.Errorf("%w: frame rate=%v", ErrNonPositive, frameRate)
	}
	if speed < 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: %v", ErrNegativeSpeed, speed)
	}
	return nil
}

// NewParams validates the animation inputs and derives the remaining values.
func NewParams(length, frameRate, speed float64, out Resolution, srcWidth, srcHeight int) (Params, error) {
	if err := Validate(length, frameRate, speed); err != nil {
		return Params{}, err
	}
	if out.Width <= 0 || out.Height <= 0 {
		return Params{}, fmt.Errorf("%w: output %s", ErrNonPositive, out)
	}

	return Params{
		Length:      length,
		FrameRate:   frameRate,
		ZoomSpeed:   speed,
		Output:      out,
		Scale:       ScaleDimensions(out, srcWidth, srcHeight),
		TotalFrames: TotalFrames(length, frameRate),
		ZoomFactor:  ZoomFactor(speed, length),
	}, nil
}

// ZoomAt returns the zoom applied to output frame n (0-indexed). It ramps
// linearly and is clamped at ZoomFactor.
func (p Params) ZoomAt(n int) float64 {
	z := 1 + p.ZoomSpeed*p.Length*float64(n)/float64(p.TotalFrames)
	return math.Min(z, p.ZoomFactor)
}

// ZoomExpr returns the zoompan z= expression equivalent to ZoomAt.
func (p Params) ZoomExpr() string {
	return fmt.Sprintf("min(1+(%s*%s)*on/%d,%s)",
		formatFloat(p.ZoomSpeed),
		formatFloat(p.Length),
		p.TotalFrames,
		formatFloat(p.ZoomFactor),
	)
}

// FilterGraph returns the -vf argument: upscale to the working canvas, then
// zoom towards the centre and emit frames at the output resolution.
func (p Params) FilterGraph() string {
	return fmt.Sprintf("scale=%s,zoompan=z='%s':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%s",
		p.Scale.ScaleString(),
		p.ZoomExpr(),
		p.TotalFrames,
		p.Output,
	)
}

// Args returns the ffmpeg argument list (without the binary name) that
// renders input into output.
func (p Params) Args(input, output string) []string {
	return []string{
		"-y", // Overwrite a previous artifact for the same job
		"-framerate", formatFloat(p.FrameRate),
		"-loop", "1",
		"-i", input,
		"-vf", p.FilterGraph(),
		"-c:v", "libx264",
		"-t", formatFloat(p.Length),
		"-pix_fmt", "yuv420p",
		output,
	}
}

// formatFloat renders f with the fewest digits that round-trip.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
