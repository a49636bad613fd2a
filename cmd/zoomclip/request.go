package main

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/job/id"
)

// Defaults for fields neither the request file nor the flags set.
const (
	defaultLength    = 5.0
	defaultFrameRate = 30.0
)

// overrides holds the command-line values that were explicitly set.
type overrides struct {
	ImageURL   *string
	Length     *float64
	FrameRate  *float64
	ZoomSpeed  *float64
	JobID      *string
	Resolution *string
}

// buildRequest layers defaults, the optional YAML request in r and the flag
// overrides, in that order. A job ID is generated when none is given.
func buildRequest(r io.Reader, ov overrides) (clip.Request, error) {
	req := clip.Request{
		Length:    defaultLength,
		FrameRate: defaultFrameRate,
	}

	if r != nil {
		if err := yaml.NewDecoder(r).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return clip.Request{}, fmt.Errorf("decode request file: %w", err)
		}
	}

	if ov.ImageURL != nil {
		req.ImageURL = *ov.ImageURL
	}
	if ov.Length != nil {
		req.Length = *ov.Length
	}
	if ov.FrameRate != nil {
		req.FrameRate = *ov.FrameRate
	}
	if ov.ZoomSpeed != nil {
		req.ZoomSpeed = *ov.ZoomSpeed
	}
	if ov.JobID != nil {
		req.JobID = *ov.JobID
	}
	if ov.Resolution != nil {
		req.OutputResolution = *ov.Resolution
	}

	if req.JobID == "" {
		req.JobID = id.Generate()
	}
	return req, nil
}
