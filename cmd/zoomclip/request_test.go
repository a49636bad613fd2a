package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/maauso/zoomclip-api/internal/config"
	"github.com/maauso/zoomclip-api/internal/job/id"
)

func ptr[T any](v T) *T { return &v }

func TestBuildRequest_Defaults(t *testing.T) {
	req, err := buildRequest(nil, overrides{ImageURL: ptr("https://example.com/cat.png")})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/cat.png", req.ImageURL)
	assert.Equal(t, defaultLength, req.Length)
	assert.Equal(t, defaultFrameRate, req.FrameRate)
	assert.Zero(t, req.ZoomSpeed)
	assert.True(t, strings.HasPrefix(req.JobID, id.Prefix))
}

func TestBuildRequest_FileThenFlags(t *testing.T) {
	file := strings.NewReader(`
image_url: s3://bucket/cat.png
length: 8
frame_rate: 24
zoom_speed: 0.05
job_id: from-file
output_resolution: 1920x1080
`)

	req, err := buildRequest(file, overrides{
		FrameRate: ptr(60.0),
		JobID:     ptr("from-flag"),
	})
	require.NoError(t, err)

	assert.Equal(t, "s3://bucket/cat.png", req.ImageURL)
	assert.Equal(t, 8.0, req.Length)
	assert.Equal(t, 60.0, req.FrameRate)
	assert.Equal(t, 0.05, req.ZoomSpeed)
	assert.Equal(t, "from-flag", req.JobID)
	assert.Equal(t, "1920x1080", req.OutputResolution)
}

func TestBuildRequest_EmptyFile(t *testing.T) {
	req, err := buildRequest(bytes.NewReader(nil), overrides{ZoomSpeed: ptr(0.2)})
	require.NoError(t, err)

	assert.Equal(t, defaultLength, req.Length)
	assert.Equal(t, 0.2, req.ZoomSpeed)
}

func TestBuildRequest_InvalidYAML(t *testing.T) {
	_, err := buildRequest(strings.NewReader("length: [not a number"), overrides{})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out

	require.NoError(t, app.Run([]string{"zoomclip", "version"}))
	assert.Equal(t, version+"\n", out.String())
}

// runApplyFlags parses args with the render flags and returns the resulting config.
func runApplyFlags(t *testing.T, args ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Port:                    8080,
		StorageDir:              t.TempDir(),
		FFmpegPath:              "ffmpeg",
		DefaultOutputResolution: "1024x1024",
		FetchTimeoutSec:         60,
		WebhookTimeoutSec:       10,
		LogLevel:                "info",
	}

	cmd := renderCommand()
	cmd.Action = func(c *cli.Context) error {
		return applyFlags(c, cfg)
	}
	app := &cli.App{Name: "zoomclip", Commands: []*cli.Command{cmd}}
	require.NoError(t, app.Run(append([]string{"zoomclip", "render"}, args...)))
	return cfg
}

func TestApplyFlags_LogLevel(t *testing.T) {
	t.Run("defaults to warn", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "")
		os.Unsetenv("LOG_LEVEL")
		assert.Equal(t, "warn", runApplyFlags(t).LogLevel)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		assert.Equal(t, "debug", runApplyFlags(t).LogLevel)
	})

	t.Run("flag wins over environment", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		assert.Equal(t, "error", runApplyFlags(t, "--log-level", "error").LogLevel)
	})
}

func TestApplyFlags_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DIR", "")
	os.Unsetenv("STORAGE_DIR")
	t.Setenv("FFMPEG_PATH", "")
	os.Unsetenv("FFMPEG_PATH")

	dir := t.TempDir()
	cfg := runApplyFlags(t, "--storage-dir", dir, "--ffmpeg", "/opt/ffmpeg", "--cleanup-on-failure")

	assert.Equal(t, dir, cfg.StorageDir)
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpegPath)
	assert.True(t, cfg.CleanupOnFailure)
}
