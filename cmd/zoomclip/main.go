// Package main provides the zoomclip command, which renders a single zoom
// clip without running the HTTP server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/maauso/zoomclip-api/internal/bootstrap"
	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "zoomclip",
		Usage:   "render a zoom-in video clip from a still image",
		Version: version,
		Commands: []*cli.Command{
			renderCommand(),
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, version)
					return err
				},
			},
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "render one clip and print its path",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "request", Aliases: []string{"r"}, Usage: "YAML `FILE` describing the clip; flags override its fields"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "source image `URL`, s3:// locator or local path"},
			&cli.Float64Flag{Name: "length", Aliases: []string{"l"}, Usage: "clip length in seconds (default 5)"},
			&cli.Float64Flag{Name: "fps", Usage: "frame rate (default 30)"},
			&cli.Float64Flag{Name: "zoom-speed", Aliases: []string{"z"}, Usage: "zoom growth per second"},
			&cli.StringFlag{Name: "job-id", Usage: "artifact name; generated when omitted"},
			&cli.StringFlag{Name: "resolution", Usage: "output size as `WxH`"},
			&cli.StringFlag{Name: "storage-dir", Usage: "working directory", EnvVars: []string{"STORAGE_DIR"}},
			&cli.StringFlag{Name: "ffmpeg", Usage: "ffmpeg binary", EnvVars: []string{"FFMPEG_PATH"}},
			&cli.BoolFlag{Name: "cleanup-on-failure", Usage: "remove the downloaded image when rendering fails"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
		},
		Action: render,
	}
}

func render(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	// stdout carries the artifact path only
	logger := cfg.NewLoggerTo(c.App.ErrWriter)

	req, err := readRequest(c)
	if err != nil {
		return err
	}

	store, err := bootstrap.NewStorage(cfg, logger)
	if err != nil {
		return err
	}
	producer := bootstrap.NewProducer(cfg, store, logger)

	logger.Info("rendering clip", slog.String("job_id", req.JobID), slog.String("image_url", req.ImageURL))
	path, err := producer.Produce(c.Context, req)
	if err != nil {
		return fmt.Errorf("%s: %w", clip.Kind(err), err)
	}

	_, err = fmt.Fprintln(c.App.Writer, path)
	return err
}

// applyFlags overrides cfg with the command-line settings. The log level
// defaults to warn unless LOG_LEVEL or --log-level says otherwise.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("storage-dir") {
		cfg.StorageDir = c.String("storage-dir")
	}
	if c.IsSet("ffmpeg") {
		cfg.FFmpegPath = c.String("ffmpeg")
	}
	if c.IsSet("cleanup-on-failure") {
		cfg.CleanupOnFailure = c.Bool("cleanup-on-failure")
	}
	cfg.LogLevel = c.String("log-level")
	return cfg.Validate()
}

// readRequest builds the clip request from --request and the flags.
func readRequest(c *cli.Context) (clip.Request, error) {
	var ov overrides
	if c.IsSet("image") {
		v := c.String("image")
		ov.ImageURL = &v
	}
	if c.IsSet("length") {
		v := c.Float64("length")
		ov.Length = &v
	}
	if c.IsSet("fps") {
		v := c.Float64("fps")
		ov.FrameRate = &v
	}
	if c.IsSet("zoom-speed") {
		v := c.Float64("zoom-speed")
		ov.ZoomSpeed = &v
	}
	if c.IsSet("job-id") {
		v := c.String("job-id")
		ov.JobID = &v
	}
	if c.IsSet("resolution") {
		v := c.String("resolution")
		ov.Resolution = &v
	}

	var src io.Reader
	if path := c.String("request"); path != "" {
		f, err := os.Open(path) // #nosec G304 - path is supplied by the operator
		if err != nil {
			return clip.Request{}, fmt.Errorf("open request file: %w", err)
		}
		defer f.Close()
		src = f
	}

	return buildRequest(src, ov)
}
