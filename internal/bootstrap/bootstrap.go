// Package bootstrap provides dependency initialization for the zoom clip API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/zoomclip-api/internal/clip"
	"github.com/maauso/zoomclip-api/internal/config"
	"github.com/maauso/zoomclip-api/internal/fetch"
	"github.com/maauso/zoomclip-api/internal/job"
	"github.com/maauso/zoomclip-api/internal/media"
	"github.com/maauso/zoomclip-api/internal/storage"
	"github.com/maauso/zoomclip-api/internal/webhook"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	ClipService *job.ClipService
	Producer    *clip.Producer
	Storage     storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := NewStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	checkBinaries(cfg, logger)

	// Image URLs come from API clients, so the server never reads local files
	producer := NewProducer(cfg, store, logger, fetch.WithoutLocalSources())
	prober := media.NewProber(cfg.FFprobePath, media.ExecRunner{})
	notifier := webhook.NewClient(webhook.WithTimeout(cfg.WebhookTimeout()))

	svc := job.NewClipService(
		job.NewMemoryRepository(),
		producer,
		store,
		job.WithProber(prober),
		job.WithNotifier(notifier),
		job.WithLogger(logger),
	)

	return &Dependencies{
		ClipService: svc,
		Producer:    producer,
		Storage:     store,
	}, nil
}

// NewProducer wires a clip producer over store using the rendering settings
// of cfg. Source images are read from S3 when store can serve objects; opts
// further configure the fetch client.
func NewProducer(cfg *config.Config, store storage.Storage, logger *slog.Logger, opts ...fetch.ClientOption) *clip.Producer {
	fetchOpts := []fetch.ClientOption{fetch.WithTimeout(cfg.FetchTimeout())}
	if getter, ok := store.(fetch.ObjectGetter); ok {
		fetchOpts = append(fetchOpts, fetch.WithObjectGetter(getter))
	}
	fetchOpts = append(fetchOpts, opts...)

	return clip.NewProducer(
		store,
		fetch.NewClient(fetchOpts...),
		media.NewImageInspector(),
		media.ExecRunner{},
		clip.WithFFmpegPath(cfg.FFmpegPath),
		clip.WithDefaultResolution(cfg.DefaultOutputResolution),
		clip.WithCleanupOnFailure(cfg.CleanupOnFailure),
		clip.WithLogger(logger),
	)
}

// NewStorage creates the appropriate storage backend based on configuration.
func NewStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			KeyPrefix:       cfg.S3KeyPrefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.StorageDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("storage_dir", s3Store.Dir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("storage_dir", localStore.Dir()),
	)
	return localStore, nil
}

// checkBinaries warns about missing encoder binaries. Jobs still run and
// fail with encoding_failed, so a missing binary is not fatal at startup.
func checkBinaries(cfg *config.Config, logger *slog.Logger) {
	for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		if err := media.LookPath(bin); err != nil {
			logger.Warn("binary not found", slog.String("binary", bin), slog.String("error", err.Error()))
		}
	}
}
