// Package bootstrap wires the screenshot extractor from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/screenshot-extractor/internal/acquire"
	"github.com/maauso/screenshot-extractor/internal/config"
	"github.com/maauso/screenshot-extractor/internal/job"
	"github.com/maauso/screenshot-extractor/internal/media"
	"github.com/maauso/screenshot-extractor/internal/storage"
)

// Dependencies holds the initialized application graph shared by the HTTP
// server and the CLI.
type Dependencies struct {
	Service   *job.Service
	Extractor *job.Extractor
	Storage   storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Paths go straight to the decoder; URLs are fetched into scratch space first.
	acquirer := acquire.NewRouter(acquire.NewYTDLP(store,
		acquire.WithBinary(cfg.YTDLPPath),
		acquire.WithLogger(logger),
	))

	extractor := job.NewExtractor(
		acquirer,
		media.NewFFmpegOpener(cfg.FFmpegPath),
		store,
		job.WithProgressEvery(cfg.ProgressEvery),
		job.WithLogger(logger),
	)

	svc := job.NewService(job.NewMemoryRepository(), extractor, job.Defaults{
		OutputRoot:      cfg.OutputDir,
		IntervalSeconds: cfg.IntervalSeconds,
		SceneThreshold:  cfg.SceneThreshold,
	}, logger)

	return &Dependencies{
		Service:   svc,
		Extractor: extractor,
		Storage:   store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
