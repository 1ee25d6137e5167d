package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/screenshot-extractor/internal/config"
	"github.com/maauso/screenshot-extractor/internal/job"
	"github.com/maauso/screenshot-extractor/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TempDir:         t.TempDir(),
		OutputDir:       t.TempDir(),
		YTDLPPath:       "yt-dlp",
		IntervalSeconds: 10,
		SceneThreshold:  25,
		ProgressEvery:   100,
	}
}

func TestNewDependencies_Local(t *testing.T) {
	cfg := baseConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, deps.Service)
	require.NotNil(t, deps.Extractor)
	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)

	created, err := deps.Service.CreateJob(context.Background(), job.CreateInput{
		Mode:   job.ModeScenes,
		Source: "video.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, created.IntervalSeconds)
	assert.Equal(t, 25.0, created.SceneThreshold)
	assert.Contains(t, created.OutputDir, cfg.OutputDir)
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := baseConfig(t)
	cfg.S3Bucket = "screenshots"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

func TestNewDependencies_BadTempDir(t *testing.T) {
	cfg := baseConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.TempDir = filepath.Join(blocker, "scratch")

	_, err := NewDependencies(context.Background(), cfg, discardLogger())
	require.Error(t, err)
}
