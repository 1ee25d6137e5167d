package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/screenshot-extractor/internal/capture"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New(ModeScenes)

	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, saved.ID)
	assert.Equal(t, ModeScenes, saved.Mode)
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New(ModeScenes)
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, job.Start())
	job.UpdateProgress(50, 100)
	job.AddRecord(capture.Record{Sequence: 1, Path: "a.png"})
	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, saved.Status)
	assert.Equal(t, 50, saved.Progress)
	assert.Len(t, saved.Records, 1)
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	_, err := NewMemoryRepository().FindByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New(ModeTimestamps)
	require.NoError(t, repo.Save(ctx, job))

	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	found.AddRecord(capture.Record{Sequence: 1})
	require.NoError(t, found.Start())

	original, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Empty(t, original.Records, "modifying returned job should not affect repository")
	assert.Equal(t, StatusInQueue, original.Status)
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	older := NewWithID("job-old", ModeScenes)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewWithID("job-new", ModeTimestamps)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	jobs, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-new", jobs[0].ID)
	assert.Equal(t, "job-old", jobs[1].ID)

	jobs[0].UpdateProgress(1, 2)
	original, err := repo.FindByID(ctx, "job-new")
	require.NoError(t, err)
	assert.Zero(t, original.Progress, "modifying listed job should not affect repository")
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New(ModeScenes)
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, repo.Delete(ctx, job.ID))
	_, err := repo.FindByID(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, job.ID), ErrJobNotFound)
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = repo.Save(ctx, New(ModeScenes))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = repo.List(ctx)
		}
	}()
	wg.Wait()

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 100)
}
