package capture

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/screenshot-extractor/internal/sampling"
)

func TestSceneFileName(t *testing.T) {
	tests := []struct {
		seq, index, fps int
		expected        string
	}{
		{0, 0, 30, "screenshot_000_00-00-00.png"},
		{0, 150, 30, "screenshot_000_00-00-05.png"},
		{1, 0, 30, "screenshot_001_00-00-00.png"},
		{7, 2490, 30, "screenshot_007_00-01-23.png"},
		{12, 30 * 3725, 30, "screenshot_012_01-02-05.png"},
		{1000, 59, 30, "screenshot_1000_00-00-01.png"},
		{2, 50, 0, "screenshot_002_00-00-00.png"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, SceneFileName(tt.seq, tt.index, tt.fps))
		})
	}
}

func TestTimestampFileName(t *testing.T) {
	assert.Equal(t, "screenshot_11-18.png", TimestampFileName(sampling.Timestamp{Minutes: 11, Seconds: 18}))
	assert.Equal(t, "screenshot_00-05.png", TimestampFileName(sampling.Timestamp{Seconds: 5}))
	assert.Equal(t, "screenshot_125-00.png", TimestampFileName(sampling.Timestamp{Minutes: 125}))
}

func TestFileNamesAreStable(t *testing.T) {
	assert.Equal(t, SceneFileName(3, 900, 30), SceneFileName(3, 900, 30))
	ts := sampling.Timestamp{Minutes: 1, Seconds: 2}
	assert.Equal(t, TimestampFileName(ts), TimestampFileName(ts))
}

func checkerboard() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 200, G: 10, B: 30, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
			}
		}
	}
	return img
}

func TestPNGSink_Persist(t *testing.T) {
	ctx := context.Background()

	t.Run("creates directory and writes lossless png", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")
		sink := NewPNGSink(dir)
		assert.Equal(t, dir, sink.Dir())

		src := checkerboard()
		path, err := sink.Persist(ctx, src, "screenshot_001_00-00-00.png")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "screenshot_001_00-00-00.png"), path)

		decoded, err := imaging.Open(path)
		require.NoError(t, err)
		got := imaging.Clone(decoded)
		require.Equal(t, src.Bounds(), got.Bounds())
		for y := 0; y < 6; y++ {
			for x := 0; x < 8; x++ {
				assert.Equal(t, src.NRGBAAt(x, y), got.NRGBAAt(x, y))
			}
		}
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		sink := NewPNGSink(t.TempDir())
		_, err := sink.Persist(ctx, checkerboard(), "a.png")
		require.NoError(t, err)
		_, err = sink.Persist(ctx, checkerboard(), "a.png")
		require.NoError(t, err)

		n, err := CountImages(sink.Dir())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		sink := NewPNGSink(t.TempDir())
		for _, name := range []string{"", "../escape.png", "sub/dir.png"} {
			_, err := sink.Persist(ctx, checkerboard(), name)
			assert.ErrorIs(t, err, ErrWrite, name)
		}
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := NewPNGSink(t.TempDir()).Persist(ctx, nil, "a.png")
		assert.ErrorIs(t, err, ErrWrite)
	})

	t.Run("unwritable directory", func(t *testing.T) {
		parent := t.TempDir()
		blocker := filepath.Join(parent, "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

		_, err := NewPNGSink(filepath.Join(blocker, "out")).Persist(ctx, checkerboard(), "a.png")
		assert.ErrorIs(t, err, ErrWrite)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewPNGSink(t.TempDir()).Persist(cctx, checkerboard(), "a.png")
		assert.ErrorIs(t, err, ErrWrite)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCountImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.png"), 0750))

	n, err := CountImages(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = CountImages(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
