// Package capture names and persists selected frames.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/maauso/screenshot-extractor/internal/sampling"
)

// ErrWrite is returned when a screenshot cannot be written.
var ErrWrite = errors.New("write screenshot")

// Record describes one persisted screenshot.
type Record struct {
	// Sequence is the 1-based capture number within a run.
	Sequence int `json:"sequence"`
	// FrameIndex is the index of the captured frame.
	FrameIndex int `json:"frame_index"`
	// Timestamp is the frame position in the video.
	Timestamp time.Duration `json:"timestamp"`
	// Width and Height are the screenshot size in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`
	// Reason tells why the frame was kept: scene_change, interval or timestamp.
	Reason string `json:"reason"`
	// Path is where the screenshot was written.
	Path string `json:"path"`
	// URL is set when the screenshot was also published remotely.
	URL string `json:"url,omitempty"`
}

// SceneFileName returns the name of a scene capture, for example
// screenshot_007_00-01-23.png. seq counts the captures made before this one,
// so the first file of a run is screenshot_000_*. The clock part is the
// whole-second position of frameIndex.
func SceneFileName(seq, frameIndex, fps int) string {
	var secs int
	if fps > 0 {
		secs = frameIndex / fps
	}
	return fmt.Sprintf("screenshot_%03d_%02d-%02d-%02d.png", seq, secs/3600, secs/60%60, secs%60)
}

// TimestampFileName returns the name of a timestamp capture, for example
// screenshot_11-18.png.
func TimestampFileName(ts sampling.Timestamp) string {
	return fmt.Sprintf("screenshot_%02d-%02d.png", ts.Minutes, ts.Seconds)
}

// Sink persists images under a destination it owns.
type Sink interface {
	// Persist writes img under name and returns the written path.
	Persist(ctx context.Context, img image.Image, name string) (path string, err error)
}

// Compile-time check that PNGSink implements Sink.
var _ Sink = (*PNGSink)(nil)

// PNGSink writes uncompressed PNG files into a directory.
// The directory is created on the first write.
type PNGSink struct {
	dir string
}

// NewPNGSink creates a sink writing into dir.
func NewPNGSink(dir string) *PNGSink {
	return &PNGSink{dir: dir}
}

// Dir returns the output directory.
func (s *PNGSink) Dir() string {
	return s.dir
}

// Persist writes img to dir/name. An existing file with the same name is
// replaced, so repeated runs with the same parameters produce the same files.
func (s *PNGSink) Persist(ctx context.Context, img image.Image, name string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrWrite, ctx.Err())
	default:
	}

	if img == nil {
		return "", fmt.Errorf("%w: %s: no image", ErrWrite, name)
	}
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: invalid file name %q", ErrWrite, name)
	}

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return "", fmt.Errorf("%w: create output directory: %w", ErrWrite, err)
	}

	path := filepath.Join(s.dir, name)
	if err := imaging.Save(img, path, imaging.PNGCompressionLevel(png.NoCompression)); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return path, nil
}

// CountImages returns the number of .png files directly under dir.
// A missing directory counts as empty.
func CountImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read output directory: %w", err)
	}

	var n int
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".png" {
			n++
		}
	}
	return n, nil
}
