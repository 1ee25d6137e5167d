// Package media provides decoded access to video files: probing stream
// properties, reading frames sequentially and seeking to a frame index.
package media

import (
	"context"
	"errors"
	"image"
	"time"
)

// Static errors for frame sources.
var (
	// ErrSourceUnavailable is returned when a video cannot be opened or probed.
	ErrSourceUnavailable = errors.New("video source unavailable")
	// ErrOutOfRange is returned when a seek targets a frame beyond the stream.
	ErrOutOfRange = errors.New("frame index out of range")
	// ErrDecodeFrame is returned when a single frame could not be decoded.
	// The stream may still yield further frames.
	ErrDecodeFrame = errors.New("frame decode failed")
	// ErrSequentialInUse is returned when Seek is called on a handle that
	// has already been read sequentially.
	ErrSequentialInUse = errors.New("source already used for sequential reads")
)

// VideoProperties describes a video stream. It is read once when the
// source is opened and does not change afterwards.
type VideoProperties struct {
	// FPS is the integral frame rate (fractional rates are truncated).
	FPS int
	// TotalFrames is the number of frames in the stream.
	TotalFrames int
	// Width is the frame width in pixels.
	Width int
	// Height is the frame height in pixels.
	Height int
}

// Duration returns the stream length derived from the frame count.
func (p VideoProperties) Duration() time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return time.Duration(p.TotalFrames) * time.Second / time.Duration(p.FPS)
}

// Frame is a single decoded video frame. Frames are never modified after
// a Source returns them.
type Frame struct {
	// Index is the zero-based position of the frame in the stream.
	Index int
	// Image holds the decoded pixels.
	Image image.Image
}

// Timestamp returns the frame's position in video time.
func (f *Frame) Timestamp(fps int) time.Duration {
	return FrameTime(f.Index, fps)
}

// FrameTime converts a frame index to video time.
func FrameTime(index, fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(index) * time.Second / time.Duration(fps)
}

// Source is an open handle on a decoded video stream.
//
// A handle is either read sequentially with Next or accessed by Seek,
// never both. Implementations buffer at most one frame.
type Source interface {
	// Properties returns the stream properties read at open time.
	Properties() VideoProperties

	// Next returns the next frame in decode order. It returns io.EOF once
	// the stream is exhausted. An error wrapping ErrDecodeFrame means only
	// that frame was lost and reading may continue.
	Next(ctx context.Context) (*Frame, error)

	// Seek decodes the frame at the given index. It returns ErrOutOfRange
	// when index is negative or not less than TotalFrames.
	Seek(ctx context.Context, index int) (*Frame, error)

	// Close releases the decoder. It is safe to call more than once.
	Close() error
}

// Opener opens frame sources for local video files.
type Opener interface {
	// Open probes the file and returns a handle positioned at frame 0.
	// Errors wrap ErrSourceUnavailable.
	Open(ctx context.Context, path string) (Source, error)
}
