package job

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/maauso/screenshot-extractor/internal/acquire"
	"github.com/maauso/screenshot-extractor/internal/capture"
	"github.com/maauso/screenshot-extractor/internal/media"
)

// fakeSource serves in-memory frames.
type fakeSource struct {
	props      media.VideoProperties
	frames     []image.Image
	badFrames  map[int]bool
	cursor     int
	closed     bool
	seekCalls  []int
	cancelAt   int
	cancelFunc context.CancelFunc
}

func solidFrame(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

// newFakeSource builds a source whose frame i has gray value values(i).
func newFakeSource(n, fps int, values func(i int) uint8) *fakeSource {
	frames := make([]image.Image, n)
	cache := map[uint8]image.Image{}
	for i := range frames {
		v := values(i)
		if _, ok := cache[v]; !ok {
			cache[v] = solidFrame(v)
		}
		frames[i] = cache[v]
	}
	return &fakeSource{
		props:     media.VideoProperties{FPS: fps, TotalFrames: n, Width: 8, Height: 6},
		frames:    frames,
		badFrames: map[int]bool{},
		cancelAt:  -1,
	}
}

func (s *fakeSource) Properties() media.VideoProperties { return s.props }

func (s *fakeSource) Next(ctx context.Context) (*media.Frame, error) {
	if s.cancelFunc != nil && s.cursor == s.cancelAt {
		s.cancelFunc()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.cursor >= len(s.frames) {
		return nil, io.EOF
	}
	i := s.cursor
	s.cursor++
	if s.badFrames[i] {
		return nil, fmt.Errorf("%w: frame %d", media.ErrDecodeFrame, i)
	}
	return &media.Frame{Index: i, Image: s.frames[i]}, nil
}

func (s *fakeSource) Seek(ctx context.Context, index int) (*media.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.seekCalls = append(s.seekCalls, index)
	if index < 0 || index >= len(s.frames) {
		return nil, media.ErrOutOfRange
	}
	if s.badFrames[index] {
		return nil, fmt.Errorf("%w: frame %d", media.ErrDecodeFrame, index)
	}
	return &media.Frame{Index: index, Image: s.frames[index]}, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeOpener returns src for any path, or err.
type fakeOpener struct {
	src    media.Source
	err    error
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, path string) (media.Source, error) {
	o.opened = append(o.opened, path)
	if o.err != nil {
		return nil, o.err
	}
	return o.src, nil
}

// staticAcquirer returns a fixed artifact.
type staticAcquirer struct {
	art acquire.Artifact
	err error
}

func (a staticAcquirer) Acquire(context.Context, string) (acquire.Artifact, error) {
	return a.art, a.err
}

// MockStorage is a mock implementation of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) ReserveTemp(ctx context.Context, prefix, ext string) (string, error) {
	args := m.Called(ctx, prefix, ext)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) CleanupTemp(ctx context.Context, paths []string) error {
	args := m.Called(ctx, paths)
	return args.Error(0)
}

func (m *MockStorage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// MockRunner is a mock implementation of Runner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, req Request, obs Observer) (Result, error) {
	args := m.Called(ctx, req, obs)
	return args.Get(0).(Result), args.Error(1)
}

// failingSink fails the calls whose 1-based number is in fail and
// delegates the rest.
type failingSink struct {
	next  capture.Sink
	fail  map[int]bool
	calls int
}

func (s *failingSink) Persist(ctx context.Context, img image.Image, name string) (string, error) {
	s.calls++
	if s.fail[s.calls] {
		return "", fmt.Errorf("%w: disk full", capture.ErrWrite)
	}
	return s.next.Persist(ctx, img, name)
}

// recordingObserver collects run events.
type recordingObserver struct {
	mu       sync.Mutex
	progress [][2]int
	captured []capture.Record
	skipped  []error
}

func (o *recordingObserver) Progress(processed, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, [2]int{processed, total})
}

func (o *recordingObserver) Captured(rec capture.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.captured = append(o.captured, rec)
}

func (o *recordingObserver) Skipped(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, err)
}
