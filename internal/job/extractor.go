package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/maauso/screenshot-extractor/internal/acquire"
	"github.com/maauso/screenshot-extractor/internal/capture"
	"github.com/maauso/screenshot-extractor/internal/media"
	"github.com/maauso/screenshot-extractor/internal/sampling"
	"github.com/maauso/screenshot-extractor/internal/storage"
)

// Default run parameters.
const (
	DefaultIntervalSeconds = 30
	DefaultSceneThreshold  = 30.0
	DefaultProgressEvery   = 1000
)

// ErrInvalidRequest is returned when a run request cannot be executed.
var ErrInvalidRequest = errors.New("invalid extraction request")

// Request describes one extraction run.
type Request struct {
	// Source is a local video path or a URL understood by the acquirer.
	Source string
	// OutputDir receives the screenshots. It is created on demand.
	OutputDir string
	// Mode selects scene scanning or timestamp capture.
	Mode Mode
	// IntervalSeconds is the scene-mode sampling period.
	IntervalSeconds int
	// SceneThreshold is the scene-mode mean difference threshold.
	SceneThreshold float64
	// Timestamps are the positions to capture in timestamp mode.
	Timestamps []sampling.Timestamp
	// Publish uploads every screenshot under KeyPrefix/<file name>.
	Publish   bool
	KeyPrefix string
}

// Validate checks the fields the selected mode needs.
func (r Request) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRequest)
	}
	if r.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalidRequest)
	}
	switch r.Mode {
	case ModeScenes:
		if r.IntervalSeconds < 1 {
			return fmt.Errorf("%w: interval must be at least 1 second", ErrInvalidRequest)
		}
	case ModeTimestamps:
		if len(r.Timestamps) == 0 {
			return fmt.Errorf("%w: at least one timestamp is required", ErrInvalidRequest)
		}
		for _, ts := range r.Timestamps {
			if err := ts.Validate(); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	return nil
}

// Result summarises a finished run.
type Result struct {
	// Properties describes the opened video.
	Properties media.VideoProperties
	// Captured is the number of persisted screenshots.
	Captured int
	// Requested is the number of timestamps, or the total frame count in scene mode.
	Requested int
	// Skipped counts timestamps or frames that were reported and passed over.
	Skipped int
	// OnDisk is the number of .png files found in the output directory after a scene run.
	OnDisk int
	// Records lists the persisted screenshots in capture order.
	Records []capture.Record
}

// Success reports whether anything was captured.
func (r Result) Success() bool {
	return r.Captured > 0
}

// Runner executes extraction runs.
type Runner interface {
	Run(ctx context.Context, req Request, obs Observer) (Result, error)
}

// Compile-time check that Extractor implements Runner.
var _ Runner = (*Extractor)(nil)

// Extractor runs one extraction at a time per call: acquire the source, open
// it, scan or seek, then release the source and any downloaded file.
// Calls are independent and may run concurrently.
type Extractor struct {
	acquirer      acquire.Acquirer
	opener        media.Opener
	store         storage.Storage
	newSink       func(dir string) capture.Sink
	progressEvery int
	logger        *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithProgressEvery sets how many frames pass between progress reports.
func WithProgressEvery(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.progressEvery = n
		}
	}
}

// WithSinkFactory replaces the PNG sink.
func WithSinkFactory(f func(dir string) capture.Sink) ExtractorOption {
	return func(e *Extractor) {
		if f != nil {
			e.newSink = f
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor creates an Extractor. store is used to clean up downloads and
// to publish screenshots.
func NewExtractor(acq acquire.Acquirer, opener media.Opener, store storage.Storage, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		acquirer:      acq,
		opener:        opener,
		store:         store,
		newSink:       func(dir string) capture.Sink { return capture.NewPNGSink(dir) },
		progressEvery: DefaultProgressEvery,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes req. Per-frame and per-timestamp failures are reported to obs
// and skipped; the returned error is reserved for failures that stop the run,
// which wrap media.ErrSourceUnavailable, ErrInvalidRequest or a context error.
func (e *Extractor) Run(ctx context.Context, req Request, obs Observer) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if obs == nil {
		obs = NewLogObserver(e.logger)
	}

	art, err := e.acquirer.Acquire(ctx, req.Source)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", media.ErrSourceUnavailable, err)
	}
	if art.Temporary {
		defer e.discard(ctx, art.Path)
	}

	src, err := e.opener.Open(ctx, art.Path)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = src.Close() }()

	props := src.Properties()
	e.logger.Info("video opened",
		slog.String("source", req.Source),
		slog.Int("width", props.Width),
		slog.Int("height", props.Height),
		slog.Int("fps", props.FPS),
		slog.Int("total_frames", props.TotalFrames),
		slog.Duration("duration", props.Duration()),
	)

	run := &session{
		extractor: e,
		req:       req,
		src:       src,
		sink:      e.newSink(req.OutputDir),
		obs:       obs,
		result:    Result{Properties: props, Records: make([]capture.Record, 0)},
	}

	switch req.Mode {
	case ModeScenes:
		err = run.scanScenes(ctx)
	case ModeTimestamps:
		err = run.captureTimestamps(ctx)
	}
	if err != nil {
		return run.result, err
	}

	e.logger.Info("extraction finished",
		slog.Int("captured", run.result.Captured),
		slog.Int("requested", run.result.Requested),
		slog.Int("skipped", run.result.Skipped),
		slog.String("output_dir", req.OutputDir),
	)
	return run.result, nil
}

// discard removes a downloaded artifact and any downloader leftovers next to
// it. It runs on every exit path, so it must not depend on ctx still being live.
func (e *Extractor) discard(ctx context.Context, p string) {
	files := acquire.DownloadFiles(p)
	if e.store == nil {
		for _, f := range files {
			_ = os.Remove(f)
		}
		return
	}
	if err := e.store.CleanupTemp(context.WithoutCancel(ctx), files); err != nil {
		e.logger.Warn("failed to remove downloaded video",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}

// session is the state of a single run.
type session struct {
	extractor *Extractor
	req       Request
	src       media.Source
	sink      capture.Sink
	obs       Observer
	result    Result
}

func (s *session) scanScenes(ctx context.Context) error {
	props := s.result.Properties
	engine, err := sampling.NewEngine(sampling.Params{
		FPS:             props.FPS,
		IntervalSeconds: s.req.IntervalSeconds,
		SceneThreshold:  s.req.SceneThreshold,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.result.Requested = props.TotalFrames
	every := s.extractor.progressEvery

	var (
		state     sampling.State
		processed int
	)
	for {
		frame, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, media.ErrDecodeFrame) {
				s.result.Skipped++
				s.obs.Skipped("skipping unreadable frame", err)
				continue
			}
			return err
		}

		processed++
		var d sampling.Decision
		state, d, err = engine.Step(state, frame.Index, sampling.Grayscale(frame.Image))
		if err != nil {
			s.result.Skipped++
			s.obs.Skipped("frame not comparable with its predecessor", err)
		}
		if d.Capture {
			name := capture.SceneFileName(s.result.Captured, frame.Index, props.FPS)
			s.persist(ctx, frame, name, d.Reason.String())
		}
		if processed%every == 0 {
			s.obs.Progress(processed, props.TotalFrames)
		}
	}
	s.obs.Progress(processed, props.TotalFrames)

	onDisk, err := capture.CountImages(s.req.OutputDir)
	if err != nil {
		s.extractor.logger.Warn("failed to verify output directory",
			slog.String("output_dir", s.req.OutputDir),
			slog.String("error", err.Error()),
		)
	}
	s.result.OnDisk = onDisk
	s.extractor.logger.Info("output verified",
		slog.Int("captured", s.result.Captured),
		slog.Int("png_files", onDisk),
	)
	return nil
}

func (s *session) captureTimestamps(ctx context.Context) error {
	props := s.result.Properties
	s.result.Requested = len(s.req.Timestamps)

	for i, ts := range s.req.Timestamps {
		if err := ctx.Err(); err != nil {
			return err
		}

		index, err := sampling.Resolve(ts, props.FPS, props.TotalFrames)
		if err != nil {
			s.result.Skipped++
			s.obs.Skipped(fmt.Sprintf("skipping timestamp %s", ts), err)
			s.obs.Progress(i+1, len(s.req.Timestamps))
			continue
		}

		frame, err := s.src.Seek(ctx, index)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.result.Skipped++
			s.obs.Skipped(fmt.Sprintf("could not read frame at %s", ts), err)
			s.obs.Progress(i+1, len(s.req.Timestamps))
			continue
		}

		s.persist(ctx, frame, capture.TimestampFileName(ts), "timestamp")
		s.obs.Progress(i+1, len(s.req.Timestamps))
	}
	return nil
}

// persist writes frame under name and, on success, records and publishes it.
// Failures are reported and do not count as captures.
func (s *session) persist(ctx context.Context, frame *media.Frame, name, reason string) {
	p, err := s.sink.Persist(ctx, frame.Image, name)
	if err != nil {
		s.result.Skipped++
		s.obs.Skipped("failed to save screenshot", err)
		return
	}

	b := frame.Image.Bounds()
	s.result.Captured++
	rec := capture.Record{
		Sequence:   s.result.Captured,
		FrameIndex: frame.Index,
		Timestamp:  frame.Timestamp(s.result.Properties.FPS),
		Width:      b.Dx(),
		Height:     b.Dy(),
		Reason:     reason,
		Path:       p,
	}
	if s.req.Publish {
		rec.URL = s.publish(ctx, p)
	}
	s.result.Records = append(s.result.Records, rec)
	s.obs.Captured(rec)
}

// publish uploads a screenshot and returns its URL, or "" if the upload failed.
func (s *session) publish(ctx context.Context, p string) string {
	logger := s.extractor.logger
	if s.extractor.store == nil {
		logger.Warn("publishing requested but no storage configured")
		return ""
	}

	f, err := os.Open(p) // #nosec G304 - path was just written by the sink
	if err != nil {
		logger.Warn("failed to open screenshot for upload", slog.String("path", p), slog.String("error", err.Error()))
		return ""
	}
	defer func() { _ = f.Close() }()

	key := path.Join(s.req.KeyPrefix, filepath.Base(p))
	url, err := s.extractor.store.UploadToS3(ctx, key, f)
	if err != nil {
		logger.Warn("failed to upload screenshot", slog.String("key", key), slog.String("error", err.Error()))
		return ""
	}
	return url
}
