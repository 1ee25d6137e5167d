package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// FFmpegOpener implements Opener using the ffmpeg and ffprobe CLIs.
type FFmpegOpener struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// probe returns ffprobe JSON for a file. Replaced in tests.
	probe func(path string) (string, error)
}

// NewFFmpegOpener creates a new FFmpegOpener.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
// A custom path must be absolute.
func NewFFmpegOpener(ffmpegPath string) *FFmpegOpener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegOpener{
		ffmpegPath: ffmpegPath,
		probe: func(path string) (string, error) {
			return ffmpeg.Probe(path)
		},
	}
}

// Open probes the video at path and returns a Source over it.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnavailable, path)
	}

	out, err := o.probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe: %w", ErrSourceUnavailable, err)
	}

	props, err := parseProbeOutput(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	return &ffmpegSource{
		path:    path,
		props:   props,
		options: o.compileOptions(),
	}, nil
}

// compileOptions points compiled commands at a non-default ffmpeg binary.
func (o *FFmpegOpener) compileOptions() []ffmpeg.CompilationOption {
	if o.ffmpegPath == "ffmpeg" {
		return nil
	}
	path := o.ffmpegPath
	return []ffmpeg.CompilationOption{
		func(_ *ffmpeg.Stream, cmd *exec.Cmd) {
			cmd.Path = path
			if len(cmd.Args) > 0 {
				cmd.Args[0] = path
			}
		},
	}
}

// probeOutput is the subset of `ffprobe -show_format -show_streams -of json` we use.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	Tags         struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

// rotation returns the display rotation in degrees, preferring the display
// matrix over the legacy rotate tag.
func (s *probeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return int(math.Round(sd.Rotation))
		}
	}
	if deg, err := strconv.Atoi(strings.TrimSpace(s.Tags.Rotate)); err == nil {
		return deg
	}
	return 0
}

// parseProbeOutput extracts VideoProperties from the first video stream.
// The frame rate is truncated to an integer. When the container does not
// record a frame count it is derived from the duration. Width and height are
// the displayed size: ffmpeg autorotates on decode, so a quarter-turn
// rotation swaps the coded dimensions.
func parseProbeOutput(data string) (VideoProperties, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return VideoProperties{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		return VideoProperties{}, errors.New("no video stream found")
	}
	if stream.Width <= 0 || stream.Height <= 0 {
		return VideoProperties{}, fmt.Errorf("invalid dimensions %dx%d", stream.Width, stream.Height)
	}

	rate, err := parseFrameRate(stream.AvgFrameRate)
	if err != nil || rate <= 0 {
		rate, err = parseFrameRate(stream.RFrameRate)
		if err != nil {
			return VideoProperties{}, err
		}
	}
	fps := int(rate)
	if fps < 1 {
		return VideoProperties{}, fmt.Errorf("unusable frame rate %.3f", rate)
	}

	total, err := strconv.Atoi(stream.NbFrames)
	if err != nil || total < 0 {
		duration := stream.Duration
		if duration == "" || duration == "N/A" {
			duration = out.Format.Duration
		}
		seconds, perr := strconv.ParseFloat(strings.TrimSpace(duration), 64)
		if perr != nil {
			return VideoProperties{}, fmt.Errorf("no frame count or duration: %w", perr)
		}
		total = int(seconds * rate)
	}

	width, height := stream.Width, stream.Height
	if rot := stream.rotation(); rot%180 != 0 {
		width, height = height, width
	}

	return VideoProperties{
		FPS:         fps,
		TotalFrames: total,
		Width:       width,
		Height:      height,
	}, nil
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return n / d, nil
}

// ffmpegSource is a Source backed by ffmpeg subprocesses. Sequential reads
// share one long-running decoder that writes raw RGBA frames to a pipe.
// Each Seek runs a short-lived decoder that emits one PNG frame.
type ffmpegSource struct {
	path    string
	props   VideoProperties
	options []ffmpeg.CompilationOption

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	exited  chan struct{}
	waitErr error
	cursor  int
	done    bool
	closed  bool
}

func (s *ffmpegSource) Properties() VideoProperties {
	return s.props
}

// Next reads the next raw frame from the decoder. The decoder is started on
// the first call and is killed if ctx is cancelled while it runs.
func (s *ffmpegSource) Next(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cmd == nil {
		if err := s.start(ctx); err != nil {
			s.done = true
			return nil, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, s.props.Width, s.props.Height))
	_, err := io.ReadFull(s.stdout, img.Pix)
	switch {
	case err == nil:
		frame := &Frame{Index: s.cursor, Image: img}
		s.cursor++
		return frame, nil
	case errors.Is(err, io.EOF):
		s.done = true
		if werr := s.wait(); werr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: decoder exited: %w", ErrDecodeFrame, werr)
		}
		return nil, io.EOF
	default:
		// A short read leaves a partial trailing frame; nothing follows it.
		index := s.cursor
		s.cursor++
		s.done = true
		_ = s.wait()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: frame %d: %w", ErrDecodeFrame, index, err)
	}
}

// start launches the sequential decoder.
func (s *ffmpegSource) start(ctx context.Context) error {
	cmd := ffmpeg.Input(s.path).
		Output("pipe:", ffmpeg.KwArgs{
			"map":     "0:v:0",
			"format":  "rawvideo",
			"pix_fmt": "rgba",
			"vsync":   "0",
		}).
		WithErrorOutput(&s.stderr).
		Compile(s.options...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: create stdout pipe: %w", ErrSourceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %w", ErrSourceUnavailable, err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.exited = make(chan struct{})

	go func(exited <-chan struct{}, proc *os.Process) {
		select {
		case <-ctx.Done():
			_ = proc.Kill()
		case <-exited:
		}
	}(s.exited, cmd.Process)

	return nil
}

// wait reaps the sequential decoder once; later calls return the same result.
func (s *ffmpegSource) wait() error {
	select {
	case <-s.exited:
		return s.waitErr
	default:
	}

	err := s.cmd.Wait()
	if err != nil {
		s.waitErr = &FFmpegError{
			Args:   s.cmd.Args[1:],
			Stderr: s.stderr.String(),
			Err:    err,
		}
	}
	close(s.exited)
	return s.waitErr
}

// Seek decodes exactly the frame at index. ffmpeg seeks on the input to a
// second before the target and the select filter counts the rest.
func (s *ffmpegSource) Seek(ctx context.Context, index int) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: source closed", ErrSourceUnavailable)
	}
	if s.cmd != nil {
		return nil, ErrSequentialInUse
	}
	if index < 0 || index >= s.props.TotalFrames {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, index, s.props.TotalFrames)
	}

	start, offset := seekWindow(index, s.props.FPS)

	var stdout, stderr bytes.Buffer
	cmd := ffmpeg.Input(s.path, ffmpeg.KwArgs{"ss": strconv.Itoa(start)}).
		Filter("select", ffmpeg.Args{fmt.Sprintf("gte(n,%d)", offset)}).
		Output("pipe:", ffmpeg.KwArgs{"vframes": 1, "format": "image2", "vcodec": "png"}).
		WithOutput(&stdout).
		WithErrorOutput(&stderr).
		Compile(s.options...)

	if err := runCommand(ctx, cmd); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: frame %d: %w", ErrDecodeFrame, index, &FFmpegError{
			Args:   cmd.Args[1:],
			Stderr: stderr.String(),
			Err:    err,
		})
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: frame %d: decoder produced no output", ErrDecodeFrame, index)
	}

	img, err := imaging.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %w", ErrDecodeFrame, index, err)
	}

	return &Frame{Index: index, Image: img}, nil
}

// seekWindow splits index into an input seek of whole seconds, one second
// short of the target so the keyframe search cannot overshoot, and the
// number of frames to skip after it.
func seekWindow(index, fps int) (startSeconds, offset int) {
	if fps < 1 {
		return 0, index
	}
	startSeconds = max(index/fps-1, 0)
	return startSeconds, index - startSeconds*fps
}

// Close stops the sequential decoder if one is running.
func (s *ffmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.cmd == nil {
		return nil
	}
	select {
	case <-s.exited:
		return nil
	default:
	}

	_ = s.stdout.Close()
	_ = s.cmd.Process.Kill()
	_ = s.wait()
	return nil
}

// runCommand runs cmd and kills it if ctx is cancelled first.
func runCommand(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
