// Package acquire turns a user-supplied source into a playable local file.
// Existing local files are used in place; anything else is handed to yt-dlp
// and downloaded into scratch storage.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for acquisition.
var (
	// ErrEmptySource is returned when no source was given.
	ErrEmptySource = errors.New("empty video source")
	// ErrNotFound is returned when a local source does not exist or is not a regular file.
	ErrNotFound = errors.New("video file not found")
	// ErrDownload is returned when the downloader fails or produces no file.
	ErrDownload = errors.New("download video")
)

// Artifact is a local video produced by an Acquirer.
type Artifact struct {
	// Path is the local file to open.
	Path string
	// Temporary is set when the file was created by the acquirer and must be
	// removed once the run is over. User files are never temporary.
	Temporary bool
}

// Acquirer resolves a source into a local file.
type Acquirer interface {
	Acquire(ctx context.Context, source string) (Artifact, error)
}

// Scratch reserves paths for downloads. storage.Storage satisfies it.
type Scratch interface {
	ReserveTemp(ctx context.Context, prefix, ext string) (string, error)
}

// Local passes existing regular files through unchanged.
type Local struct{}

// Acquire returns source itself when it names a regular file.
func (Local) Acquire(ctx context.Context, source string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	info, err := os.Stat(source)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("%w: %s is not a regular file", ErrNotFound, source)
	}
	return Artifact{Path: source}, nil
}

// DefaultFormat selects the best mp4 video and m4a audio, falling back to the
// best single mp4 and then to anything.
const DefaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

// CommandError carries the output of a failed external tool.
type CommandError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Tool, e.Err, e.Args, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// runner executes a command and returns its stderr.
type runner func(ctx context.Context, name string, args ...string) (stderr string, err error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 - binary comes from configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// YTDLP downloads remote videos with the yt-dlp binary. Each download is
// attempted once.
type YTDLP struct {
	binary  string
	format  string
	scratch Scratch
	run     runner
	log     *slog.Logger
}

// YTDLPOption configures a YTDLP.
type YTDLPOption func(*YTDLP)

// WithBinary sets the yt-dlp executable. Empty keeps "yt-dlp".
func WithBinary(path string) YTDLPOption {
	return func(y *YTDLP) {
		if path != "" {
			y.binary = path
		}
	}
}

// WithFormat overrides DefaultFormat.
func WithFormat(format string) YTDLPOption {
	return func(y *YTDLP) {
		if format != "" {
			y.format = format
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) YTDLPOption {
	return func(y *YTDLP) {
		if l != nil {
			y.log = l
		}
	}
}

// NewYTDLP creates a downloader writing into scratch.
func NewYTDLP(scratch Scratch, opts ...YTDLPOption) *YTDLP {
	y := &YTDLP{
		binary:  "yt-dlp",
		format:  DefaultFormat,
		scratch: scratch,
		run:     execRunner,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Acquire downloads source into a fresh scratch file.
func (y *YTDLP) Acquire(ctx context.Context, source string) (Artifact, error) {
	out, err := y.scratch.ReserveTemp(ctx, "temp_video", ".mp4")
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	args := []string{
		"-f", y.format,
		"--merge-output-format", "mp4",
		"-o", out,
		"--no-warnings",
		"--no-playlist",
		"--",
		source,
	}

	y.log.Info("downloading video", slog.String("source", source), slog.String("output", out))

	stderr, err := y.run(ctx, y.binary, args...)
	if err != nil {
		removeAll(DownloadFiles(out))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Artifact{}, fmt.Errorf("%w: %w", ErrDownload, ctxErr)
		}
		return Artifact{}, fmt.Errorf("%w: %w", ErrDownload, &CommandError{Tool: y.binary, Args: args, Stderr: stderr, Err: err})
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		removeAll(DownloadFiles(out))
		return Artifact{}, fmt.Errorf("%w: %s produced no file at %s", ErrDownload, y.binary, out)
	}

	y.log.Info("video downloaded", slog.String("path", out), slog.Int64("bytes", info.Size()))
	return Artifact{Path: out, Temporary: true}, nil
}

// DownloadFiles returns out together with every sibling yt-dlp derives from
// it: format streams (out.f137.mp4), partial downloads (.part) and merge
// temporaries. They all share the stem of out followed by a dot.
func DownloadFiles(out string) []string {
	files := []string{out}

	dir, base := filepath.Split(out)
	if dir == "" {
		dir = "."
	}
	prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, e := range entries {
		name := e.Name()
		if name != base && strings.HasPrefix(name, prefix) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	return files
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// Router sends existing local paths to a local acquirer and everything else
// to a remote one.
type Router struct {
	Local  Acquirer
	Remote Acquirer
}

// NewRouter creates a Router. A nil remote disables downloads.
func NewRouter(remote Acquirer) *Router {
	return &Router{Local: Local{}, Remote: remote}
}

// Acquire dispatches source by whether it exists on disk.
func (r *Router) Acquire(ctx context.Context, source string) (Artifact, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return Artifact{}, ErrEmptySource
	}
	if _, err := os.Stat(source); err == nil || r.Remote == nil || !looksRemote(source) {
		return r.Local.Acquire(ctx, source)
	}
	return r.Remote.Acquire(ctx, source)
}

// looksRemote reports whether source carries a URL scheme such as https:
// or ytsearch:. Single-letter schemes are Windows drive letters.
func looksRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && len(u.Scheme) > 1
}
