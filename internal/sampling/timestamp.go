package sampling

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Static errors for timestamp resolution.
var (
	// ErrInvalidTimestamp is returned for malformed or out-of-bounds timestamps.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrBeyondDuration is returned when a timestamp resolves past the last frame.
	ErrBeyondDuration = errors.New("timestamp beyond video duration")
)

var validate = validator.New()

// Timestamp is a requested capture position in minutes and seconds.
type Timestamp struct {
	Minutes int `json:"minutes" validate:"min=0"`
	Seconds int `json:"seconds" validate:"min=0,max=59"`
}

// ParseTimestamp parses "M:SS" (for example "11:18" or "0:05").
func ParseTimestamp(s string) (Timestamp, error) {
	m, sec, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Timestamp{}, fmt.Errorf("%w: %q is not M:SS", ErrInvalidTimestamp, s)
	}

	minutes, err := strconv.Atoi(m)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: minutes in %q: %w", ErrInvalidTimestamp, s, err)
	}
	seconds, err := strconv.Atoi(sec)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: seconds in %q: %w", ErrInvalidTimestamp, s, err)
	}

	ts := Timestamp{Minutes: minutes, Seconds: seconds}
	if err := ts.Validate(); err != nil {
		return Timestamp{}, err
	}
	return ts, nil
}

// Validate checks the minute and second bounds.
func (t Timestamp) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	return nil
}

// Offset returns the position as a duration from the start of the video.
func (t Timestamp) Offset() time.Duration {
	return time.Duration(t.Minutes)*time.Minute + time.Duration(t.Seconds)*time.Second
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d:%02d", t.Minutes, t.Seconds)
}

// Resolve maps ts to a frame index: floor((minutes*60 + seconds) * fps).
// It fails with ErrBeyondDuration when the index is not below totalFrames.
// Resolve is pure.
func Resolve(ts Timestamp, fps, totalFrames int) (int, error) {
	if err := ts.Validate(); err != nil {
		return 0, err
	}
	if fps < 1 {
		return 0, fmt.Errorf("%w: fps must be at least 1, got %d", ErrInvalidParams, fps)
	}

	if ts.Minutes > (math.MaxInt/fps-ts.Seconds)/60 {
		return 0, fmt.Errorf("%w: %s is past any representable frame", ErrBeyondDuration, ts)
	}

	index := (ts.Minutes*60 + ts.Seconds) * fps
	if index >= totalFrames {
		return 0, fmt.Errorf("%w: %s is frame %d of %d", ErrBeyondDuration, ts, index, totalFrames)
	}
	return index, nil
}
