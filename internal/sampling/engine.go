// Package sampling decides which video frames are worth keeping.
//
// The scene-driven policy is a causal, greedy heuristic: each frame is
// compared only with its predecessor, and a frame is kept when it differs
// enough from it (subject to a cooldown) or when it falls on a fixed
// sampling interval. The timestamp-driven policy maps wall-clock positions
// to frame indices.
package sampling

import (
	"errors"
	"fmt"
	"image"
)

// CooldownSeconds is the minimum video time between two scene-change captures.
const CooldownSeconds = 5

// ErrInvalidParams is returned when the sampling parameters cannot drive a scan.
var ErrInvalidParams = errors.New("invalid sampling parameters")

// Reason tells why the engine produced a decision.
type Reason int

const (
	// ReasonNone means the frame was evaluated and not kept.
	ReasonNone Reason = iota
	// ReasonSeed means the frame only seeded the history.
	ReasonSeed
	// ReasonSceneChange means the frame differed from its predecessor by more
	// than the threshold and the cooldown had elapsed.
	ReasonSceneChange
	// ReasonInterval means the frame fell on the sampling interval.
	ReasonInterval
)

func (r Reason) String() string {
	switch r {
	case ReasonSeed:
		return "seed"
	case ReasonSceneChange:
		return "scene_change"
	case ReasonInterval:
		return "interval"
	default:
		return "none"
	}
}

// Params configures the scene-driven policy.
type Params struct {
	// FPS is the integral frame rate of the stream.
	FPS int
	// IntervalSeconds is the fixed sampling period in video seconds.
	IntervalSeconds int
	// SceneThreshold is the mean absolute grayscale difference (0–255) above
	// which a frame counts as a scene change. Values <= 0 make every frame
	// a scene change once the cooldown has elapsed.
	SceneThreshold float64
}

// Validate checks that the interval modulus and cooldown are well defined.
func (p Params) Validate() error {
	if p.FPS < 1 {
		return fmt.Errorf("%w: fps must be at least 1, got %d", ErrInvalidParams, p.FPS)
	}
	if p.IntervalSeconds < 1 {
		return fmt.Errorf("%w: interval must be at least 1 second, got %d", ErrInvalidParams, p.IntervalSeconds)
	}
	return nil
}

// State is the history carried from one frame to the next.
// The zero value is the state before the first frame.
type State struct {
	// Previous is the projection of the last evaluated frame.
	Previous *image.Gray
	// LastCaptured is the index of the most recent capture decision.
	// It is meaningful only when HasCaptured is set.
	LastCaptured int
	// HasCaptured reports whether any frame has been selected yet.
	HasCaptured bool
	// Cursor is the index following the last evaluated frame.
	Cursor int
}

// Decision is the outcome of evaluating one frame.
type Decision struct {
	// Index is the frame index the decision applies to.
	Index int
	// Capture reports whether the frame should be persisted.
	Capture bool
	// Reason tells which rule produced the decision.
	Reason Reason
	// MeanDiff is the mean absolute difference from the previous frame.
	// It is zero for seed decisions.
	MeanDiff float64
}

// Engine applies the scene-driven policy. It holds no per-run state, so one
// Engine can evaluate any number of independent runs.
type Engine struct {
	params   Params
	cooldown int
	period   int
}

// NewEngine creates an Engine for the given parameters.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		params:   p,
		cooldown: p.FPS * CooldownSeconds,
		period:   p.IntervalSeconds * p.FPS,
	}, nil
}

// Params returns the parameters the engine was built with.
func (e *Engine) Params() Params {
	return e.params
}

// Step evaluates the frame at index, whose projection is gray, against the
// history in s and returns the updated history with the decision.
//
// Scene changes take precedence over the interval; at most one capture is
// decided per frame. The interval rule ignores the cooldown, so an interval
// capture may directly follow a scene-change capture.
//
// If gray cannot be compared with the previous projection, the history is
// reseeded with gray and the error is returned with a ReasonNone decision.
func (e *Engine) Step(s State, index int, gray *image.Gray) (State, Decision, error) {
	next := s
	next.Previous = gray
	next.Cursor = index + 1

	if s.Previous == nil {
		return next, Decision{Index: index, Reason: ReasonSeed}, nil
	}

	diff, err := MeanAbsDiff(gray, s.Previous)
	if err != nil {
		return next, Decision{Index: index, Reason: ReasonNone}, fmt.Errorf("frame %d: %w", index, err)
	}

	d := Decision{Index: index, MeanDiff: diff}
	cooledDown := !s.HasCaptured || index-s.LastCaptured > e.cooldown

	switch {
	case diff > e.params.SceneThreshold && cooledDown:
		d.Capture = true
		d.Reason = ReasonSceneChange
	case index%e.period == 0:
		d.Capture = true
		d.Reason = ReasonInterval
	}

	if d.Capture {
		next.LastCaptured = index
		next.HasCaptured = true
	}

	return next, d, nil
}
