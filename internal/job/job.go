// Package job provides the extraction Job aggregate, its repository port and
// the services that run extractions: the Extractor, which performs one
// acquire-open-scan run, and the Service, which tracks runs as jobs.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/screenshot-extractor/internal/capture"
	"github.com/maauso/screenshot-extractor/internal/job/id"
	"github.com/maauso/screenshot-extractor/internal/sampling"
)

// Mode selects how frames are chosen.
type Mode string

const (
	// ModeScenes scans every frame and keeps scene changes and interval frames.
	ModeScenes Mode = "scenes"
	// ModeTimestamps captures the frames at explicit positions.
	ModeTimestamps Mode = "timestamps"
)

// IsValid returns true if the mode is known.
func (m Mode) IsValid() bool {
	return m == ModeScenes || m == ModeTimestamps
}

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting to be processed.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the extraction is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the extraction ran to the end. A completed
	// job may still have captured nothing; see Success.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a fatal error, such as an unreadable source.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was interrupted, typically by shutdown.
	StatusCancelled Status = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Job is one extraction request and its outcome.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Mode selects scene scanning or timestamp capture.
	Mode Mode
	// Status is the current job state.
	Status Status
	// Source is the video path or URL as submitted.
	Source string
	// OutputDir is where screenshots are written.
	OutputDir string
	// IntervalSeconds is the fixed sampling period for scene mode.
	IntervalSeconds int
	// SceneThreshold is the mean grayscale difference that counts as a scene change.
	SceneThreshold float64
	// Timestamps are the requested positions for timestamp mode.
	Timestamps []sampling.Timestamp
	// PushToS3 indicates whether screenshots are also uploaded to S3.
	PushToS3 bool

	// Processed is the number of frames or timestamps handled so far.
	Processed int
	// Total is the number of frames or timestamps to handle.
	Total int
	// Progress is the percentage of completion (0-100).
	Progress int
	// Records lists the persisted screenshots in capture order.
	Records []capture.Record
	// Skipped counts timestamps or frames that could not be captured.
	Skipped int
	// Error contains the fatal error message if the job failed.
	Error string

	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// IDPrefix starts every generated job ID.
const IDPrefix = "job"

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New(mode Mode) *Job {
	return NewWithID(id.Generate(IDPrefix), mode)
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string, mode Mode) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Mode:      mode,
		Status:    StatusInQueue,
		Records:   make([]capture.Record, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// UpdateProgress records that processed of total units are done and
// derives the percentage.
func (j *Job) UpdateProgress(processed, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Processed = processed
	j.Total = total
	switch {
	case total <= 0:
		j.Progress = 100
	case processed >= total:
		j.Progress = 100
	case processed <= 0:
		j.Progress = 0
	default:
		j.Progress = processed * 100 / total
	}
	j.UpdatedAt = time.Now()
}

// AddRecord appends a persisted screenshot.
func (j *Job) AddRecord(rec capture.Record) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Records = append(j.Records, rec)
	j.UpdatedAt = time.Now()
}

// AddSkipped counts one frame or timestamp that could not be captured.
func (j *Job) AddSkipped() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Skipped++
	j.UpdatedAt = time.Now()
}

// Captured returns the number of persisted screenshots.
func (j *Job) Captured() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.Records)
}

// Success reports whether at least one screenshot was persisted.
func (j *Job) Success() bool {
	return j.Captured() > 0
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	records := make([]capture.Record, len(j.Records))
	copy(records, j.Records)

	var timestamps []sampling.Timestamp
	if j.Timestamps != nil {
		timestamps = make([]sampling.Timestamp, len(j.Timestamps))
		copy(timestamps, j.Timestamps)
	}

	return &Job{
		ID:              j.ID,
		Mode:            j.Mode,
		Status:          j.Status,
		Source:          j.Source,
		OutputDir:       j.OutputDir,
		IntervalSeconds: j.IntervalSeconds,
		SceneThreshold:  j.SceneThreshold,
		Timestamps:      timestamps,
		PushToS3:        j.PushToS3,
		Processed:       j.Processed,
		Total:           j.Total,
		Progress:        j.Progress,
		Records:         records,
		Skipped:         j.Skipped,
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}
