package job

import (
	"fmt"
	"log/slog"

	"github.com/maauso/screenshot-extractor/internal/capture"
)

// Observer receives run events. Implementations must not block for long;
// they are called from the scan loop.
type Observer interface {
	// Progress reports that processed of total frames (or timestamps) are done.
	Progress(processed, total int)
	// Captured reports a persisted screenshot.
	Captured(rec capture.Record)
	// Skipped reports a frame or timestamp that was not captured.
	Skipped(msg string, err error)
}

// LogObserver writes run events to a slog.Logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Progress(processed, total int) {
	o.logger.Info("progress",
		slog.Int("processed", processed),
		slog.Int("total", total),
	)
}

func (o *LogObserver) Captured(rec capture.Record) {
	o.logger.Info("screenshot saved",
		slog.Int("sequence", rec.Sequence),
		slog.Int("frame", rec.FrameIndex),
		slog.Duration("timestamp", rec.Timestamp),
		slog.String("reason", rec.Reason),
		slog.String("resolution", fmt.Sprintf("%dx%d", rec.Width, rec.Height)),
		slog.String("path", rec.Path),
	)
}

func (o *LogObserver) Skipped(msg string, err error) {
	o.logger.Warn(msg, slog.String("error", errString(err)))
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) Progress(processed, total int) {
	for _, o := range obs {
		o.Progress(processed, total)
	}
}

func (obs Observers) Captured(rec capture.Record) {
	for _, o := range obs {
		o.Captured(rec)
	}
}

func (obs Observers) Skipped(msg string, err error) {
	for _, o := range obs {
		o.Skipped(msg, err)
	}
}

// jobObserver mirrors run events into a Job.
type jobObserver struct {
	job *Job
}

func (o jobObserver) Progress(processed, total int) {
	o.job.UpdateProgress(processed, total)
}

func (o jobObserver) Captured(rec capture.Record) {
	o.job.AddRecord(rec)
}

func (o jobObserver) Skipped(string, error) {
	o.job.AddSkipped()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
