package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/screenshot-extractor/internal/capture"
	"github.com/maauso/screenshot-extractor/internal/sampling"
)

// CreateInput contains the parameters of a new extraction job.
// Zero values fall back to the service defaults.
type CreateInput struct {
	Mode            Mode
	Source          string
	IntervalSeconds int
	SceneThreshold  *float64
	Timestamps      []sampling.Timestamp
	PushToS3        bool
}

// Defaults holds service-wide fallbacks for job parameters.
type Defaults struct {
	// OutputRoot is the directory under which each job gets <OutputRoot>/<job id>.
	OutputRoot      string
	IntervalSeconds int
	SceneThreshold  float64
}

// Service tracks extraction runs as jobs.
type Service struct {
	repo     Repository
	runner   Runner
	defaults Defaults
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, runner Runner, defaults Defaults, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.IntervalSeconds < 1 {
		defaults.IntervalSeconds = DefaultIntervalSeconds
	}
	if defaults.OutputRoot == "" {
		defaults.OutputRoot = "screenshots"
	}
	return &Service{
		repo:     repo,
		runner:   runner,
		defaults: defaults,
		logger:   logger,
	}
}

// CreateJob validates input, applies defaults and persists a new IN_QUEUE job.
func (s *Service) CreateJob(ctx context.Context, input CreateInput) (*Job, error) {
	if !input.Mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, input.Mode)
	}

	job := New(input.Mode)
	job.Source = input.Source
	job.OutputDir = filepath.Join(s.defaults.OutputRoot, job.ID)
	job.IntervalSeconds = input.IntervalSeconds
	if job.IntervalSeconds == 0 {
		job.IntervalSeconds = s.defaults.IntervalSeconds
	}
	job.SceneThreshold = s.defaults.SceneThreshold
	if input.SceneThreshold != nil {
		job.SceneThreshold = *input.SceneThreshold
	}
	job.Timestamps = input.Timestamps
	job.PushToS3 = input.PushToS3

	if err := requestFor(job).Validate(); err != nil {
		return nil, err
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("mode", string(job.Mode)),
		slog.String("source", job.Source),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all known jobs.
func (s *Service) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job and runs it to completion.
func (s *Service) Process(ctx context.Context, input CreateInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.ProcessExistingJob(ctx, job.ID); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, job.ID)
}

// ProcessExistingJob runs a queued job. The job ends COMPLETED when the run
// finishes, even if nothing was captured; FAILED on a fatal run error; and
// CANCELLED when ctx is cancelled. The returned error only reports problems
// loading or saving the job.
func (s *Service) ProcessExistingJob(ctx context.Context, jobID string) error {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := job.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if err := s.repo.Save(ctx, job); err != nil {
		return err
	}

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job", slog.String("mode", string(job.Mode)))

	obs := Observers{
		jobObserver{job: job},
		NewLogObserver(logger),
		savingObserver{repo: s.repo, job: job, ctx: context.WithoutCancel(ctx)},
	}
	result, runErr := s.runner.Run(ctx, requestFor(job), obs)

	// The run may have been cancelled; the final state must still be stored.
	saveCtx := context.WithoutCancel(ctx)

	switch {
	case runErr == nil:
		job.UpdateProgress(result.Requested, result.Requested)
		_ = job.Complete()
		logger.Info("job completed",
			slog.Int("captured", result.Captured),
			slog.Int("requested", result.Requested),
			slog.Bool("success", result.Success()),
		)
	case errors.Is(runErr, context.Canceled):
		_ = job.Cancel()
		logger.Warn("job cancelled")
	default:
		_ = job.Fail(runErr.Error())
		logger.Error("job failed", slog.String("error", runErr.Error()))
	}

	return s.repo.Save(saveCtx, job)
}

// requestFor builds the run request of job.
func requestFor(job *Job) Request {
	job.mu.RLock()
	defer job.mu.RUnlock()
	return Request{
		Source:          job.Source,
		OutputDir:       job.OutputDir,
		Mode:            job.Mode,
		IntervalSeconds: job.IntervalSeconds,
		SceneThreshold:  job.SceneThreshold,
		Timestamps:      job.Timestamps,
		Publish:         job.PushToS3,
		KeyPrefix:       job.ID,
	}
}

// savingObserver persists the job after captures and progress reports so
// pollers see intermediate state.
type savingObserver struct {
	repo Repository
	job  *Job
	ctx  context.Context
}

func (o savingObserver) save() {
	_ = o.repo.Save(o.ctx, o.job)
}

func (o savingObserver) Progress(int, int)       { o.save() }
func (o savingObserver) Captured(capture.Record) { o.save() }
func (o savingObserver) Skipped(string, error)   { o.save() }
