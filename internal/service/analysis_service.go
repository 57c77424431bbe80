package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fightwatch/api/internal/model"
	"github.com/fightwatch/api/internal/store"
)

// Caller-misuse errors at the job transport boundary. Reported, never fatal.
var (
	ErrJobNotFound    = store.ErrNotFound
	ErrJobNotComplete = errors.New("job not completed")
)

// Dispatcher schedules a queued job onto a worker without blocking the
// submitter: a goroutine in single-process mode, an asynq enqueue when a
// Redis queue is configured.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// AnalysisService owns the job lifecycle: submission, the
// queued -> processing -> completed|failed state machine, and snapshot reads.
// Workers mutate job records only through its transition methods, so status
// queries racing an in-flight worker always see a consistent record.
type AnalysisService struct {
	store      store.Store
	dispatcher Dispatcher
}

// NewAnalysisService returns a service over the given store. A dispatcher
// must be attached before the first Submit.
func NewAnalysisService(st store.Store) *AnalysisService {
	return &AnalysisService{store: st}
}

// SetDispatcher attaches the worker scheduler. Called once during wiring.
func (s *AnalysisService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Submit creates a queued job for the video and schedules its worker. It
// returns as soon as the job is recorded and dispatched.
func (s *AnalysisService) Submit(ctx context.Context, videoPath string, params model.AnalysisParams) (*model.Job, error) {
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobStatusQueued,
		VideoPath: videoPath,
		Params:    params.WithDefaults(),
		CreatedAt: time.Now(),
	}

	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	if s.dispatcher == nil {
		return nil, errors.New("no dispatcher configured")
	}
	if err := s.dispatcher.Dispatch(ctx, job.ID); err != nil {
		_ = s.FailJob(ctx, job.ID, fmt.Sprintf("failed to schedule job: %v", err))
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	return job, nil
}

// Status returns a non-blocking snapshot, safe to call concurrently with the
// job's worker.
func (s *AnalysisService) Status(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	resp := &model.JobStatusResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Result != nil {
		d := job.Result.ProcessingTimeSeconds
		resp.ProcessingTimeSeconds = &d
	}
	return resp, nil
}

// Result returns the output record of a completed job.
func (s *AnalysisService) Result(ctx context.Context, jobID string) (*model.AnalysisResult, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, ErrJobNotComplete
	}
	return job.Result, nil
}

// Report returns the generated incident report of a completed job.
func (s *AnalysisService) Report(ctx context.Context, jobID string) (string, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.JobStatusCompleted {
		return "", ErrJobNotComplete
	}
	return job.Report, nil
}

// Job returns a full snapshot of the record.
func (s *AnalysisService) Job(ctx context.Context, jobID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID)
}

// BeginProcessing transitions a queued job to processing. Called by the
// job's worker as its first act.
func (s *AnalysisService) BeginProcessing(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsDone() {
		return nil, fmt.Errorf("job %s already in terminal state %s", jobID, job.Status)
	}

	job.Status = model.JobStatusProcessing
	now := time.Now()
	job.StartedAt = &now

	if err := s.store.Save(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CompleteJob performs the terminal transition into completed, populating
// the result slots. A second terminal transition is refused.
func (s *AnalysisService) CompleteJob(ctx context.Context, jobID string, result *model.AnalysisResult) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsDone() {
		return fmt.Errorf("job %s already in terminal state %s", jobID, job.Status)
	}

	job.Status = model.JobStatusCompleted
	job.Result = result
	now := time.Now()
	job.CompletedAt = &now

	return s.store.Save(ctx, job)
}

// FailJob performs the terminal transition into failed with one
// human-readable error description.
func (s *AnalysisService) FailJob(ctx context.Context, jobID, errMsg string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsDone() {
		return fmt.Errorf("job %s already in terminal state %s", jobID, job.Status)
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	now := time.Now()
	job.CompletedAt = &now

	return s.store.Save(ctx, job)
}

// AttachReport stores the generated report alongside a completed job. The
// report is owned by the report collaborator and may arrive or be
// regenerated after completion.
func (s *AnalysisService) AttachReport(ctx context.Context, jobID, report string) error {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusCompleted {
		return ErrJobNotComplete
	}

	job.Report = report
	return s.store.Save(ctx, job)
}
