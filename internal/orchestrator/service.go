// -----------------------------------------------------------------------
// Orchestrator - public facade over the tracker and executor
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

var (
	// ErrUnknownJobType is returned before any job record is created
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrUnknownJobStatus rejects list filters outside the lifecycle states
	ErrUnknownJobStatus = errors.New("unknown job status")
	// ErrJobNotFound is returned for lookups and mutations on absent IDs
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning guards deletion of a job with a live process
	ErrJobRunning = errors.New("job is running")
)

// Service is the entry point callers use to run and inspect jobs. It
// validates requests, owns the dispatch goroutines, and leaves all state
// bookkeeping to the tracker and executor underneath.
type Service struct {
	tracker  interfaces.JobTracker
	executor interfaces.JobExecutor
	logger   arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService wires the facade over an already-constructed tracker and executor
func NewService(tracker interfaces.JobTracker, executor interfaces.JobExecutor, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		tracker:  tracker,
		executor: executor,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// CreateJob validates the type, registers a pending job, and dispatches it
// asynchronously. An unknown type is rejected before any record exists.
func (s *Service) CreateJob(jobType models.JobType, options models.JobOptions) (string, error) {
	if !s.executor.Supports(jobType) {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}

	jobID := s.tracker.CreateJob(jobType, options)

	s.logger.Info().
		Str("job_id", jobID).
		Str("job_type", string(jobType)).
		Msg("Job created")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Execute(s.ctx, jobID, jobType, options)
	}()

	return jobID, nil
}

// GetJob returns a snapshot of one job
func (s *Service) GetJob(jobID string) (*models.Job, error) {
	job, ok := s.tracker.GetJob(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// ListJobs returns all jobs in creation order
func (s *Service) ListJobs() []*models.Job {
	return s.tracker.GetAllJobs()
}

// ListJobsByStatus filters by lifecycle state
func (s *Service) ListJobsByStatus(status models.JobStatus) ([]*models.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobStatus, status)
	}
	return s.tracker.GetJobsByStatus(status), nil
}

// ListJobsByType filters by job type
func (s *Service) ListJobsByType(jobType models.JobType) ([]*models.Job, error) {
	if !s.executor.Supports(jobType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return s.tracker.GetJobsByType(jobType), nil
}

// CancelJob stops a pending or running job. A running job's process is
// killed and the executor records the failed result; a job still queued is
// failed directly. Cancelling a terminal job is a conflict.
func (s *Service) CancelJob(jobID string) error {
	job, ok := s.tracker.GetJob(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", models.ErrInvalidTransition, jobID, job.Status)
	}

	if s.executor.Cancel(jobID) {
		s.logger.Info().Str("job_id", jobID).Msg("Cancelled running job")
		return nil
	}

	// No live process yet; fail the job before the executor spawns it
	s.tracker.UpdateStatus(jobID, models.JobStatusFailed, &models.JobResult{Error: "job cancelled"})
	s.logger.Info().Str("job_id", jobID).Msg("Cancelled queued job")
	return nil
}

// DeleteJob removes a job record. Running jobs must be cancelled first.
func (s *Service) DeleteJob(jobID string) error {
	job, ok := s.tracker.GetJob(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status == models.JobStatusRunning {
		return fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	if !s.tracker.DeleteJob(jobID) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return nil
}

// JobTypes returns the job types this deployment can run
func (s *Service) JobTypes() []models.JobType {
	return s.executor.SupportedTypes()
}

// Close stops dispatching, cancels in-flight executions, and waits for the
// dispatch goroutines to drain.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
