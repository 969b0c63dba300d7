package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/conductor/internal/models"
)

// JobStorage persists job snapshots. It is a best-effort durability side
// channel: callers log failures and carry on, they never propagate them into
// an in-memory operation that already succeeded.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	Close() error
}

// JobTracker is the authoritative in-memory registry of jobs.
//
// Mutations on unknown IDs are no-ops, never errors. Snapshot reads return
// jobs in creation order. Close releases resources and waits for pending
// persistence writes; it exists for test isolation.
type JobTracker interface {
	CreateJob(jobType models.JobType, options models.JobOptions) string
	GetJob(jobID string) (*models.Job, bool)
	UpdateStatus(jobID string, status models.JobStatus, result *models.JobResult)
	UpdateProgress(jobID string, current, total int, message string)
	GetAllJobs() []*models.Job
	GetJobsByStatus(status models.JobStatus) []*models.Job
	GetJobsByType(jobType models.JobType) []*models.Job
	DeleteJob(jobID string) bool
	Close()
}

// BackoffCoordinator tracks the shared backoff window for the rate-limited
// external API. It tells callers how long to wait; it does not serialize them.
type BackoffCoordinator interface {
	IsRateLimited() bool
	RemainingBackoff() time.Duration
	RecordHit(retryAfter time.Duration)
	Wait(ctx context.Context) error
	Reset()
}

// JobExecutor maps a job type to a runnable command and supervises it.
// Execute never returns job-domain failures; those land on the job as a
// failed result.
type JobExecutor interface {
	Execute(ctx context.Context, jobID string, jobType models.JobType, options models.JobOptions)
	Cancel(jobID string) bool
	Supports(jobType models.JobType) bool
	SupportedTypes() []models.JobType
}
