// -----------------------------------------------------------------------
// Tracker - authoritative in-memory job registry with best-effort snapshots
// -----------------------------------------------------------------------

package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

const (
	persistTimeout  = 5 * time.Second
	persistQueueCap = 256
)

// Tracker owns the job map and enforces the state machine. It is constructed
// explicitly and injected wherever job state is needed; there is no ambient
// singleton. All methods are safe for concurrent use.
//
// Every mutation enqueues an asynchronous snapshot write through the storage
// side channel. A single writer goroutine consumes the queue in order, so the
// last in-memory write for a job is also the last one on disk and a delete
// cannot be overtaken by an earlier save. Snapshot failures are logged and
// swallowed - durability is best-effort and must never fail an in-memory
// operation that already succeeded. A full queue applies backpressure to the
// mutating caller rather than reordering writes.
type Tracker struct {
	mu      sync.RWMutex
	jobs    map[string]*models.Job
	order   []string // job IDs in creation order
	storage interfaces.JobStorage
	logger  arbor.ILogger

	pmu       sync.Mutex // guards persistCh lifecycle
	persistCh chan persistOp
	closed    bool
	wg        sync.WaitGroup
}

// persistOp is one queued storage write. A nil job means delete.
type persistOp struct {
	jobID string
	job   *models.Job
}

// New creates a tracker. storage may be nil for a purely in-memory registry
// (tests, ephemeral runs).
func New(storage interfaces.JobStorage, logger arbor.ILogger) *Tracker {
	t := &Tracker{
		jobs:    make(map[string]*models.Job),
		order:   make([]string, 0),
		storage: storage,
		logger:  logger,
	}
	if storage != nil {
		t.persistCh = make(chan persistOp, persistQueueCap)
		t.wg.Add(1)
		go t.persistLoop()
	}
	return t
}

// Rehydrate loads persisted job history into the registry so queries survive
// a restart. Jobs left running by a crashed process stay as persisted; they
// are recoverable history, not auto-resumed work.
func (t *Tracker) Rehydrate(ctx context.Context) error {
	if t.storage == nil {
		return nil
	}

	jobs, err := t.storage.ListJobs(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, job := range jobs {
		if _, exists := t.jobs[job.ID]; exists {
			continue
		}
		t.jobs[job.ID] = job
		t.order = append(t.order, job.ID)
	}

	t.logger.Info().Int("jobs", len(jobs)).Msg("Rehydrated job history from storage")
	return nil
}

// CreateJob registers a new pending job and returns its ID. The type string
// is stored as given - validating it against the closed executor table is the
// caller's concern, which keeps the registry usable for ad hoc types.
func (t *Tracker) CreateJob(jobType models.JobType, options models.JobOptions) string {
	job := models.NewJob(jobType, options)

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.order = append(t.order, job.ID)
	t.persistAsync(job.Clone())
	t.mu.Unlock()

	t.logger.Debug().
		Str("job_id", job.ID).
		Str("job_type", string(jobType)).
		Msg("Job created")

	return job.ID
}

// GetJob returns a copy of the job, or false if the ID is unknown
func (t *Tracker) GetJob(jobID string) (*models.Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[jobID]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// UpdateStatus applies a status transition. Unknown IDs are a no-op.
// Transitions the state machine rejects (resurrecting a terminal job) are
// logged and refused without error - terminal means terminal.
func (t *Tracker) UpdateStatus(jobID string, status models.JobStatus, result *models.JobResult) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return
	}

	if err := job.ApplyStatus(status, result); err != nil {
		t.mu.Unlock()
		t.logger.Warn().
			Err(err).
			Str("job_id", jobID).
			Str("status", string(status)).
			Msg("Rejected job state transition")
		return
	}
	t.persistAsync(job.Clone())
	t.mu.Unlock()

	t.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Job status updated")
}

// UpdateProgress overwrites the job's progress observation. Unknown IDs are a
// no-op. Progress on a terminal job is accepted but cannot un-terminate it.
func (t *Tracker) UpdateProgress(jobID string, current, total int, message string) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return
	}
	job.SetProgress(current, total, message)
	t.persistAsync(job.Clone())
	t.mu.Unlock()
}

// GetAllJobs returns a snapshot of all jobs in creation order
func (t *Tracker) GetAllJobs() []*models.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*models.Job, 0, len(t.order))
	for _, id := range t.order {
		if job, ok := t.jobs[id]; ok {
			result = append(result, job.Clone())
		}
	}
	return result
}

// GetJobsByStatus filters the snapshot by status, creation order preserved
func (t *Tracker) GetJobsByStatus(status models.JobStatus) []*models.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*models.Job, 0)
	for _, id := range t.order {
		if job, ok := t.jobs[id]; ok && job.Status == status {
			result = append(result, job.Clone())
		}
	}
	return result
}

// GetJobsByType filters the snapshot by type, creation order preserved
func (t *Tracker) GetJobsByType(jobType models.JobType) []*models.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*models.Job, 0)
	for _, id := range t.order {
		if job, ok := t.jobs[id]; ok && job.Type == jobType {
			result = append(result, job.Clone())
		}
	}
	return result
}

// DeleteJob removes a job from the registry and its on-disk snapshot.
// Returns true if a record existed.
func (t *Tracker) DeleteJob(jobID string) bool {
	t.mu.Lock()
	_, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return false
	}

	delete(t.jobs, jobID)
	for i, id := range t.order {
		if id == jobID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.enqueue(persistOp{jobID: jobID})
	t.mu.Unlock()

	t.logger.Debug().Str("job_id", jobID).Msg("Job deleted")
	return true
}

// Close drains queued snapshot writes and clears the registry.
// It does not close the storage - the owner that injected it does that.
func (t *Tracker) Close() {
	t.pmu.Lock()
	if !t.closed {
		t.closed = true
		if t.persistCh != nil {
			close(t.persistCh)
		}
	}
	t.pmu.Unlock()

	t.wg.Wait()

	t.mu.Lock()
	t.jobs = make(map[string]*models.Job)
	t.order = t.order[:0]
	t.mu.Unlock()
}

// persistAsync queues a snapshot write for the writer goroutine. Called with
// the registry lock held so queue order matches mutation order. Failures are
// logged, never surfaced.
func (t *Tracker) persistAsync(job *models.Job) {
	t.enqueue(persistOp{jobID: job.ID, job: job})
}

// enqueue hands an op to the writer goroutine. Ops arriving after Close are
// dropped; the registry they mirror is gone anyway.
func (t *Tracker) enqueue(op persistOp) {
	if t.storage == nil {
		return
	}

	t.pmu.Lock()
	defer t.pmu.Unlock()
	if t.closed {
		return
	}
	t.persistCh <- op
}

// persistLoop is the single storage writer. Channel FIFO gives every job's
// snapshots the same order its mutations took under the registry lock.
func (t *Tracker) persistLoop() {
	defer t.wg.Done()

	for op := range t.persistCh {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if op.job == nil {
			if err := t.storage.DeleteJob(ctx, op.jobID); err != nil {
				t.logger.Warn().Err(err).Str("job_id", op.jobID).Msg("Failed to delete job snapshot")
			}
		} else {
			if err := t.storage.SaveJob(ctx, op.job); err != nil {
				t.logger.Warn().Err(err).Str("job_id", op.jobID).Msg("Failed to persist job snapshot")
			}
		}
		cancel()
	}
}
