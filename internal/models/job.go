// -----------------------------------------------------------------------
// Job - tracked unit of asynchronous work with a typed operation
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal returns true for completed/failed - no further transitions are permitted
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid returns true if the status is one of the known lifecycle states
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// JobType identifies the operation a job performs. The set is closed;
// the executor's command table is total over these values.
type JobType string

const (
	JobTypeFetch          JobType = "fetch"
	JobTypeFetchAll       JobType = "fetch-all"
	JobTypeTranslate      JobType = "translate"
	JobTypeSyncReady      JobType = "sync-ready"
	JobTypeSyncTranslated JobType = "sync-translated"
	JobTypeSyncReviewed   JobType = "sync-reviewed"
	JobTypeSyncPublished  JobType = "sync-published"
)

// AllJobTypes returns the closed set of job types in declaration order
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeFetch,
		JobTypeFetchAll,
		JobTypeTranslate,
		JobTypeSyncReady,
		JobTypeSyncTranslated,
		JobTypeSyncReviewed,
		JobTypeSyncPublished,
	}
}

// SyncJobTypes returns the status-sync job types fired by the scheduler
func SyncJobTypes() []JobType {
	return []JobType{
		JobTypeSyncReady,
		JobTypeSyncTranslated,
		JobTypeSyncReviewed,
		JobTypeSyncPublished,
	}
}

// ErrInvalidTransition is returned when a status change would move a job
// out of a terminal state or into an unknown state.
var ErrInvalidTransition = errors.New("invalid job state transition")

// JobProgress is the last progress observation for a running job.
// It is overwritten wholesale on each update, never merged.
type JobProgress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// JobResult is set exactly once, at the terminal transition
type JobResult struct {
	Success bool                   `json:"success"`
	Output  string                 `json:"output,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Job is a tracked unit of asynchronous work.
//
// Lifecycle: pending -> running -> completed|failed. Terminal means terminal;
// ApplyStatus rejects any transition out of completed/failed except
// re-asserting the same terminal status (which overwrites the result).
//
// Mutation happens only through the tracker, which in turn is driven by the
// executor that owns the job. Everything serializes losslessly to JSON.
type Job struct {
	ID          string       `json:"id"`
	Type        JobType      `json:"type"`
	Status      JobStatus    `json:"status"`
	Options     JobOptions   `json:"options,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Progress    *JobProgress `json:"progress,omitempty"`
	Result      *JobResult   `json:"result,omitempty"`
}

// JobOptions is the caller-supplied option bag snapshot at creation time.
// Keys the argument builder does not recognize are ignored by the executor.
type JobOptions map[string]interface{}

// NewJob creates a pending job with a fresh ID
func NewJob(jobType JobType, options JobOptions) *Job {
	return &Job{
		ID:        "job_" + uuid.New().String(),
		Type:      jobType,
		Status:    JobStatusPending,
		Options:   options,
		CreatedAt: time.Now(),
	}
}

// ApplyStatus moves the job to the given status, maintaining the timestamp
// and result invariants:
//   - StartedAt is set once, when the job first leaves pending
//   - CompletedAt is set once, when the job first reaches a terminal state
//   - Result.Success always agrees with the terminal status
//
// Re-asserting the current terminal status overwrites the result and is
// accepted. Any other transition out of a terminal state returns
// ErrInvalidTransition.
func (j *Job) ApplyStatus(status JobStatus, result *JobResult) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}

	if j.Status.IsTerminal() {
		if status != j.Status {
			return fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, j.ID, j.Status)
		}
		// Idempotent terminal re-assertion - overwrite the result only
		if result != nil {
			j.setResult(status, result)
		}
		return nil
	}

	now := time.Now()

	switch status {
	case JobStatusPending:
		if j.Status != JobStatusPending {
			return fmt.Errorf("%w: cannot return job %s to pending", ErrInvalidTransition, j.ID)
		}
		return nil
	case JobStatusRunning:
		j.Status = JobStatusRunning
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		return nil
	case JobStatusCompleted, JobStatusFailed:
		j.Status = status
		// A job that failed before spawning never passed through running;
		// the started/completed pair still brackets its lifetime.
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		if j.CompletedAt == nil {
			j.CompletedAt = &now
		}
		j.setResult(status, result)
		return nil
	}
	return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
}

func (j *Job) setResult(status JobStatus, result *JobResult) {
	if result == nil {
		result = &JobResult{}
	}
	result.Success = status == JobStatusCompleted
	j.Result = result
}

// SetProgress overwrites the progress observation wholesale
func (j *Job) SetProgress(current, total int, message string) {
	j.Progress = &JobProgress{
		Current: current,
		Total:   total,
		Message: message,
	}
}

// IsTerminal returns true if the job has reached completed or failed
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Clone returns a deep copy so registry snapshots cannot be mutated by callers
func (j *Job) Clone() *Job {
	clone := *j
	if j.Options != nil {
		clone.Options = make(JobOptions, len(j.Options))
		for k, v := range j.Options {
			clone.Options[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	if j.Progress != nil {
		p := *j.Progress
		clone.Progress = &p
	}
	if j.Result != nil {
		r := *j.Result
		if j.Result.Data != nil {
			r.Data = make(map[string]interface{}, len(j.Result.Data))
			for k, v := range j.Result.Data {
				r.Data[k] = v
			}
		}
		clone.Result = &r
	}
	return &clone
}

// ToJSON serializes the job for persistence
func (j *Job) ToJSON() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

// JobFromJSON deserializes a persisted job
func JobFromJSON(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Validate checks the fields persistence depends on
func (j *Job) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.Type == "" {
		return fmt.Errorf("job type is required")
	}
	if !j.Status.Valid() {
		return fmt.Errorf("unknown job status: %s", j.Status)
	}
	return nil
}
