package handlers

import (
	"github.com/ternarybob/conductor/internal/models"
)

// JobService is the orchestrator surface the HTTP handlers depend on
type JobService interface {
	CreateJob(jobType models.JobType, options models.JobOptions) (string, error)
	GetJob(jobID string) (*models.Job, error)
	ListJobs() []*models.Job
	ListJobsByStatus(status models.JobStatus) ([]*models.Job, error)
	ListJobsByType(jobType models.JobType) ([]*models.Job, error)
	CancelJob(jobID string) error
	DeleteJob(jobID string) error
	JobTypes() []models.JobType
}
