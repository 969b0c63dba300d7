package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/models"
	"github.com/ternarybob/conductor/internal/orchestrator"
)

// JobHandler handles HTTP requests for job management
type JobHandler struct {
	service  JobService
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(service JobService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateJobRequest is the POST /api/jobs payload
type CreateJobRequest struct {
	Type    string                 `json:"type" validate:"required"`
	Options map[string]interface{} `json:"options"`
}

// CreateJobHandler handles POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	jobID, err := h.service.CreateJob(models.JobType(req.Type), models.JobOptions(req.Options))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(models.JobStatusPending),
	})
}

// ListJobsHandler handles GET /api/jobs with optional status and type filters
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	var (
		jobs []*models.Job
		err  error
	)

	switch {
	case r.URL.Query().Get("status") != "":
		jobs, err = h.service.ListJobsByStatus(models.JobStatus(r.URL.Query().Get("status")))
	case r.URL.Query().Get("type") != "":
		jobs, err = h.service.ListJobsByType(models.JobType(r.URL.Query().Get("type")))
	default:
		jobs = h.service.ListJobs()
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobHandler handles GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.service.GetJob(jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// CancelJobHandler handles POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.service.CancelJob(jobID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info().Str("job_id", jobID).Msg("Job cancellation requested")
	WriteSuccess(w, "Job cancelled")
}

// DeleteJobHandler handles DELETE /api/jobs/{id}
func (h *JobHandler) DeleteJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := h.service.DeleteJob(jobID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	WriteSuccess(w, "Job deleted")
}

// JobTypesHandler handles GET /api/jobs/types
func (h *JobHandler) JobTypesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"types": h.service.JobTypes(),
	})
}

// GetJobStatsHandler handles GET /api/jobs/stats
func (h *JobHandler) GetJobStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	stats := map[string]int{
		"total": 0,
	}
	for _, job := range h.service.ListJobs() {
		stats["total"]++
		stats[string(job.Status)]++
	}
	WriteJSON(w, http.StatusOK, stats)
}

// writeServiceError maps orchestrator errors onto HTTP status codes
func (h *JobHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orchestrator.ErrUnknownJobType),
		errors.Is(err, orchestrator.ErrUnknownJobStatus):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, orchestrator.ErrJobRunning),
		errors.Is(err, models.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
