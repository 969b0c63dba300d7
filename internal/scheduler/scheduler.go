// -----------------------------------------------------------------------
// Scheduler - recurring status-sync jobs on a cron schedule
// -----------------------------------------------------------------------

package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/models"
)

// JobCreator is the slice of the orchestrator the scheduler needs
type JobCreator interface {
	CreateJob(jobType models.JobType, options models.JobOptions) (string, error)
}

// Scheduler fires the status-sync job types on a recurring schedule. Each
// cycle enqueues one job per sync stage; the executor's pacing keeps the
// burst within the external API's limits. Cycles do not overlap - if a cycle
// is still being enqueued when the next tick arrives, the tick is skipped.
type Scheduler struct {
	creator  JobCreator
	logger   arbor.ILogger
	cron     *cron.Cron
	schedule string
	enabled  bool
}

// New validates the schedule and builds a stopped scheduler
func New(creator JobCreator, logger arbor.ILogger, config common.SchedulerConfig) (*Scheduler, error) {
	if config.Enabled {
		if err := common.ValidateSchedule(config.Schedule); err != nil {
			return nil, fmt.Errorf("invalid scheduler config: %w", err)
		}
	}

	return &Scheduler{
		creator:  creator,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: config.Schedule,
		enabled:  config.Enabled,
	}, nil
}

// Start registers the sync cycle and begins ticking. No-op when disabled.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runSyncCycle); err != nil {
		return fmt.Errorf("failed to register sync schedule: %w", err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Msg("Scheduler started")
	return nil
}

// Stop halts ticking and waits for an in-flight cycle to finish enqueueing
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Enabled reports whether the scheduler will tick once started
func (s *Scheduler) Enabled() bool {
	return s.enabled
}

// runSyncCycle enqueues one job per sync stage, in pipeline order
func (s *Scheduler) runSyncCycle() {
	s.logger.Info().Msg("Starting status sync cycle")

	for _, jobType := range models.SyncJobTypes() {
		jobID, err := s.creator.CreateJob(jobType, nil)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("job_type", string(jobType)).
				Msg("Failed to enqueue sync job")
			continue
		}
		s.logger.Debug().
			Str("job_id", jobID).
			Str("job_type", string(jobType)).
			Msg("Sync job enqueued")
	}
}
