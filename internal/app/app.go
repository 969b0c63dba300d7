// -----------------------------------------------------------------------
// App - explicit dependency wiring for all components
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/executor"
	"github.com/ternarybob/conductor/internal/handlers"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/orchestrator"
	"github.com/ternarybob/conductor/internal/ratelimit"
	"github.com/ternarybob/conductor/internal/scheduler"
	"github.com/ternarybob/conductor/internal/storage/badger"
	"github.com/ternarybob/conductor/internal/tracker"
)

// App holds all application components. Everything is constructed here, in
// dependency order, and torn down in reverse by Close. No component reaches
// for a global; whatever it needs is passed in.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB         *badger.BadgerDB
	JobStorage interfaces.JobStorage

	// Job orchestration
	Tracker      *tracker.Tracker
	Backoff      *ratelimit.Coordinator
	Executor     *executor.Executor
	Orchestrator *orchestrator.Service
	Scheduler    *scheduler.Scheduler

	// HTTP handlers
	JobHandler    *handlers.JobHandler
	StatusHandler *handlers.StatusHandler
}

// New wires the application from config. A partially constructed app is torn
// down before the error returns.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	db, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.DB = db
	a.JobStorage = badger.NewJobStorage(db, logger)

	a.Tracker = tracker.New(a.JobStorage, logger)
	if err := a.Tracker.Rehydrate(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to rehydrate job history, starting empty")
	}

	a.Backoff = ratelimit.NewCoordinator(logger)
	a.Executor = executor.New(a.Tracker, a.Backoff, logger, config)
	a.Orchestrator = orchestrator.NewService(a.Tracker, a.Executor, logger)

	a.Scheduler, err = scheduler.New(a.Orchestrator, logger, config.Scheduler)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Scheduler.Start(); err != nil {
		a.Close()
		return nil, err
	}

	a.JobHandler = handlers.NewJobHandler(a.Orchestrator, logger)
	a.StatusHandler = handlers.NewStatusHandler(config, a.Orchestrator, logger)

	logger.Info().
		Int("job_types", len(a.Executor.SupportedTypes())).
		Bool("scheduler", a.Scheduler.Enabled()).
		Msg("Application initialized")

	return a, nil
}

// Close tears components down in reverse construction order
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Orchestrator != nil {
		a.Orchestrator.Close()
	}
	if a.Tracker != nil {
		a.Tracker.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application shut down")
}
