package engine

import (
	"context"

	"github.com/deal-scanner/internal/circuitbreaker"
	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
	"github.com/deal-scanner/internal/types"
)

// SearchDirectory is the registry surface the engine depends on
type SearchDirectory interface {
	ScanBookkeeper
	GetAll() []*models.SavedSearch
}

// Options carries the engine's optional collaborators
type Options struct {
	Scorer   Scorer
	Notifier Notifier
	Archiver Archiver
}

// Engine wires the scheduler, execution queue, job runner, result store and
// event log into one unit with a single Start/Stop life cycle.
type Engine struct {
	cfg       config.EngineConfig
	directory SearchDirectory
	sensor    ActivitySensor
	scheduler *Scheduler
	queue     *ExecutionQueue
	runner    *Runner
	timers    *CronTimerService
	events    *EventLog
	results   *ResultStore
	breakers  *circuitbreaker.Manager
	logger    *logging.Logger
}

func New(
	ctx context.Context,
	cfg config.EngineConfig,
	directory SearchDirectory,
	sensor ActivitySensor,
	driver TabDriver,
	store storage.DurableStore,
	logger *logging.Logger,
	opts Options,
) *Engine {
	events := NewEventLog(ctx, store, cfg.EventLogCap, logger)
	results := NewResultStore(ctx, store, cfg.CandidateRetention, logger)
	breakers := circuitbreaker.NewManager(circuitbreaker.DefaultConfig)

	runner := NewRunner(driver, directory, results, events, breakers, cfg, logger, RunnerOptions{
		Scorer:   opts.Scorer,
		Notifier: opts.Notifier,
		Archiver: opts.Archiver,
	})
	queue := NewExecutionQueue(runner, directory, cfg.MaxPendingJobs, logger)
	runner.SetSlotReleaser(queue)

	scheduler := NewScheduler(nil, sensor, directory, queue, cfg, logger)
	timers := NewCronTimerService(scheduler.OnTimerFired, logger)
	scheduler.SetTimerService(timers)

	return &Engine{
		cfg:       cfg,
		directory: directory,
		sensor:    sensor,
		scheduler: scheduler,
		queue:     queue,
		runner:    runner,
		timers:    timers,
		events:    events,
		results:   results,
		breakers:  breakers,
		logger:    logger,
	}
}

// Start begins timer delivery and, when automation is enabled, registers
// every enabled search.
func (e *Engine) Start() {
	e.timers.Start()
	if e.directory.Settings().Enabled {
		e.scheduler.RegisterAll(e.directory.GetAll())
	}
	e.logger.Info("Scan engine started")
}

// Stop cancels all timers. In-flight jobs are abandoned best-effort; their
// tab teardown still runs.
func (e *Engine) Stop() {
	e.timers.Stop()
	e.logger.Info("Scan engine stopped")
}

// Scheduler exposes the scheduler for registry attachment and manual
// triggers
func (e *Engine) Scheduler() *Scheduler {
	return e.scheduler
}

// TriggerNow submits a scan for the search immediately, bypassing idle
// gating
func (e *Engine) TriggerNow(searchID string) (*models.ScanJob, error) {
	return e.scheduler.TriggerNow(searchID)
}

// Events returns the newest-first event log, up to limit entries
func (e *Engine) Events(limit int) []models.EventLogEntry {
	return e.events.Events(limit)
}

// Candidates returns retained candidates newest-first, optionally filtered
// by search ID
func (e *Engine) Candidates(searchID string, limit int) []models.Candidate {
	return e.results.Candidates(searchID, limit)
}

// Status is a point-in-time snapshot of engine state
type Status struct {
	AutomationEnabled bool                             `json:"automationEnabled"`
	IdleState         types.IdleState                  `json:"idleState"`
	JobsInFlight      int                              `json:"jobsInFlight"`
	JobsPending       int                              `json:"jobsPending"`
	CandidatesHeld    int                              `json:"candidatesHeld"`
	CircuitBreakers   map[string]*circuitbreaker.Stats `json:"circuitBreakers"`
}

// Status reports the engine's current state
func (e *Engine) Status() Status {
	return Status{
		AutomationEnabled: e.directory.Settings().Enabled,
		IdleState:         e.sensor.QueryIdleState(e.cfg.IdleThreshold),
		JobsInFlight:      e.queue.InFlight(),
		JobsPending:       e.queue.Depth(),
		CandidatesHeld:    e.results.Size(),
		CircuitBreakers:   e.breakers.GetAllStats(),
	}
}
