package engine

import (
	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/errors"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

// Submitter admits scan jobs into the execution queue
type Submitter interface {
	Submit(job *models.ScanJob) error
}

// SearchSource is what the scheduler needs from the search registry
type SearchSource interface {
	Lookup(id string) (*models.SavedSearch, bool)
	Settings() models.AutomationSettings
}

// Scheduler owns the per-search timers and the idle-gating policy. Timers
// are named by search ID, so rescheduling a search replaces its previous
// registration. Timer and registry races never propagate to callers; they
// are logged and the fire is dropped.
type Scheduler struct {
	timers   TimerService
	sensor   ActivitySensor
	searches SearchSource
	queue    Submitter
	cfg      config.EngineConfig
	logger   *logging.Logger
}

func NewScheduler(
	timers TimerService,
	sensor ActivitySensor,
	searches SearchSource,
	queue Submitter,
	cfg config.EngineConfig,
	logger *logging.Logger,
) *Scheduler {
	return &Scheduler{
		timers:   timers,
		sensor:   sensor,
		searches: searches,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetTimerService wires the timer service after construction, so the timer
// service's fire handler can point back at this scheduler.
func (s *Scheduler) SetTimerService(timers TimerService) {
	s.timers = timers
}

// Register starts scheduling a search. No-op when automation or the search
// is disabled. While the user is active only a short re-check is scheduled;
// the real cadence starts once the user goes idle.
func (s *Scheduler) Register(search *models.SavedSearch) {
	if !s.searches.Settings().Enabled || !search.Enabled {
		return
	}

	if s.sensor.QueryIdleState(s.cfg.IdleThreshold) == types.StateActive {
		s.timers.Schedule(search.ID, TimerOptions{Delay: s.cfg.RecheckDelay})
		s.logger.WithField("search_id", search.ID).Debug("User active, deferring cadence start")
		return
	}

	s.timers.Schedule(search.ID, TimerOptions{
		Delay:  s.cfg.FirstFireDelay,
		Period: search.Cadence(),
	})
	s.logger.WithFields(map[string]interface{}{
		"search_id": search.ID,
		"cadence":   search.Cadence(),
	}).Info("Search registered for automated scanning")
}

// Unregister cancels the search's timer
func (s *Scheduler) Unregister(searchID string) {
	s.timers.Cancel(searchID)
}

// OnTimerFired is the TimerHandler for search timers. Stale fires for
// deleted or disabled searches are ignored; their timers are cancelled here
// rather than at mutation time.
func (s *Scheduler) OnTimerFired(searchID string) {
	search, ok := s.searches.Lookup(searchID)
	if !ok {
		s.timers.Cancel(searchID)
		return
	}

	settings := s.searches.Settings()
	if !settings.Enabled || !search.Enabled {
		s.timers.Cancel(searchID)
		return
	}

	if settings.PauseDuringActiveUse &&
		s.sensor.QueryIdleState(s.cfg.IdleThreshold) == types.StateActive {
		// Back off while the user is present; a one-shot re-check
		// replaces the cadence timer and re-arms it from the idle path.
		s.timers.Schedule(searchID, TimerOptions{Delay: s.cfg.RecheckDelay})
		s.logger.WithField("search_id", searchID).Debug("User active, deferring scan")
		return
	}

	// The fire may have come from a re-check one-shot, so restore the
	// cadence before submitting.
	s.timers.Schedule(searchID, TimerOptions{Period: search.Cadence()})

	if _, err := s.submitErr(search); err != nil {
		s.logger.WithError(err).WithField("search_id", search.ID).Debug("Scan not enqueued")
	}
}

// TriggerNow submits a scan for the search immediately, bypassing idle
// gating. Unlike timer fires, errors surface to the caller.
func (s *Scheduler) TriggerNow(searchID string) (*models.ScanJob, error) {
	search, ok := s.searches.Lookup(searchID)
	if !ok {
		return nil, errors.NewNotFoundError("search", searchID)
	}
	return s.submitErr(search)
}

func (s *Scheduler) submitErr(search *models.SavedSearch) (*models.ScanJob, error) {
	job := models.NewScanJob(search.ID)
	if err := s.queue.Submit(job); err != nil {
		return nil, err
	}
	return job, nil
}

// RegisterAll registers every enabled search, used at engine start and when
// automation is switched on.
func (s *Scheduler) RegisterAll(searches []*models.SavedSearch) {
	for _, search := range searches {
		s.Register(search)
	}
}
