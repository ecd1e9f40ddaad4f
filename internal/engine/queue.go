package engine

import (
	"sync"

	"github.com/deal-scanner/internal/errors"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
)

// JobExecutor runs a single scan job to completion. Run is invoked on its
// own goroutine and must call the queue's OnJobFinished exactly once.
type JobExecutor interface {
	Run(job *models.ScanJob)
}

// SettingsSource exposes the current automation settings
type SettingsSource interface {
	Settings() models.AutomationSettings
}

// ExecutionQueue bounds concurrent scan execution to the configured tab
// limit. Jobs past the limit wait in FIFO order. A search can have at most
// one job queued or running at a time.
type ExecutionQueue struct {
	executor   JobExecutor
	settings   SettingsSource
	logger     *logging.Logger
	maxPending int

	mu       sync.Mutex
	pending  []*models.ScanJob
	running  map[string]*models.ScanJob // jobID -> job
	bySearch map[string]string          // searchID -> jobID, queued or running
}

func NewExecutionQueue(executor JobExecutor, settings SettingsSource, maxPending int, logger *logging.Logger) *ExecutionQueue {
	return &ExecutionQueue{
		executor:   executor,
		settings:   settings,
		logger:     logger,
		maxPending: maxPending,
		running:    make(map[string]*models.ScanJob),
		bySearch:   make(map[string]string),
	}
}

// SetExecutor wires the executor after construction. Must be called before
// the first Submit.
func (q *ExecutionQueue) SetExecutor(executor JobExecutor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.executor = executor
}

// Submit enqueues a scan job for the search, starting it immediately when a
// tab slot is free. Returns a conflict error if the search already has a job
// outstanding and a rate limit error when the pending queue is full.
func (q *ExecutionQueue) Submit(job *models.ScanJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.bySearch[job.SearchID]; exists {
		return errors.NewConflictError("search already has a scan queued or running")
	}
	if len(q.pending) >= q.maxPending {
		return errors.NewRateLimitError(60)
	}

	q.bySearch[job.SearchID] = job.JobID

	maxTabs := q.settings.Settings().MaxTabsOpen
	if maxTabs < 1 {
		maxTabs = 1
	}
	if len(q.running) < maxTabs {
		q.startLocked(job)
	} else {
		q.pending = append(q.pending, job)
		q.logger.WithFields(map[string]interface{}{
			"job_id":    job.JobID,
			"search_id": job.SearchID,
			"depth":     len(q.pending),
		}).Debug("Scan job queued")
	}
	return nil
}

// OnJobFinished releases the job's tab slot and dispatches from the pending
// queue. Safe to call for a job that was never running.
func (q *ExecutionQueue) OnJobFinished(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.running[jobID]
	if !ok {
		return
	}
	delete(q.running, jobID)
	delete(q.bySearch, job.SearchID)

	maxTabs := q.settings.Settings().MaxTabsOpen
	if maxTabs < 1 {
		maxTabs = 1
	}
	for len(q.pending) > 0 && len(q.running) < maxTabs {
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.startLocked(next)
	}
}

// startLocked marks the job running and launches the executor. Callers must
// hold q.mu.
func (q *ExecutionQueue) startLocked(job *models.ScanJob) {
	q.running[job.JobID] = job
	go q.executor.Run(job)
}

// Depth returns the number of pending jobs
func (q *ExecutionQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the number of running jobs
func (q *ExecutionQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running)
}

// Outstanding reports whether the search has a job queued or running
func (q *ExecutionQueue) Outstanding(searchID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.bySearch[searchID]
	return ok
}
