package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/deal-scanner/internal/circuitbreaker"
	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/errors"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/retry"
	"github.com/deal-scanner/internal/types"
)

// ScanBookkeeper is what the runner needs from the search registry: search
// lookup, current settings, and the post-scan bookkeeping write.
type ScanBookkeeper interface {
	Lookup(id string) (*models.SavedSearch, bool)
	Settings() models.AutomationSettings
	RecordScanResult(ctx context.Context, id string, scannedAt, nextScan time.Time, resultsCount int) error
}

// SlotReleaser is notified exactly once when a job reaches a terminal state
type SlotReleaser interface {
	OnJobFinished(jobID string)
}

// Runner drives one scan job through its life cycle: open a background tab,
// wait for the page, inject the extractor, trigger the scan, collect the
// response and tear the tab down. Every failure is local to the job; the
// runner never panics the process or blocks the queue past its timeouts.
type Runner struct {
	driver   TabDriver
	books    ScanBookkeeper
	results  *ResultStore
	events   *EventLog
	breakers *circuitbreaker.Manager
	finished SlotReleaser
	scorer   Scorer
	notifier Notifier
	archiver Archiver
	cfg      config.EngineConfig
	logger   *logging.Logger
}

// RunnerOptions carries the optional collaborators
type RunnerOptions struct {
	Scorer   Scorer
	Notifier Notifier
	Archiver Archiver
}

func NewRunner(
	driver TabDriver,
	books ScanBookkeeper,
	results *ResultStore,
	events *EventLog,
	breakers *circuitbreaker.Manager,
	cfg config.EngineConfig,
	logger *logging.Logger,
	opts RunnerOptions,
) *Runner {
	return &Runner{
		driver:   driver,
		books:    books,
		results:  results,
		events:   events,
		breakers: breakers,
		scorer:   opts.Scorer,
		notifier: opts.Notifier,
		archiver: opts.Archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetSlotReleaser wires the queue after construction. Must be called before
// the first Run.
func (r *Runner) SetSlotReleaser(finished SlotReleaser) {
	r.finished = finished
}

// Run implements JobExecutor. It always releases the job's slot, exactly
// once, regardless of how the job terminates.
func (r *Runner) Run(job *models.ScanJob) {
	defer r.finished.OnJobFinished(job.JobID)

	logger := r.logger.WithFields(map[string]interface{}{
		"job_id":    job.JobID,
		"search_id": job.SearchID,
	})
	ctx := logging.WithLogger(context.Background(), logger)

	search, ok := r.books.Lookup(job.SearchID)
	if !ok {
		logger.Warn("Search deleted before its scan job ran, dropping job")
		return
	}

	r.events.Append(ctx, types.EventScanStarted, search.ID, search.Name)

	breaker := r.breakers.GetOrCreate(string(search.Platform))

	var candidates []models.Candidate
	attempts := r.books.Settings().RetryAttempts + 1
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = attempts

	result := retry.WithExponentialBackoff(ctx, retryCfg, func(ctx context.Context, attempt int) error {
		job.Attempt = attempt
		var attemptErr error
		execErr := breaker.Execute(func() error {
			candidates, attemptErr = r.runAttempt(ctx, search, job)
			return attemptErr
		})
		if stderrors.Is(execErr, circuitbreaker.ErrCircuitOpen) {
			return errors.NewAutomationError(types.FailCircuitOpen, execErr)
		}
		return execErr
	})
	if !result.Success {
		job.State = types.JobFailed
		r.fail(ctx, search, failureReason(result.LastError), result.LastError)
		return
	}

	job.State = types.JobCompleted
	r.complete(ctx, search, job, candidates)
}

// runAttempt is one pass through the tab life cycle. The tab is always torn
// down, success or failure, after the configured close grace.
func (r *Runner) runAttempt(ctx context.Context, search *models.SavedSearch, job *models.ScanJob) ([]models.Candidate, error) {
	logger := logging.FromContext(ctx)

	tab, err := r.driver.OpenTab(ctx, search.URL)
	if err != nil {
		return nil, errors.NewAutomationError(types.FailTabCreate, err)
	}
	job.State = types.JobTabOpened
	defer r.teardown(tab)

	if err := r.driver.AwaitLoad(ctx, tab, r.cfg.LoadTimeout); err != nil {
		return nil, errors.NewAutomationError(types.FailLoadTimeout, err)
	}
	job.State = types.JobLoaded

	if err := r.driver.InjectExtractor(ctx, tab); err != nil {
		return nil, errors.NewAutomationError(types.FailInjection, err)
	}
	job.State = types.JobScriptInjected

	// Let client-side rendering settle before asking for fields
	select {
	case <-time.After(r.cfg.SettleDelay):
	case <-ctx.Done():
		return nil, errors.NewAutomationError(types.FailNoResponse, ctx.Err())
	}

	payload := ScanPayload{
		SearchID:   search.ID,
		SearchName: search.Name,
		Filters:    search.Filters,
	}
	job.State = types.JobScanTriggered
	resp, err := r.driver.SendScanCommand(ctx, tab, payload, r.cfg.ScanTimeout)
	if err != nil {
		return nil, errors.NewAutomationError(types.FailNoResponse, err)
	}

	if !resp.Success {
		return nil, errors.NewAutomationError(types.FailScanError, fmt.Errorf("extractor reported failure: %s", resp.Error))
	}
	job.State = types.JobCollecting

	logger.WithFields(map[string]interface{}{
		"state":      job.State,
		"candidates": len(resp.Candidates),
	}).Debug("Scan response collected")

	now := time.Now().UTC()
	for i := range resp.Candidates {
		resp.Candidates[i].SearchID = search.ID
		resp.Candidates[i].Platform = search.Platform
		resp.Candidates[i].FoundVia = search.Name
		if resp.Candidates[i].ScannedAt.IsZero() {
			resp.Candidates[i].ScannedAt = now
		}
	}
	return resp.Candidates, nil
}

// teardown closes the tab after the configured grace period
func (r *Runner) teardown(tab TabHandle) {
	if !r.books.Settings().CloseTabsAfterScan {
		return
	}
	time.AfterFunc(r.cfg.CloseGrace, func() {
		if err := r.driver.CloseTab(tab); err != nil {
			r.logger.WithError(err).WithField("tab", string(tab)).Warn("Failed to close tab")
		}
	})
}

func (r *Runner) complete(ctx context.Context, search *models.SavedSearch, job *models.ScanJob, candidates []models.Candidate) {
	logger := logging.FromContext(ctx)

	added, err := r.results.Merge(ctx, candidates)
	if err != nil {
		logger.WithError(err).Error("Failed to merge scan results")
	}

	now := time.Now().UTC()
	nextScan := now.Add(search.Cadence())
	if err := r.books.RecordScanResult(ctx, search.ID, now, nextScan, len(candidates)); err != nil {
		logger.WithError(err).Error("Failed to record scan bookkeeping")
	}

	r.events.Append(ctx, types.EventScanCompleted, search.ID,
		fmt.Sprintf("%d candidates, %d new", len(candidates), len(added)))

	logger.WithFields(map[string]interface{}{
		"candidates": len(candidates),
		"new":        len(added),
		"attempt":    job.Attempt,
	}).Info("Scan completed")

	if r.archiver != nil && len(added) > 0 {
		jobID := job.JobID
		archived := make([]models.Candidate, len(added))
		copy(archived, added)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := r.archiver.ArchiveCandidates(ctx, jobID, archived); err != nil {
				r.logger.WithError(err).Warn("Failed to archive scan results")
			}
		}()
	}

	r.maybeNotify(search, added)
}

// maybeNotify fires a high-value notification when any new candidate scores
// past the threshold. Notifications honor the settings toggle and never
// block the job.
func (r *Runner) maybeNotify(search *models.SavedSearch, added []models.Candidate) {
	if r.notifier == nil || r.scorer == nil || len(added) == 0 {
		return
	}
	if !r.books.Settings().NotifyOnNewFinds {
		return
	}

	var best models.Candidate
	bestScore := 0.0
	found := false
	for _, c := range added {
		score := r.scorer.Score(c)
		if score >= r.cfg.HighValueThreshold && (!found || score > bestScore) {
			best = c
			bestScore = score
			found = true
		}
	}
	if found {
		go r.notifier.NotifyHighValue(search, best)
	}
}

func (r *Runner) fail(ctx context.Context, search *models.SavedSearch, reason types.ScanFailureReason, err error) {
	logger := logging.FromContext(ctx)

	r.events.Append(ctx, types.EventScanFailed, search.ID, string(reason))

	logger.WithFields(map[string]interface{}{
		"reason": string(reason),
		"error":  errString(err),
	}).Warn("Scan failed")
}

// failureReason extracts the failure classification from a job error,
// falling back to scan_error for anything uncategorized.
func failureReason(err error) types.ScanFailureReason {
	var cerr *errors.CategorizedError
	if stderrors.As(err, &cerr) {
		if reason, ok := cerr.Details["reason"].(string); ok {
			return types.ScanFailureReason(reason)
		}
	}
	return types.FailScanError
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
