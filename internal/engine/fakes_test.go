package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deal-scanner/internal/config"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

// fakeTimerService records registrations and lets tests fire them by hand
type fakeTimerService struct {
	mu        sync.Mutex
	scheduled map[string]TimerOptions
	cancelled []string
}

func newFakeTimerService() *fakeTimerService {
	return &fakeTimerService{scheduled: make(map[string]TimerOptions)}
}

func (f *fakeTimerService) Schedule(name string, opts TimerOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[name] = opts
}

func (f *fakeTimerService) Cancel(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, name)
	f.cancelled = append(f.cancelled, name)
}

func (f *fakeTimerService) options(name string) (TimerOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, ok := f.scheduled[name]
	return opts, ok
}

// fakeSensor reports a fixed idle state
type fakeSensor struct {
	mu    sync.Mutex
	state types.IdleState
}

func (f *fakeSensor) QueryIdleState(time.Duration) types.IdleState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSensor) set(state types.IdleState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

// recordedScan is one RecordScanResult call
type recordedScan struct {
	searchID     string
	scannedAt    time.Time
	nextScan     time.Time
	resultsCount int
}

// fakeDirectory is an in-memory SearchDirectory
type fakeDirectory struct {
	mu       sync.Mutex
	searches map[string]*models.SavedSearch
	settings models.AutomationSettings
	records  []recordedScan
}

func newFakeDirectory(settings models.AutomationSettings, searches ...*models.SavedSearch) *fakeDirectory {
	d := &fakeDirectory{
		searches: make(map[string]*models.SavedSearch),
		settings: settings,
	}
	for _, s := range searches {
		d.searches[s.ID] = s
	}
	return d
}

func (d *fakeDirectory) Lookup(id string) (*models.SavedSearch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.searches[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (d *fakeDirectory) Settings() models.AutomationSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

func (d *fakeDirectory) GetAll() []*models.SavedSearch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.SavedSearch, 0, len(d.searches))
	for _, s := range d.searches {
		out = append(out, s.Clone())
	}
	return out
}

func (d *fakeDirectory) RecordScanResult(_ context.Context, id string, scannedAt, nextScan time.Time, resultsCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, recordedScan{id, scannedAt, nextScan, resultsCount})
	return nil
}

func (d *fakeDirectory) recorded() []recordedScan {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]recordedScan, len(d.records))
	copy(out, d.records)
	return out
}

// fakeDriver is a scripted TabDriver. Any of the error fields short-circuits
// the corresponding step.
type fakeDriver struct {
	mu sync.Mutex

	openErr   error
	loadErr   error
	injectErr error
	scanErr   error
	response  *ScanResponse

	opened int
	closed int
	tabSeq int
}

func (f *fakeDriver) OpenTab(_ context.Context, _ string) (TabHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return "", f.openErr
	}
	f.opened++
	f.tabSeq++
	return TabHandle(fmt.Sprintf("tab-%d", f.tabSeq)), nil
}

func (f *fakeDriver) AwaitLoad(_ context.Context, _ TabHandle, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadErr
}

func (f *fakeDriver) InjectExtractor(_ context.Context, _ TabHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.injectErr
}

func (f *fakeDriver) SendScanCommand(_ context.Context, _ TabHandle, _ ScanPayload, _ time.Duration) (*ScanResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if f.response != nil {
		return f.response, nil
	}
	return &ScanResponse{Success: true}, nil
}

func (f *fakeDriver) CloseTab(_ TabHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeDriver) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeReleaser counts slot releases
type fakeReleaser struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeReleaser) OnJobFinished(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, jobID)
}

func (f *fakeReleaser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

// fakeSubmitter records submitted jobs for scheduler tests
type fakeSubmitter struct {
	mu      sync.Mutex
	jobs    []*models.ScanJob
	nextErr error
}

func (f *fakeSubmitter) Submit(job *models.ScanJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return f.nextErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeSubmitter) submitted() []*models.ScanJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ScanJob, len(f.jobs))
	copy(out, f.jobs)
	return out
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		IdleThreshold:      time.Minute,
		RecheckDelay:       5 * time.Minute,
		FirstFireDelay:     2 * time.Second,
		LoadTimeout:        50 * time.Millisecond,
		ScanTimeout:        50 * time.Millisecond,
		SettleDelay:        time.Millisecond,
		CloseGrace:         time.Millisecond,
		MaxPendingJobs:     100,
		CandidateRetention: 500,
		EventLogCap:        200,
		HighValueThreshold: 100.0,
	}
}

func testSearch(id string, cadenceMinutes int) *models.SavedSearch {
	now := time.Now().UTC()
	return &models.SavedSearch{
		ID:             id,
		Name:           "search " + id,
		URL:            "https://www.ebay.com/sch/i.html?_nkw=gpu",
		Platform:       types.PlatformEbay,
		Enabled:        true,
		CadenceMinutes: cadenceMinutes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
