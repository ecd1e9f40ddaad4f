package engine

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deal-scanner/internal/logging"
)

// CronTimerService implements the TimerService port on top of robfig/cron.
// Periodic registrations become cron entries; one-shot delays are plain
// timers. Cron evaluates schedules against the wall clock, so a fire whose
// due time passed during a suspend is delivered on the next tick after
// resume.
type CronTimerService struct {
	handler TimerHandler
	logger  *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*timerEntry
	started bool
}

type timerEntry struct {
	entryID  cron.EntryID
	hasEntry bool
	oneshot  *time.Timer
}

// NewCronTimerService creates a timer service delivering fires to handler.
// Fires arrive on cron and timer goroutines; the handler must be safe for
// concurrent calls.
func NewCronTimerService(handler TimerHandler, logger *logging.Logger) *CronTimerService {
	return &CronTimerService{
		handler: handler,
		logger:  logger,
		cron:    cron.New(),
		entries: make(map[string]*timerEntry),
	}
}

// Start begins delivering timer fires
func (t *CronTimerService) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}
	t.cron.Start()
	t.started = true
}

// Stop cancels every registration and stops the cron runner
func (t *CronTimerService) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name := range t.entries {
		t.cancelLocked(name)
	}
	t.cron.Stop()
	t.started = false
}

// Schedule implements TimerService. An existing registration under the same
// name is replaced.
func (t *CronTimerService) Schedule(name string, opts TimerOptions) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked(name)

	entry := &timerEntry{}

	if opts.Period > 0 {
		entry.entryID = t.cron.Schedule(cron.Every(opts.Period), cron.FuncJob(func() {
			t.handler(name)
		}))
		entry.hasEntry = true
	}

	if opts.Delay > 0 {
		entry.oneshot = time.AfterFunc(opts.Delay, func() {
			t.handler(name)
		})
	}

	if !entry.hasEntry && entry.oneshot == nil {
		t.logger.WithField("timer", name).Warn("Timer scheduled with neither delay nor period, ignoring")
		return
	}

	t.entries[name] = entry
}

// Cancel implements TimerService
func (t *CronTimerService) Cancel(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked(name)
}

// cancelLocked removes a registration. Callers must hold t.mu.
func (t *CronTimerService) cancelLocked(name string) {
	entry, ok := t.entries[name]
	if !ok {
		return
	}
	if entry.hasEntry {
		t.cron.Remove(entry.entryID)
	}
	if entry.oneshot != nil {
		entry.oneshot.Stop()
	}
	delete(t.entries, name)
}
