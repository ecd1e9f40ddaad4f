// Package engine implements the automated scan scheduling and execution
// engine: deciding when a saved search runs, whether it is safe to run now,
// how many scans run concurrently, and how one scan is driven from tab open
// to teardown. All host-specific behavior (timers, idle detection, browser
// automation, notifications) sits behind the ports in this file, so the
// engine is fully testable with fakes.
package engine

import (
	"context"
	"time"

	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/types"
)

// TimerOptions selects the firing behavior of a named timer. Delay schedules
// a single fire after the given duration; Period schedules repeated fires.
// Both may be set: the delay acts as the near-immediate first fire while the
// period carries the cadence.
type TimerOptions struct {
	Delay  time.Duration
	Period time.Duration
}

// TimerHandler receives timer fires by name
type TimerHandler func(name string)

// TimerService is the periodic timer port. Scheduling a name that already
// exists replaces the previous registration. Implementations must schedule
// against the wall clock so a fire whose due time passed while the process
// was suspended is delivered on resume.
type TimerService interface {
	Schedule(name string, opts TimerOptions)
	Cancel(name string)
}

// ActivitySensor is the user activity port
type ActivitySensor interface {
	// QueryIdleState reports whether the user has been inactive for at
	// least the given threshold.
	QueryIdleState(threshold time.Duration) types.IdleState
}

// TabHandle identifies an open automation tab
type TabHandle string

// ScanPayload is the command sent to an injected field extractor
type ScanPayload struct {
	SearchID   string                 `json:"searchId"`
	SearchName string                 `json:"searchName"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
}

// ScanResponse is what the extractor reports back
type ScanResponse struct {
	Success    bool               `json:"success"`
	Candidates []models.Candidate `json:"candidates,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// TabDriver is the browser automation port. Each method is one suspension
// point of a scan job and carries its own timeout; the driver never blocks
// past the context or the explicit timeout it is given.
type TabDriver interface {
	OpenTab(ctx context.Context, url string) (TabHandle, error)
	AwaitLoad(ctx context.Context, tab TabHandle, timeout time.Duration) error
	InjectExtractor(ctx context.Context, tab TabHandle) error
	SendScanCommand(ctx context.Context, tab TabHandle, payload ScanPayload, timeout time.Duration) (*ScanResponse, error)
	CloseTab(tab TabHandle) error
}

// Notifier is the notification port. Fire-and-forget; the engine never
// waits on or checks delivery.
type Notifier interface {
	NotifyHighValue(search *models.SavedSearch, best models.Candidate)
}

// Scorer assigns a value score to a candidate. Valuation is external to the
// engine; candidates arrive already scored or are scored by whatever is
// plugged in here.
type Scorer interface {
	Score(candidate models.Candidate) float64
}

// ScoreFunc adapts a plain function to the Scorer interface
type ScoreFunc func(candidate models.Candidate) float64

// Score implements Scorer
func (f ScoreFunc) Score(candidate models.Candidate) float64 {
	return f(candidate)
}

// Archiver receives completed scan batches for analytical storage. Optional;
// the engine works without one.
type Archiver interface {
	ArchiveCandidates(ctx context.Context, jobID string, candidates []models.Candidate) error
}
