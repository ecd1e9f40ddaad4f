package engine

import (
	"sync"
	"time"

	"github.com/deal-scanner/internal/types"
)

// PingSensor is an ActivitySensor fed by explicit activity pings, typically
// from the activity endpoint. With no pings recorded yet the user counts as
// idle, so scans are not held back on a fresh start.
type PingSensor struct {
	mu           sync.Mutex
	lastActivity time.Time
	now          func() time.Time
}

func NewPingSensor() *PingSensor {
	return &PingSensor{now: time.Now}
}

// Touch records user activity at the current time
func (s *PingSensor) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}

// LastActivity returns the time of the most recent ping, zero if none
func (s *PingSensor) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// QueryIdleState implements ActivitySensor
func (s *PingSensor) QueryIdleState(threshold time.Duration) types.IdleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastActivity.IsZero() {
		return types.StateIdle
	}
	if s.now().Sub(s.lastActivity) < threshold {
		return types.StateActive
	}
	return types.StateIdle
}
