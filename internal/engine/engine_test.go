package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
	"github.com/deal-scanner/internal/types"
)

func TestEngine_EndToEndScan(t *testing.T) {
	cfg := testEngineConfig()
	cfg.FirstFireDelay = 10 * time.Millisecond

	search := testSearch("s1", 30)
	dir := newFakeDirectory(models.AutomationSettings{
		Enabled:              true,
		MaxTabsOpen:          2,
		CloseTabsAfterScan:   true,
		PauseDuringActiveUse: true,
	}, search)
	driver := &fakeDriver{
		response: &ScanResponse{
			Success:    true,
			Candidates: []models.Candidate{{ID: "c1", Title: "gpu", Price: 250}},
		},
	}
	sensor := NewPingSensor() // no pings recorded, user is idle

	eng := New(context.Background(), cfg, dir, sensor, driver, storage.NewMemoryStore(), testLogger(), Options{})
	eng.Start()
	defer eng.Stop()

	// The near-immediate first fire drives a full scan
	assert.Eventually(t, func() bool {
		return len(eng.Candidates("", 0)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		events := eng.Events(0)
		return len(events) >= 2 && events[0].Type == types.EventScanCompleted
	}, 5*time.Second, 10*time.Millisecond)

	records := dir.recorded()
	require.NotEmpty(t, records)
	assert.Equal(t, "s1", records[0].searchID)
}

func TestEngine_StartWithAutomationDisabled(t *testing.T) {
	cfg := testEngineConfig()
	cfg.FirstFireDelay = 10 * time.Millisecond

	search := testSearch("s1", 30)
	dir := newFakeDirectory(models.AutomationSettings{Enabled: false, MaxTabsOpen: 2}, search)
	driver := &fakeDriver{}
	sensor := NewPingSensor()

	eng := New(context.Background(), cfg, dir, sensor, driver, storage.NewMemoryStore(), testLogger(), Options{})
	eng.Start()
	defer eng.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, eng.Events(0))
	assert.Empty(t, eng.Candidates("", 0))
}

func TestEngine_Status(t *testing.T) {
	cfg := testEngineConfig()
	dir := newFakeDirectory(models.AutomationSettings{Enabled: true, MaxTabsOpen: 2})
	sensor := NewPingSensor()
	sensor.Touch()

	eng := New(context.Background(), cfg, dir, sensor, &fakeDriver{}, storage.NewMemoryStore(), testLogger(), Options{})

	status := eng.Status()
	assert.True(t, status.AutomationEnabled)
	assert.Equal(t, types.StateActive, status.IdleState)
	assert.Equal(t, 0, status.JobsInFlight)
	assert.Equal(t, 0, status.JobsPending)
	assert.Equal(t, 0, status.CandidatesHeld)
}

func TestEngine_ManualTriggerWhileActive(t *testing.T) {
	cfg := testEngineConfig()
	search := testSearch("s1", 30)
	dir := newFakeDirectory(models.AutomationSettings{
		Enabled:              true,
		MaxTabsOpen:          2,
		PauseDuringActiveUse: true,
	}, search)
	driver := &fakeDriver{
		response: &ScanResponse{Success: true, Candidates: []models.Candidate{{ID: "c1"}}},
	}
	sensor := NewPingSensor()
	sensor.Touch() // user is active; scheduled scans would defer

	eng := New(context.Background(), cfg, dir, sensor, driver, storage.NewMemoryStore(), testLogger(), Options{})
	eng.Start()
	defer eng.Stop()

	job, err := eng.Scheduler().TriggerNow("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", job.SearchID)

	assert.Eventually(t, func() bool {
		return len(eng.Candidates("", 0)) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
