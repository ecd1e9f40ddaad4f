package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
	"github.com/deal-scanner/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

// schedulerSpy records register/unregister calls
type schedulerSpy struct {
	mu           sync.Mutex
	registered   []string
	unregistered []string
}

func (s *schedulerSpy) Register(search *models.SavedSearch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, search.ID)
}

func (s *schedulerSpy) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregistered = append(s.unregistered, id)
}

func validSearch() *models.SavedSearch {
	return &models.SavedSearch{
		Name:           "gpu deals",
		URL:            "https://www.ebay.com/sch/i.html?_nkw=gpu",
		Platform:       types.PlatformEbay,
		Enabled:        true,
		CadenceMinutes: 30,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryStore, *schedulerSpy) {
	t.Helper()
	store := storage.NewMemoryStore()
	r := New(context.Background(), store, testLogger())
	spy := &schedulerSpy{}
	r.AttachScheduler(spy)
	return r, store, spy
}

func TestCreate_AssignsIDAndRegisters(t *testing.T) {
	r, _, spy := newTestRegistry(t)

	created, err := r.Create(context.Background(), validSearch())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Zero(t, created.ResultsCount)
	assert.Nil(t, created.LastScanned)
	assert.Contains(t, spy.registered, created.ID)
}

func TestCreate_ValidationErrors(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.SavedSearch)
	}{
		{"empty name", func(s *models.SavedSearch) { s.Name = "" }},
		{"relative url", func(s *models.SavedSearch) { s.URL = "/sch/i.html" }},
		{"unknown platform", func(s *models.SavedSearch) { s.Platform = "bonanza" }},
		{"zero cadence", func(s *models.SavedSearch) { s.CadenceMinutes = 0 }},
		{"negative cadence", func(s *models.SavedSearch) { s.CadenceMinutes = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			search := validSearch()
			tt.mutate(search)
			_, err := r.Create(ctx, search)
			assert.Error(t, err)
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestUpdate_CadenceChangeReregisters(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	update := created.Clone()
	update.CadenceMinutes = 60
	updated, err := r.Update(ctx, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, 60, updated.CadenceMinutes)

	assert.Contains(t, spy.unregistered, created.ID)
	// Registered once at create, once after the cadence change
	count := 0
	for _, id := range spy.registered {
		if id == created.ID {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestUpdate_DisableUnregistersWithoutReregistering(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	update := created.Clone()
	update.Enabled = false
	_, err = r.Update(ctx, created.ID, update)
	require.NoError(t, err)

	assert.Contains(t, spy.unregistered, created.ID)
	assert.Len(t, spy.registered, 1, "a disabled search must not be re-registered")
}

func TestUpdate_NameOnlyDoesNotTouchScheduler(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	update := created.Clone()
	update.Name = "renamed"
	_, err = r.Update(ctx, created.ID, update)
	require.NoError(t, err)

	assert.Empty(t, spy.unregistered)
}

func TestDelete_Unregisters(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, created.ID))
	assert.Contains(t, spy.unregistered, created.ID)

	_, err = r.Get(created.ID)
	assert.Error(t, err)
}

func TestDelete_NotFound(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	assert.Error(t, r.Delete(context.Background(), "missing"))
}

func TestUpdateSettings_EnableRegistersAllEnabled(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	enabled, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	disabled := validSearch()
	disabled.Enabled = false
	_, err = r.Create(ctx, disabled)
	require.NoError(t, err)

	settings := models.DefaultAutomationSettings()
	settings.Enabled = true
	require.NoError(t, r.UpdateSettings(ctx, settings))

	// The enabled search is registered once at create and once at the
	// global enable; the disabled one never is.
	count := 0
	for _, id := range spy.registered {
		if id == enabled.ID {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Len(t, spy.registered, 2)
}

func TestUpdateSettings_DisableUnregistersAll(t *testing.T) {
	r, _, spy := newTestRegistry(t)
	ctx := context.Background()

	settings := models.DefaultAutomationSettings()
	settings.Enabled = true
	require.NoError(t, r.UpdateSettings(ctx, settings))

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	settings.Enabled = false
	require.NoError(t, r.UpdateSettings(ctx, settings))

	assert.Contains(t, spy.unregistered, created.ID)
}

func TestUpdateSettings_Validation(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	bad := models.DefaultAutomationSettings()
	bad.MaxTabsOpen = 0
	assert.Error(t, r.UpdateSettings(context.Background(), bad))

	bad = models.DefaultAutomationSettings()
	bad.RetryAttempts = -1
	assert.Error(t, r.UpdateSettings(context.Background(), bad))
}

func TestRecordScanResult_PersistsBookkeeping(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	created, err := r.Create(ctx, validSearch())
	require.NoError(t, err)

	scannedAt := time.Now().UTC()
	nextScan := scannedAt.Add(30 * time.Minute)
	require.NoError(t, r.RecordScanResult(ctx, created.ID, scannedAt, nextScan, 7))

	got, err := r.Get(created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastScanned)
	require.NotNil(t, got.NextScan)
	assert.True(t, got.LastScanned.Equal(scannedAt))
	assert.True(t, got.NextScan.Equal(nextScan))
	assert.Equal(t, 7, got.ResultsCount)

	// A fresh registry loading the same store sees the same bookkeeping
	r2 := New(ctx, store, testLogger())
	again, err := r2.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, again.ResultsCount)
	require.NotNil(t, again.LastScanned)
}

func TestRecordScanResult_UnknownSearch(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	err := r.RecordScanResult(context.Background(), "missing", time.Now(), time.Now(), 0)
	assert.Error(t, err)
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	r1 := New(ctx, store, testLogger())
	created, err := r1.Create(ctx, validSearch())
	require.NoError(t, err)

	settings := models.DefaultAutomationSettings()
	settings.Enabled = true
	settings.MaxTabsOpen = 5
	require.NoError(t, r1.UpdateSettings(ctx, settings))

	r2 := New(ctx, store, testLogger())
	got, err := r2.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, 5, r2.Settings().MaxTabsOpen)
	assert.True(t, r2.Settings().Enabled)
}

// downStore fails every operation
type downStore struct{}

func (downStore) Get(context.Context, []string) (map[string][]byte, error) {
	return nil, errors.New("store down")
}

func (downStore) Set(context.Context, map[string][]byte) error {
	return errors.New("store down")
}

func TestDegradedStartup(t *testing.T) {
	r := New(context.Background(), downStore{}, testLogger())

	assert.True(t, r.Degraded())
	assert.False(t, r.Settings().Enabled, "automation must come up disabled without persisted state")
}

func TestCreate_StoreFailureSurfaces(t *testing.T) {
	r := New(context.Background(), downStore{}, testLogger())
	_, err := r.Create(context.Background(), validSearch())
	assert.Error(t, err)
}
