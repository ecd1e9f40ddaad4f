// Package registry owns SavedSearch entities and the singleton
// AutomationSettings. All mutations go through it, and every change that
// affects scheduling is pushed to the scheduler synchronously so the two
// never drift apart.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/deal-scanner/internal/errors"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
	"github.com/google/uuid"
)

// Scheduler is the slice of the scan scheduler the registry drives
type Scheduler interface {
	Register(search *models.SavedSearch)
	Unregister(searchID string)
}

// Registry is the durable CRUD store for saved searches and settings. It
// keeps a working copy in memory and writes through to the durable store;
// each collection is serialized as one object under one key.
type Registry struct {
	store  storage.DurableStore
	logger *logging.Logger

	mu        sync.Mutex
	searches  map[string]*models.SavedSearch
	settings  models.AutomationSettings
	scheduler Scheduler
	degraded  bool
}

// New creates a registry and loads persisted state. If the durable store is
// unreachable the registry comes up with automation disabled instead of
// failing; the service keeps serving and persists again once the store
// recovers.
func New(ctx context.Context, store storage.DurableStore, logger *logging.Logger) *Registry {
	r := &Registry{
		store:    store,
		logger:   logger,
		searches: make(map[string]*models.SavedSearch),
		settings: models.DefaultAutomationSettings(),
	}

	values, err := store.Get(ctx, []string{storage.KeySearches, storage.KeySettings})
	if err != nil {
		logger.WithError(err).Warn("Durable store unavailable at startup, automation disabled")
		r.degraded = true
		return r
	}

	if raw, ok := values[storage.KeySearches]; ok {
		var searches map[string]*models.SavedSearch
		if err := json.Unmarshal(raw, &searches); err != nil {
			logger.WithError(err).Warn("Failed to decode saved searches, starting empty")
		} else {
			r.searches = searches
		}
	}

	if raw, ok := values[storage.KeySettings]; ok {
		var settings models.AutomationSettings
		if err := json.Unmarshal(raw, &settings); err != nil {
			logger.WithError(err).Warn("Failed to decode automation settings, using defaults")
		} else {
			r.settings = settings
		}
	}

	return r
}

// AttachScheduler wires the scheduler in after construction. The registry
// and scheduler reference each other, so one side has to attach late.
func (r *Registry) AttachScheduler(s Scheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduler = s
}

// Degraded reports whether the registry failed to load persisted state
func (r *Registry) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// Create validates and stores a new saved search, registering it with the
// scheduler when enabled.
func (r *Registry) Create(ctx context.Context, search *models.SavedSearch) (*models.SavedSearch, error) {
	if err := search.Validate(); err != nil {
		return nil, errors.NewInvalidInputError("search", err.Error())
	}

	now := time.Now()
	search = search.Clone()
	search.ID = uuid.New().String()
	search.CreatedAt = now
	search.UpdatedAt = now
	search.LastScanned = nil
	search.NextScan = nil
	search.ResultsCount = 0

	r.mu.Lock()
	r.searches[search.ID] = search
	err := r.persistSearchesLocked(ctx)
	scheduler := r.scheduler
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if scheduler != nil && search.Enabled {
		scheduler.Register(search.Clone())
	}

	return search.Clone(), nil
}

// Get returns one saved search by ID
func (r *Registry) Get(id string) (*models.SavedSearch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search, ok := r.searches[id]
	if !ok {
		return nil, errors.NewNotFoundError("saved search", id)
	}
	return search.Clone(), nil
}

// Lookup returns a saved search without the error wrapping, for the scheduler
func (r *Registry) Lookup(id string) (*models.SavedSearch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search, ok := r.searches[id]
	if !ok {
		return nil, false
	}
	return search.Clone(), true
}

// GetAll returns all saved searches
func (r *Registry) GetAll() []*models.SavedSearch {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.SavedSearch, 0, len(r.searches))
	for _, search := range r.searches {
		out = append(out, search.Clone())
	}
	return out
}

// Update replaces the mutable fields of a saved search. Changes to enabled
// or cadence re-register the search with the scheduler before Update
// returns.
func (r *Registry) Update(ctx context.Context, id string, update *models.SavedSearch) (*models.SavedSearch, error) {
	if err := update.Validate(); err != nil {
		return nil, errors.NewInvalidInputError("search", err.Error())
	}

	r.mu.Lock()
	existing, ok := r.searches[id]
	if !ok {
		r.mu.Unlock()
		return nil, errors.NewNotFoundError("saved search", id)
	}

	scheduleChanged := existing.Enabled != update.Enabled ||
		existing.CadenceMinutes != update.CadenceMinutes

	updated := existing.Clone()
	updated.Name = update.Name
	updated.URL = update.URL
	updated.Platform = update.Platform
	updated.Enabled = update.Enabled
	updated.CadenceMinutes = update.CadenceMinutes
	updated.Filters = update.Filters
	updated.UpdatedAt = time.Now()

	r.searches[id] = updated
	err := r.persistSearchesLocked(ctx)
	scheduler := r.scheduler
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if scheduler != nil && scheduleChanged {
		scheduler.Unregister(id)
		if updated.Enabled {
			scheduler.Register(updated.Clone())
		}
	}

	return updated.Clone(), nil
}

// Delete removes a saved search and cancels its timer registration
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.searches[id]; !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("saved search", id)
	}
	delete(r.searches, id)
	err := r.persistSearchesLocked(ctx)
	scheduler := r.scheduler
	r.mu.Unlock()

	if err != nil {
		return err
	}

	if scheduler != nil {
		scheduler.Unregister(id)
	}

	return nil
}

// Settings returns the current automation settings
func (r *Registry) Settings() models.AutomationSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings persists new settings. Flipping the global enabled flag
// registers or unregisters every enabled search synchronously.
func (r *Registry) UpdateSettings(ctx context.Context, settings models.AutomationSettings) error {
	if err := settings.Validate(); err != nil {
		return errors.NewInvalidInputError("settings", err.Error())
	}

	r.mu.Lock()
	wasEnabled := r.settings.Enabled
	r.settings = settings

	raw, err := json.Marshal(settings)
	if err == nil {
		err = r.store.Set(ctx, map[string][]byte{storage.KeySettings: raw})
	}
	if err != nil {
		r.mu.Unlock()
		return errors.NewStoreError("update settings", err)
	}
	r.degraded = false

	var toRegister []*models.SavedSearch
	var toUnregister []string
	if !wasEnabled && settings.Enabled {
		for _, search := range r.searches {
			if search.Enabled {
				toRegister = append(toRegister, search.Clone())
			}
		}
	} else if wasEnabled && !settings.Enabled {
		for id := range r.searches {
			toUnregister = append(toUnregister, id)
		}
	}
	scheduler := r.scheduler
	r.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	for _, search := range toRegister {
		scheduler.Register(search)
	}
	for _, id := range toUnregister {
		scheduler.Unregister(id)
	}

	return nil
}

// RecordScanResult updates a search's scan bookkeeping after a completed
// job. The three fields are written as one serialized object; there is no
// window where only some of them are updated.
func (r *Registry) RecordScanResult(ctx context.Context, id string, scannedAt, nextScan time.Time, resultsCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	search, ok := r.searches[id]
	if !ok {
		return errors.NewNotFoundError("saved search", id)
	}

	search.LastScanned = &scannedAt
	search.NextScan = &nextScan
	search.ResultsCount = resultsCount
	search.UpdatedAt = time.Now()

	return r.persistSearchesLocked(ctx)
}

// persistSearchesLocked writes the whole search collection under one key.
// Callers must hold r.mu.
func (r *Registry) persistSearchesLocked(ctx context.Context) error {
	raw, err := json.Marshal(r.searches)
	if err != nil {
		return errors.NewInternalError("failed to encode saved searches", err)
	}
	if err := r.store.Set(ctx, map[string][]byte{storage.KeySearches: raw}); err != nil {
		return errors.NewStoreError("persist searches", err)
	}
	r.degraded = false
	return nil
}
