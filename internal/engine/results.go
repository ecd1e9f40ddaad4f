package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/deal-scanner/internal/errors"
	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
)

// ResultStore holds the deduplicated candidate window. All mutation goes
// through Merge, which serializes the read-modify-write so concurrent scan
// completions cannot lose each other's candidates.
type ResultStore struct {
	store     storage.DurableStore
	logger    *logging.Logger
	retention int

	mu         sync.Mutex
	candidates []models.Candidate
}

func NewResultStore(ctx context.Context, store storage.DurableStore, retention int, logger *logging.Logger) *ResultStore {
	r := &ResultStore{
		store:     store,
		logger:    logger,
		retention: retention,
	}

	values, err := store.Get(ctx, []string{storage.KeyCandidates})
	if err != nil {
		logger.WithError(err).Warn("Failed to load candidates, starting empty")
		return r
	}
	if raw, ok := values[storage.KeyCandidates]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.candidates); err != nil {
			logger.WithError(err).Warn("Failed to decode candidates, starting empty")
			r.candidates = nil
		}
	}
	if len(r.candidates) > retention {
		r.candidates = r.candidates[:retention]
	}
	return r
}

// Merge folds a scan's candidates into the window. Candidates whose source
// ID already appears in the window, or earlier in the same batch, are
// dropped. New candidates are prepended newest-first and the window is
// trimmed to the retention cap. Returns the candidates actually added.
func (r *ResultStore) Merge(ctx context.Context, incoming []models.Candidate) ([]models.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.candidates))
	for _, c := range r.candidates {
		seen[c.ID] = struct{}{}
	}

	var added []models.Candidate
	for _, c := range incoming {
		if c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		added = append(added, c)
	}
	if len(added) == 0 {
		return nil, nil
	}

	merged := make([]models.Candidate, 0, len(added)+len(r.candidates))
	merged = append(merged, added...)
	merged = append(merged, r.candidates...)
	if len(merged) > r.retention {
		merged = merged[:r.retention]
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.NewInternalError("failed to encode candidates", err)
	}
	if err := r.store.Set(ctx, map[string][]byte{storage.KeyCandidates: raw}); err != nil {
		return nil, errors.NewStoreError("persist candidates", err)
	}

	r.candidates = merged
	return added, nil
}

// Candidates returns the window newest-first, optionally filtered by search
// ID, up to limit entries (0 means all).
func (r *ResultStore) Candidates(searchID string, limit int) []models.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		if searchID != "" && c.SearchID != searchID {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Size returns the current window size
func (r *ResultStore) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.candidates)
}
