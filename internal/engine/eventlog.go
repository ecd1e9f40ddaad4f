package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/deal-scanner/internal/logging"
	"github.com/deal-scanner/internal/models"
	"github.com/deal-scanner/internal/storage"
	"github.com/deal-scanner/internal/types"
)

// EventLog is a bounded, newest-first log of scan lifecycle events backed by
// the durable store. Appends never fail the caller: a persistence error is
// logged and the in-memory log stays authoritative until the next successful
// write.
type EventLog struct {
	store  storage.DurableStore
	logger *logging.Logger
	cap    int

	mu     sync.Mutex
	events []models.EventLogEntry
}

func NewEventLog(ctx context.Context, store storage.DurableStore, cap int, logger *logging.Logger) *EventLog {
	l := &EventLog{
		store:  store,
		logger: logger,
		cap:    cap,
	}

	values, err := store.Get(ctx, []string{storage.KeyEvents})
	if err != nil {
		logger.WithError(err).Warn("Failed to load event log, starting empty")
		return l
	}
	if raw, ok := values[storage.KeyEvents]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &l.events); err != nil {
			logger.WithError(err).Warn("Failed to decode event log, starting empty")
			l.events = nil
		}
	}
	if len(l.events) > cap {
		l.events = l.events[:cap]
	}
	return l
}

// Append records an event. Oldest entries are evicted past the cap.
func (l *EventLog) Append(ctx context.Context, eventType types.EventType, searchID, detail string) {
	entry := models.EventLogEntry{
		Type:      eventType,
		SearchID:  searchID,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append([]models.EventLogEntry{entry}, l.events...)
	if len(l.events) > l.cap {
		l.events = l.events[:l.cap]
	}

	raw, err := json.Marshal(l.events)
	if err != nil {
		l.logger.WithError(err).Error("Failed to encode event log")
		return
	}
	if err := l.store.Set(ctx, map[string][]byte{storage.KeyEvents: raw}); err != nil {
		l.logger.WithError(err).Warn("Failed to persist event log")
	}
}

// Events returns the log newest-first, up to limit entries (0 means all)
func (l *EventLog) Events(limit int) []models.EventLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.EventLogEntry, n)
	copy(out, l.events[:n])
	return out
}
