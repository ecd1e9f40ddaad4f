package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deal-scanner/internal/storage"
	"github.com/deal-scanner/internal/types"
)

func TestEventLog_AppendNewestFirst(t *testing.T) {
	l := NewEventLog(context.Background(), storage.NewMemoryStore(), 200, testLogger())
	ctx := context.Background()

	l.Append(ctx, types.EventScanStarted, "s1", "")
	l.Append(ctx, types.EventScanCompleted, "s1", "3 candidates")

	events := l.Events(0)
	require.Len(t, events, 2)
	assert.Equal(t, types.EventScanCompleted, events[0].Type)
	assert.Equal(t, types.EventScanStarted, events[1].Type)
}

func TestEventLog_CapEvictsOldest(t *testing.T) {
	l := NewEventLog(context.Background(), storage.NewMemoryStore(), 5, testLogger())
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		l.Append(ctx, types.EventScanStarted, fmt.Sprintf("s%d", i), "")
	}

	events := l.Events(0)
	require.Len(t, events, 5)
	assert.Equal(t, "s7", events[0].SearchID)
	assert.Equal(t, "s3", events[4].SearchID)
}

func TestEventLog_Limit(t *testing.T) {
	l := NewEventLog(context.Background(), storage.NewMemoryStore(), 200, testLogger())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Append(ctx, types.EventScanStarted, "s1", "")
	}

	assert.Len(t, l.Events(2), 2)
	assert.Len(t, l.Events(0), 4)
}

func TestEventLog_ReloadsPersistedEvents(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	l1 := NewEventLog(ctx, store, 200, testLogger())
	l1.Append(ctx, types.EventScanFailed, "s1", "load_timeout")

	l2 := NewEventLog(ctx, store, 200, testLogger())
	events := l2.Events(0)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventScanFailed, events[0].Type)
}

// failingStore rejects every write
type failingStore struct{}

func (failingStore) Get(context.Context, []string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}

func (failingStore) Set(context.Context, map[string][]byte) error {
	return errors.New("store down")
}

func TestEventLog_PersistFailureDoesNotPropagate(t *testing.T) {
	l := NewEventLog(context.Background(), failingStore{}, 200, testLogger())
	ctx := context.Background()

	l.Append(ctx, types.EventScanStarted, "s1", "")

	// The in-memory log stays authoritative
	assert.Len(t, l.Events(0), 1)
}
