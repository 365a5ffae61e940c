package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_RecordIsAsync(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil, discardLogger())

	rec.Record(context.Background(), Request{ServiceTypeID: "st1", Duration: time.Second, SlotsReturned: 4})
	rec.Drain()

	rows, err := store.ListRequestsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotEmpty(t, rows[0].ID, "an id is assigned when missing")
	require.False(t, rows[0].CreatedAt.IsZero())
}

type failingStore struct {
	MemoryStore
	mu    sync.Mutex
	calls int
}

func (s *failingStore) InsertRequest(context.Context, Request) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("db down")
}

func TestRecorder_StoreFailureIsSwallowed(t *testing.T) {
	store := &failingStore{}
	rec := NewRecorder(store, nil, discardLogger())

	// Must not panic or surface the error to the caller.
	rec.Record(context.Background(), Request{ServiceTypeID: "st1"})
	rec.Drain()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, 1, store.calls)
}

func TestRecorder_StatsWindow(t *testing.T) {
	store := NewMemoryStore()
	rec := NewRecorder(store, nil, discardLogger())
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return now }

	old := Request{ID: "old", ServiceTypeID: "st1", Duration: time.Second, CreatedAt: now.AddDate(0, 0, -10)}
	fresh := Request{ID: "fresh", ServiceTypeID: "st1", Duration: 3 * time.Second, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, store.InsertRequest(context.Background(), old))
	require.NoError(t, store.InsertRequest(context.Background(), fresh))

	stats, err := rec.Stats(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalRequests)
	require.Equal(t, 1, stats.SlowRequests)
}

func TestMemoryStore_DeleteBefore(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.InsertRequest(context.Background(), Request{ID: "a", CreatedAt: now.AddDate(0, 0, -100)}))
	require.NoError(t, store.InsertRequest(context.Background(), Request{ID: "b", CreatedAt: now}))

	deleted, err := store.DeleteRequestsBefore(context.Background(), now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	rows, err := store.ListRequestsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "b", rows[0].ID)
}
