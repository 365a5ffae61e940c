package slotcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type memoryEntry struct {
	slots   []model.Slot
	expires time.Time
}

// Memory is the in-process cache backend. A generation counter implements
// InvalidateAll in O(1): entries written under an older generation are
// unreachable, and a compute that started before an invalidation is never
// stored under the new generation.
type Memory struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	gen     uint64
	entries map[string]memoryEntry
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithNow injects the clock, for tests.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) ([]model.Slot, bool, error) {
	k := key.String()
	if slots, ok := m.lookup(k); ok {
		return slots, true, nil
	}

	m.mu.RLock()
	startGen := m.gen
	m.mu.RUnlock()

	// The flight is keyed by generation so a caller arriving after an
	// invalidation never joins a compute whose ledger read predates it.
	flightKey := fmt.Sprintf("%d:%s", startGen, k)
	v, err, _ := m.group.Do(flightKey, func() (any, error) {
		// Another waiter may have stored the entry while we queued.
		if slots, ok := m.lookup(k); ok {
			return slots, nil
		}
		slots, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.store(k, startGen, slots)
		return slots, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]model.Slot), false, nil
}

func (m *Memory) InvalidateAll(context.Context) error {
	m.mu.Lock()
	m.gen++
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) lookup(k string) ([]model.Slot, bool) {
	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return nil, false
	}
	return e.slots, true
}

// store drops the result if InvalidateAll ran since the compute started.
func (m *Memory) store(k string, startGen uint64, slots []model.Slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != startGen {
		return
	}
	m.entries[k] = memoryEntry{slots: slots, expires: m.now().Add(m.ttl)}
}
