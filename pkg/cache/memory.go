package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// Memory is a thread-safe in-process ProductCache.
type Memory struct {
	mu   sync.RWMutex
	snap *snapshot
	ttl  time.Duration
	now  func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithTTL overrides the default freshness window.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces the wall clock, mainly for deterministic tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty in-memory cache with the default TTL.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		ttl: DefaultTTL,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, allowStale bool) ([]purchase.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snap == nil {
		return nil, false
	}
	if !allowStale && !m.snap.fresh(m.now(), m.ttl) {
		return nil, false
	}
	return slices.Clone(m.snap.Products), true
}

func (m *Memory) Put(ctx context.Context, products []purchase.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snap = &snapshot{
		Products: slices.Clone(products),
		StoredAt: m.now(),
	}
}
