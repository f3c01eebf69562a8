package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/purchasekit/pkg/cache"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

func sampleProducts() []purchase.Product {
	return []purchase.Product{
		{ID: "premium.monthly", Title: "Premium Monthly", Price: purchase.Money{Amount: 499, Currency: "USD"}},
		{ID: "premium.lifetime", Title: "Premium Lifetime", Price: purchase.Money{Amount: 4999, Currency: "USD"}},
	}
}

func TestMemoryCacheMissWhenEmpty(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	_, ok := c.Get(context.Background(), false)
	assert.False(t, ok)
	_, ok = c.Get(context.Background(), true)
	assert.False(t, ok, "allowStale cannot conjure a snapshot that was never stored")
}

func TestMemoryCacheFreshness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c := cache.NewMemory(cache.WithTTL(24*time.Hour), cache.WithClock(clock))
	c.Put(ctx, sampleProducts())

	got, ok := c.Get(ctx, false)
	require.True(t, ok)
	assert.Equal(t, sampleProducts(), got)

	// Just inside the TTL the snapshot is still fresh.
	now = now.Add(24 * time.Hour)
	_, ok = c.Get(ctx, false)
	assert.True(t, ok)

	// Past the TTL only stale reads see it.
	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, false)
	assert.False(t, ok)

	stale, ok := c.Get(ctx, true)
	require.True(t, ok)
	assert.Equal(t, sampleProducts(), stale)
}

func TestMemoryCacheCopiesSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemory()

	original := sampleProducts()
	c.Put(ctx, original)
	original[0].Title = "mutated"

	got, ok := c.Get(ctx, false)
	require.True(t, ok)
	assert.Equal(t, "Premium Monthly", got[0].Title)
}
