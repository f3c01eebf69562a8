package cache

import (
	"context"
	"time"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// DefaultTTL is how long a product snapshot counts as fresh.
const DefaultTTL = 24 * time.Hour

// ProductCache stores one product metadata snapshot at a time. Get reports
// whether a snapshot was found; expired snapshots are returned only when
// allowStale is set.
type ProductCache interface {
	Get(ctx context.Context, allowStale bool) ([]purchase.Product, bool)
	Put(ctx context.Context, products []purchase.Product)
}

// snapshot pairs the cached products with their write time so freshness is
// computed on read, independent of the backing store's own expiry.
type snapshot struct {
	Products []purchase.Product `json:"products"`
	StoredAt time.Time          `json:"stored_at"`
}

func (s snapshot) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.StoredAt) <= ttl
}
