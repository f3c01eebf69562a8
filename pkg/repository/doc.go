// Package repository orchestrates the platform purchase flow: loading
// product metadata, launching purchases, fetching purchase history and
// delegating receipt verification.
//
// The platform purchase capability and the third-party billing aggregator
// are consumed strictly through interfaces; their tagged failures are decoded
// at this boundary into the closed purchase error taxonomy, so nothing above
// the repository ever handles a platform-specific error shape.
//
// Product metadata loading is a layered fallback chain: the platform store
// front first, then a fresh local cache when the failure looks transient,
// then the aggregator's offerings (deduplicated by product id, first
// occurrence wins), and finally the cache once more with stale snapshots
// allowed. Store availability is intermittent and users must see some
// pricing even offline.
package repository
