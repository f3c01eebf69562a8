// Package cache keeps the last successfully loaded product metadata snapshot
// so pricing stays available while the store fronts are unreachable.
//
// A snapshot is fresh for a fixed TTL (24 hours by default). The repository's
// fallback chain reads fresh snapshots on its early legs and may accept a
// stale one only as the last resort, which is why Get takes an allowStale
// flag instead of silently dropping expired data.
//
// Two implementations are provided: Memory for a single process, and Redis
// for apps that already carry a Redis connection. Both store the snapshot
// write time alongside the data so freshness is decided by the reader.
package cache
