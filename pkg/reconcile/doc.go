// Package reconcile aligns the local purchase datastore with the platform's
// purchase history.
//
// The platform is authoritative for existence: transactions present upstream
// but missing locally are recorded, local records absent upstream are removed,
// and records present on both sides are marked synced. Local mutable fields
// such as verification status and pricing are never overwritten; a record
// either exists in the platform snapshot or it does not.
//
// A run reads both snapshots before issuing any writes, so concurrent
// purchases that land mid-run are picked up by the next run rather than
// corrupting the current one. Individual write failures are counted in
// Result.FailedOperations and never abort the run; only snapshot queries are
// fatal, and their errors pass through untouched so callers keep the original
// error code and retryability.
package reconcile
