// Package store persists purchase records in the embedded SQLite datastore
// and owns their state transitions.
//
// The schema lives in embedded goose migrations: a purchases table keyed by a
// surrogate UUID with a unique transaction_id, and a purchase_features
// junction with a unique (purchase_id, feature_id) pair and cascade delete.
// Uniqueness is enforced by the datastore, not re-checked in code; a
// unique-constraint violation on transaction_id surfaces as a retryable
// DB_ERROR because concurrent-write races are expected and should be retried.
//
// Every operation takes a context, validates its inputs up front
// (INVALID_INPUT, non-retryable) and reclassifies datastore failures into the
// purchase error taxonomy, so callers never see a raw driver error.
package store
