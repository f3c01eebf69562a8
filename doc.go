// Package purchasekit verifies, records and reconciles mobile in-app
// purchases.
//
// The Engine is the single entry point an application wires up: it combines a
// platform purchase capability and an optional billing aggregator behind the
// repository's fallback chain, verifies receipt signatures against key
// material from a secure keystore, persists accepted purchases in an embedded
// SQLite datastore, and keeps that datastore aligned with the platform's
// authoritative purchase history through the reconciler.
//
// Engines are cheap to construct; the expensive part (opening the database
// and running migrations) happens once on first use. EnsureConfigured may be
// called eagerly at startup or left to the first operation, and concurrent
// first calls share a single configuration attempt.
//
// The sub-packages are usable on their own when an application needs only a
// slice of the functionality:
//
//   - pkg/purchase: domain types and the closed error taxonomy
//   - pkg/receipt: per-platform receipt signature verification
//   - pkg/keystore: key material storage for the verifier
//   - pkg/repository: platform capability wrapper with product fallback chain
//   - pkg/store: purchase persistence on SQLite
//   - pkg/cache: product metadata caching, in-memory or Redis
//   - pkg/reconcile: local-versus-platform purchase history reconciliation
//   - pkg/trial: trial window calendar arithmetic
//   - pkg/entitlement: tier and purchase based feature gating
package purchasekit
