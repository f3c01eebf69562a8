package reconcile

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
	"github.com/dmitrymomot/purchasekit/pkg/store"
)

// HistorySource provides the platform-side purchase snapshot. Satisfied by
// repository.Repository.
type HistorySource interface {
	RequestAllPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error)
}

// PurchaseStore is the slice of the datastore the reconciler writes through.
// Satisfied by store.Store.
type PurchaseStore interface {
	GetAllPurchases(ctx context.Context) ([]purchase.Purchase, error)
	RecordPurchase(ctx context.Context, p store.NewPurchase) error
	UpdateSyncStatus(ctx context.Context, transactionID string, synced bool) error
	DeletePurchase(ctx context.Context, transactionID string) error
}

// Result summarizes one reconciliation run. FailedOperations counts individual
// writes that did not land; it is informational, not an error signal.
type Result struct {
	NewCount         int
	UpdatedCount     int
	DeletedCount     int
	FailedOperations int
}

type Option func(*Reconciler)

// WithLogger attaches a structured logger. Reconciliation is silent by
// default.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) { r.log = log }
}

// Reconciler diffs the platform purchase history against the local datastore
// and applies the difference.
type Reconciler struct {
	history HistorySource
	store   PurchaseStore
	log     *slog.Logger
}

func New(history HistorySource, purchases PurchaseStore, opts ...Option) (*Reconciler, error) {
	if history == nil {
		return nil, purchase.NewConfiguration("reconcile: history source is required")
	}
	if purchases == nil {
		return nil, purchase.NewConfiguration("reconcile: purchase store is required")
	}

	r := &Reconciler{
		history: history,
		store:   purchases,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Reconcile runs one full read-then-diff-then-write pass. Snapshot query
// failures abort the run with the upstream error; per-record write failures
// are tallied and the run continues.
func (r *Reconciler) Reconcile(ctx context.Context) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Result{}
			err = purchase.FromAny(rec)
			r.log.ErrorContext(ctx, "reconciliation panicked", "error", err)
		}
	}()

	local, err := r.store.GetAllPurchases(ctx)
	if err != nil {
		return Result{}, err
	}
	remote, err := r.history.RequestAllPurchaseHistory(ctx)
	if err != nil {
		return Result{}, err
	}

	localByID := make(map[string]purchase.Purchase, len(local))
	for _, p := range local {
		localByID[p.TransactionID] = p
	}

	seen := make(map[string]struct{}, len(remote))
	for _, tx := range remote {
		if _, dup := seen[tx.TransactionID]; dup {
			continue
		}
		seen[tx.TransactionID] = struct{}{}

		if existing, exists := localByID[tx.TransactionID]; exists {
			// Already-synced records need no write, which keeps a converged
			// state at zero counts on repeat runs.
			if existing.Synced {
				continue
			}
			if markErr := r.store.UpdateSyncStatus(ctx, tx.TransactionID, true); markErr != nil {
				result.FailedOperations++
				r.log.WarnContext(ctx, "failed to mark purchase synced",
					"transaction_id", tx.TransactionID, "error", markErr)
				continue
			}
			result.UpdatedCount++
			continue
		}

		if valErr := tx.Validate(); valErr != nil {
			result.FailedOperations++
			r.log.WarnContext(ctx, "skipping malformed platform transaction",
				"transaction_id", tx.TransactionID, "error", valErr)
			continue
		}

		// History entries carry no pricing and have not been through receipt
		// verification, so they land unverified with a zero price until a
		// verification pass says otherwise.
		recordErr := r.store.RecordPurchase(ctx, store.NewPurchase{
			TransactionID: tx.TransactionID,
			ProductID:     tx.ProductID,
			PurchasedAt:   tx.PurchaseDate,
			Verified:      false,
		})
		if recordErr != nil {
			result.FailedOperations++
			r.log.WarnContext(ctx, "failed to record platform purchase",
				"transaction_id", tx.TransactionID, "error", recordErr)
			continue
		}
		result.NewCount++

		// The record came straight from the platform, so it starts out synced.
		if markErr := r.store.UpdateSyncStatus(ctx, tx.TransactionID, true); markErr != nil {
			result.FailedOperations++
			r.log.WarnContext(ctx, "failed to mark new purchase synced",
				"transaction_id", tx.TransactionID, "error", markErr)
		}
	}

	for _, p := range local {
		if _, exists := seen[p.TransactionID]; exists {
			continue
		}
		if delErr := r.store.DeletePurchase(ctx, p.TransactionID); delErr != nil {
			result.FailedOperations++
			r.log.WarnContext(ctx, "failed to delete orphaned purchase",
				"transaction_id", p.TransactionID, "error", delErr)
			continue
		}
		result.DeletedCount++
	}

	r.log.InfoContext(ctx, "reconciliation complete",
		"new", result.NewCount, "updated", result.UpdatedCount,
		"deleted", result.DeletedCount, "failed", result.FailedOperations)
	return result, nil
}
