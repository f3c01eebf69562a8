package repository

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/purchasekit/pkg/cache"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
	"github.com/dmitrymomot/purchasekit/pkg/receipt"
)

// Repository wires the platform capability, the aggregator fallback, the
// product cache and the receipt verifier behind one purchase-flow surface.
type Repository struct {
	platform purchase.Platform
	client   StoreClient
	verifier receipt.Verifier
	agg      Aggregator
	products cache.ProductCache
	log      *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithAggregator enables the billing aggregator fallback.
func WithAggregator(agg Aggregator) Option {
	return func(r *Repository) { r.agg = agg }
}

// WithProductCache replaces the default in-memory product cache.
func WithProductCache(products cache.ProductCache) Option {
	return func(r *Repository) {
		if products != nil {
			r.products = products
		}
	}
}

// WithLogger attaches a structured logger for fallback-chain diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Repository) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Repository for one platform. The client and verifier are
// required; the aggregator is optional and its fallback leg is skipped when
// absent.
func New(platform purchase.Platform, client StoreClient, verifier receipt.Verifier, opts ...Option) (*Repository, error) {
	if !platform.Valid() {
		return nil, purchase.NewConfiguration("unknown purchase platform: " + string(platform))
	}
	if client == nil {
		return nil, purchase.NewConfiguration("platform store client is required")
	}
	if verifier == nil {
		return nil, purchase.NewConfiguration("receipt verifier is required")
	}

	r := &Repository{
		platform: platform,
		client:   client,
		verifier: verifier,
		products: cache.NewMemory(),
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Platform returns the platform tag this repository was built for.
func (r *Repository) Platform() purchase.Platform { return r.platform }

// LoadProductMetadata loads product metadata through the layered fallback
// chain. A successful load from any leg refreshes the cache.
func (r *Repository) LoadProductMetadata(ctx context.Context, ids []string) ([]purchase.Product, error) {
	if len(ids) == 0 {
		return nil, purchase.NewInvalidInput("at least one product id is required")
	}

	products, err := r.client.LoadProducts(ctx, ids)
	if err == nil {
		r.products.Put(ctx, products)
		return products, nil
	}

	mapped := r.mapClientError(err)
	r.log.DebugContext(ctx, "platform product load failed",
		"platform", r.platform, "code", mapped.Code, "retryable", mapped.Retryable)

	// Transient store-front failures are served from a fresh cache before
	// bothering the aggregator.
	if mapped.Retryable {
		if cached, ok := r.products.Get(ctx, false); ok {
			return cached, nil
		}
	}

	if r.agg != nil {
		offerings, aggErr := r.agg.GetOfferings(ctx)
		if aggErr == nil {
			deduped := dedupeProducts(offerings)
			r.products.Put(ctx, deduped)
			return deduped, nil
		}
		r.log.DebugContext(ctx, "aggregator offerings failed",
			"code", r.mapAggregatorError(aggErr).Code)
	}

	// Last resort: any snapshot at all, stale included. Users must see some
	// pricing even offline.
	if cached, ok := r.products.Get(ctx, true); ok {
		r.log.DebugContext(ctx, "serving stale product cache")
		return cached, nil
	}

	return nil, mapped
}

// dedupeProducts drops repeated product ids, keeping the first occurrence.
func dedupeProducts(products []purchase.Product) []purchase.Product {
	seen := make(map[string]struct{}, len(products))
	result := make([]purchase.Product, 0, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		result = append(result, p)
	}
	return result
}

// LaunchPurchaseFlow starts the platform purchase flow for one product and
// validates the returned transaction before anyone trusts it. A malformed
// transaction is a PURCHASE_INVALID with reason not_signed, never a generic
// error.
func (r *Repository) LaunchPurchaseFlow(ctx context.Context, productID string) (purchase.Transaction, error) {
	if productID == "" {
		return purchase.Transaction{}, purchase.NewInvalidInput("productId must not be empty")
	}

	tx, err := r.client.LaunchPurchaseFlow(ctx, productID)
	if err != nil {
		return purchase.Transaction{}, r.mapClientError(err)
	}

	if tx.TransactionID == "" || tx.ReceiptData == "" {
		return purchase.Transaction{}, purchase.NewInvalid(purchase.ReasonNotSigned,
			"platform returned a malformed transaction for product %s", productID)
	}

	return tx, nil
}

// RequestAllPurchaseHistory fetches the platform's authoritative transaction
// history. No purchases is an empty slice, not an error.
func (r *Repository) RequestAllPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error) {
	history, err := r.client.RequestPurchaseHistory(ctx)
	if err != nil {
		return nil, r.mapClientError(err)
	}
	if history == nil {
		history = []purchase.Transaction{}
	}
	return history, nil
}

// VerifyTransaction delegates to the platform's receipt verifier.
func (r *Repository) VerifyTransaction(ctx context.Context, tx purchase.Transaction) (bool, error) {
	return r.verifier.Verify(ctx, tx)
}

// RestorePurchases asks the aggregator to restore prior purchases, used by
// the caller layer after a PRODUCT_ALREADY_PURCHASED outcome.
func (r *Repository) RestorePurchases(ctx context.Context) ([]purchase.Transaction, error) {
	if r.agg == nil {
		return nil, purchase.NewConfiguration("billing aggregator is not configured")
	}
	restored, err := r.agg.RestorePurchases(ctx)
	if err != nil {
		return nil, r.mapAggregatorError(err)
	}
	return restored, nil
}

// CustomerInfo returns the aggregator's entitlement view of the customer.
func (r *Repository) CustomerInfo(ctx context.Context) (CustomerInfo, error) {
	if r.agg == nil {
		return CustomerInfo{}, purchase.NewConfiguration("billing aggregator is not configured")
	}
	info, err := r.agg.GetCustomerInfo(ctx)
	if err != nil {
		return CustomerInfo{}, r.mapAggregatorError(err)
	}
	return info, nil
}
