package purchasekit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/purchasekit/pkg/cache"
	"github.com/dmitrymomot/purchasekit/pkg/entitlement"
	"github.com/dmitrymomot/purchasekit/pkg/keystore"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
	"github.com/dmitrymomot/purchasekit/pkg/receipt"
	"github.com/dmitrymomot/purchasekit/pkg/reconcile"
	"github.com/dmitrymomot/purchasekit/pkg/repository"
	"github.com/dmitrymomot/purchasekit/pkg/store"
	"github.com/dmitrymomot/purchasekit/pkg/trial"
)

type Option func(*Engine)

// WithAggregator enables the billing aggregator fallback for product loading
// and purchase restoration.
func WithAggregator(agg repository.Aggregator) Option {
	return func(e *Engine) { e.agg = agg }
}

// WithLogger attaches a structured logger to every component the engine
// builds. The engine is silent by default.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithTiers registers the application's plan tiers for feature gating.
func WithTiers(tiers []entitlement.Tier) Option {
	return func(e *Engine) { e.tiers = tiers }
}

// WithProductFeatures maps product ids to the features a purchase of that
// product unlocks. Purchases of unmapped products unlock nothing.
func WithProductFeatures(features map[string][]purchase.Feature) Option {
	return func(e *Engine) { e.productFeatures = features }
}

// WithProductCache overrides the product metadata cache the configuration
// would otherwise select.
func WithProductCache(products cache.ProductCache) Option {
	return func(e *Engine) { e.products = products }
}

// Engine is the purchase pipeline facade. Construct it once with New, then
// call operations; the database is opened and migrated lazily on first use.
type Engine struct {
	cfg             Config
	client          repository.StoreClient
	verifier        receipt.Verifier
	agg             repository.Aggregator
	products        cache.ProductCache
	tiers           []entitlement.Tier
	productFeatures map[string][]purchase.Feature
	log             *slog.Logger
	trial           *trial.Calculator

	mu       sync.Mutex
	ready    bool
	inflight chan struct{}
	lastErr  error

	repo       *repository.Repository
	purchases  *store.Store
	reconciler *reconcile.Reconciler
	gate       *entitlement.Gate
}

func New(cfg Config, client repository.StoreClient, keys keystore.Store, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, purchase.NewConfiguration("purchasekit: platform client is required")
	}
	if keys == nil {
		return nil, purchase.NewConfiguration("purchasekit: keystore is required")
	}
	verifier, err := receipt.ForPlatform(cfg.Platform, keys)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		client:   client,
		verifier: verifier,
		log:      slog.New(slog.DiscardHandler),
		trial:    trial.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EnsureConfigured opens the database, runs migrations and wires the
// components. The first successful call is the only one that does work;
// concurrent callers share one in-flight attempt and its outcome, and a
// failed attempt is retried by the next caller.
func (e *Engine) EnsureConfigured(ctx context.Context) error {
	e.mu.Lock()
	if e.ready {
		e.mu.Unlock()
		return nil
	}
	if ch := e.inflight; ch != nil {
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return purchase.NewUnknown("configuration interrupted: " + ctx.Err().Error())
		}
		e.mu.Lock()
		err := e.lastErr
		e.mu.Unlock()
		return err
	}

	ch := make(chan struct{})
	e.inflight = ch
	e.mu.Unlock()

	err := e.configure(ctx)

	e.mu.Lock()
	e.lastErr = err
	e.ready = err == nil
	e.inflight = nil
	e.mu.Unlock()
	close(ch)
	return err
}

func (e *Engine) configure(ctx context.Context) error {
	ttl := e.cfg.ProductCacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	products := e.products
	if products == nil {
		if e.cfg.RedisURL != "" {
			redisCfg := e.cfg.Redis
			redisCfg.ConnectionURL = e.cfg.RedisURL
			client, err := cache.Connect(ctx, redisCfg)
			if err != nil {
				return purchase.NewConfiguration("failed to connect product cache").WithCause(err)
			}
			products = cache.NewRedis(client, cache.WithRedisTTL(ttl))
		} else {
			products = cache.NewMemory(cache.WithTTL(ttl))
		}
	}

	repoOpts := []repository.Option{
		repository.WithProductCache(products),
		repository.WithLogger(e.log),
	}
	if e.agg != nil {
		repoOpts = append(repoOpts, repository.WithAggregator(e.agg))
	}
	repo, err := repository.New(e.cfg.Platform, e.client, e.verifier, repoOpts...)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, e.cfg.Store)
	if err != nil {
		return purchase.NewConfiguration("failed to open purchase database").WithCause(err)
	}
	if err := store.Migrate(ctx, db, e.log); err != nil {
		return purchase.NewConfiguration("failed to migrate purchase database").WithCause(err)
	}
	purchases := store.New(db)

	reconciler, err := reconcile.New(repo, purchases, reconcile.WithLogger(e.log))
	if err != nil {
		return err
	}
	gate, err := entitlement.New(e.tiers, purchases, entitlement.WithLogger(e.log))
	if err != nil {
		return err
	}

	e.repo = repo
	e.purchases = purchases
	e.reconciler = reconciler
	e.gate = gate
	e.log.InfoContext(ctx, "purchase engine configured", "platform", e.cfg.Platform)
	return nil
}

// PurchaseProduct runs the full purchase pipeline: platform purchase flow,
// receipt verification, persistence, feature grants. The returned record
// reflects the verification outcome; a purchase whose receipt fails
// verification is still recorded, just unverified. A purchase the platform
// reports as already owned comes back as PRODUCT_ALREADY_PURCHASED so the
// caller can run its restore flow.
func (e *Engine) PurchaseProduct(ctx context.Context, productID string) (purchase.Purchase, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return purchase.Purchase{}, err
	}

	tx, err := e.repo.LaunchPurchaseFlow(ctx, productID)
	if err != nil {
		return purchase.Purchase{}, err
	}

	verified := false
	if ok, verr := e.repo.VerifyTransaction(ctx, tx); verr != nil {
		e.log.WarnContext(ctx, "receipt verification failed, recording unverified",
			"transaction_id", tx.TransactionID, "error", verr)
	} else {
		verified = ok
	}

	// Pricing is best effort. The transaction itself carries no amount, so a
	// metadata miss records a zero price rather than failing the purchase.
	var price purchase.Money
	if products, perr := e.repo.LoadProductMetadata(ctx, []string{productID}); perr == nil {
		for _, p := range products {
			if p.ID == productID {
				price = p.Price
				break
			}
		}
	} else {
		e.log.DebugContext(ctx, "product metadata unavailable for pricing", "product_id", productID)
	}

	if err := e.purchases.RecordPurchase(ctx, store.NewPurchase{
		TransactionID: tx.TransactionID,
		ProductID:     tx.ProductID,
		PurchasedAt:   tx.PurchaseDate,
		Price:         price,
		Verified:      verified,
	}); err != nil {
		return purchase.Purchase{}, err
	}

	if features := e.productFeatures[productID]; len(features) > 0 {
		if err := e.purchases.GrantFeatures(ctx, tx.TransactionID, features...); err != nil {
			return purchase.Purchase{}, err
		}
	}

	return e.purchases.GetPurchase(ctx, tx.TransactionID)
}

// Reconcile aligns the local datastore with the platform purchase history.
func (e *Engine) Reconcile(ctx context.Context) (reconcile.Result, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return reconcile.Result{}, err
	}
	return e.reconciler.Reconcile(ctx)
}

// LoadProducts loads product metadata through the repository's fallback
// chain.
func (e *Engine) LoadProducts(ctx context.Context, ids []string) ([]purchase.Product, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return nil, err
	}
	return e.repo.LoadProductMetadata(ctx, ids)
}

// RestorePurchases replays past transactions through the billing aggregator.
func (e *Engine) RestorePurchases(ctx context.Context) ([]purchase.Transaction, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return nil, err
	}
	return e.repo.RestorePurchases(ctx)
}

// Allowed reports whether the feature is reachable through the tier or a
// verified purchase. Configuration or datastore failures deny access.
func (e *Engine) Allowed(ctx context.Context, tierID string, feature purchase.Feature) bool {
	if err := e.EnsureConfigured(ctx); err != nil {
		return false
	}
	return e.gate.Allowed(ctx, tierID, feature)
}

// Store exposes the purchase datastore for direct queries.
func (e *Engine) Store(ctx context.Context) (*store.Store, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return nil, err
	}
	return e.purchases, nil
}

// Gate exposes the feature gate for fine-grained entitlement checks.
func (e *Engine) Gate(ctx context.Context) (*entitlement.Gate, error) {
	if err := e.EnsureConfigured(ctx); err != nil {
		return nil, err
	}
	return e.gate, nil
}

// Trial exposes the trial window calculator. It needs no configuration.
func (e *Engine) Trial() *trial.Calculator {
	return e.trial
}
