// Package entitlement answers "may this user use this feature" from two
// sources: the static feature list of the user's tier, and verified purchases
// recorded in the local datastore. Boolean checks fail closed, so a datastore
// failure denies access rather than granting it.
package entitlement

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// Tier is a named plan with a fixed feature set. TrialDays is the trial
// window length granted on this tier, zero meaning no trial.
type Tier struct {
	ID        string
	Name      string
	Features  []purchase.Feature
	TrialDays int
}

func (t Tier) hasFeature(feature purchase.Feature) bool {
	for _, f := range t.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// PurchaseQuery is the datastore slice the gate reads. Satisfied by
// store.Store.
type PurchaseQuery interface {
	GetPurchasesByFeature(ctx context.Context, featureID string) ([]purchase.Purchase, error)
}

type Option func(*Gate)

// WithLogger attaches a structured logger. The gate is silent by default.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// Gate resolves feature access from tier membership and purchase records.
type Gate struct {
	tiers     map[string]Tier
	purchases PurchaseQuery
	log       *slog.Logger
}

func New(tiers []Tier, purchases PurchaseQuery, opts ...Option) (*Gate, error) {
	if purchases == nil {
		return nil, purchase.NewConfiguration("entitlement: purchase query is required")
	}

	byID := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		if t.ID == "" {
			return nil, purchase.NewConfiguration("entitlement: tier id must not be empty")
		}
		if _, dup := byID[t.ID]; dup {
			return nil, purchase.NewConfiguration("entitlement: duplicate tier id " + t.ID)
		}
		byID[t.ID] = t
	}

	g := &Gate{
		tiers:     byID,
		purchases: purchases,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Tier returns the tier definition for the given id.
func (g *Gate) Tier(tierID string) (Tier, bool) {
	t, ok := g.tiers[tierID]
	return t, ok
}

// HasFeature reports whether the tier's static feature set includes the
// feature. Unknown tiers have no features.
func (g *Gate) HasFeature(tierID string, feature purchase.Feature) bool {
	t, ok := g.tiers[tierID]
	return ok && t.hasFeature(feature)
}

// IsUnlocked reports whether any verified purchase grants the feature.
// Unverified purchases do not count even when the feature mapping exists.
func (g *Gate) IsUnlocked(ctx context.Context, feature purchase.Feature) (bool, error) {
	if feature == "" {
		return false, purchase.NewInvalidInput("feature id must not be empty")
	}

	records, err := g.purchases.GetPurchasesByFeature(ctx, string(feature))
	if err != nil {
		return false, err
	}
	for _, p := range records {
		if p.Verified {
			return true, nil
		}
	}
	return false, nil
}

// Allowed reports whether the feature is reachable through the tier or
// through a verified purchase. Datastore failures deny access.
func (g *Gate) Allowed(ctx context.Context, tierID string, feature purchase.Feature) bool {
	if g.HasFeature(tierID, feature) {
		return true
	}
	unlocked, err := g.IsUnlocked(ctx, feature)
	if err != nil {
		g.log.WarnContext(ctx, "feature unlock check failed, denying access",
			"feature", feature, "error", err)
		return false
	}
	return unlocked
}
