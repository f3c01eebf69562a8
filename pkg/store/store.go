package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// Store owns CRUD and state-transition operations over persisted purchases.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, mainly for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store over an opened database handle.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPurchase carries the fields required to record an accepted transaction.
// Verified reflects the receipt verification outcome; a freshly recorded
// purchase is always unsynced until the reconciler confirms it.
type NewPurchase struct {
	TransactionID string
	ProductID     string
	PurchasedAt   time.Time
	Price         purchase.Money
	Verified      bool
}

func (p NewPurchase) validate() error {
	switch {
	case p.TransactionID == "":
		return purchase.NewInvalidInput("transactionId must not be empty")
	case p.ProductID == "":
		return purchase.NewInvalidInput("productId must not be empty")
	case p.PurchasedAt.IsZero():
		return purchase.NewInvalidInput("purchasedAt must be set")
	case p.Price.Amount < 0:
		return purchase.NewInvalidInput("price must not be negative")
	case p.Price.Amount > 0 && p.Price.Currency == "":
		return purchase.NewInvalidInput("currencyCode must not be empty")
	}
	return nil
}

// RecordPurchase inserts a new purchase record. The unique transaction_id
// constraint is left to the datastore; a violation comes back as a retryable
// DB_ERROR so concurrent-write races can simply be retried.
func (s *Store) RecordPurchase(ctx context.Context, p NewPurchase) error {
	if err := p.validate(); err != nil {
		return err
	}

	now := s.now()
	row := purchaseRow{
		ID:            uuid.NewString(),
		TransactionID: p.TransactionID,
		ProductID:     p.ProductID,
		PurchasedAt:   p.PurchasedAt.UTC(),
		PriceAmount:   p.Price.Amount,
		PriceCurrency: p.Price.Currency,
		IsVerified:    p.Verified,
		IsSynced:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return classifyWrite(err)
	}
	return nil
}

// UpdateSyncStatus flips the synced flag. Marking synced stamps SyncedAt with
// the current time; unmarking clears it, since a purchase cannot claim a sync
// timestamp while unsynced.
func (s *Store) UpdateSyncStatus(ctx context.Context, transactionID string, synced bool) error {
	if transactionID == "" {
		return purchase.NewInvalidInput("transactionId must not be empty")
	}

	now := s.now()
	updates := map[string]any{
		"is_synced":  synced,
		"synced_at":  nil,
		"updated_at": now,
	}
	if synced {
		updates["synced_at"] = now
	}

	result := s.db.WithContext(ctx).
		Model(&purchaseRow{}).
		Where("transaction_id = ?", transactionID).
		Updates(updates)
	if result.Error != nil {
		return classifyWrite(result.Error)
	}
	if result.RowsAffected == 0 {
		return purchase.NewNotFound("no purchase with transaction id " + transactionID)
	}
	return nil
}

// UpdateVerificationStatus updates the verification flag. Zero matched rows
// is a NOT_FOUND error, never a silent no-op.
func (s *Store) UpdateVerificationStatus(ctx context.Context, transactionID string, verified bool) error {
	if transactionID == "" {
		return purchase.NewInvalidInput("transactionId must not be empty")
	}

	result := s.db.WithContext(ctx).
		Model(&purchaseRow{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]any{
			"is_verified": verified,
			"updated_at":  s.now(),
		})
	if result.Error != nil {
		return classifyWrite(result.Error)
	}
	if result.RowsAffected == 0 {
		return purchase.NewNotFound("no purchase with transaction id " + transactionID)
	}
	return nil
}

// GetPurchase returns the purchase recorded for a transaction id.
func (s *Store) GetPurchase(ctx context.Context, transactionID string) (purchase.Purchase, error) {
	if transactionID == "" {
		return purchase.Purchase{}, purchase.NewInvalidInput("transactionId must not be empty")
	}

	var row purchaseRow
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return purchase.Purchase{}, purchase.NewNotFound("no purchase with transaction id " + transactionID)
		}
		return purchase.Purchase{}, purchase.NewDB(err)
	}
	return row.toDomain(), nil
}

// GetAllPurchases returns every persisted purchase, oldest first.
func (s *Store) GetAllPurchases(ctx context.Context) ([]purchase.Purchase, error) {
	var rows []purchaseRow
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, purchase.NewDB(err)
	}

	purchases := make([]purchase.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, row.toDomain())
	}
	return purchases, nil
}

// DeletePurchase removes a purchase; the foreign key cascades to its feature
// mappings. Used by the reconciler for orphan removal.
func (s *Store) DeletePurchase(ctx context.Context, transactionID string) error {
	if transactionID == "" {
		return purchase.NewInvalidInput("transactionId must not be empty")
	}

	result := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Delete(&purchaseRow{})
	if result.Error != nil {
		return classifyWrite(result.Error)
	}
	if result.RowsAffected == 0 {
		return purchase.NewNotFound("no purchase with transaction id " + transactionID)
	}
	return nil
}

// GrantFeatures maps a purchase to the features it unlocks. Granting the same
// feature twice is a no-op thanks to the unique pair constraint.
func (s *Store) GrantFeatures(ctx context.Context, transactionID string, features ...purchase.Feature) error {
	if transactionID == "" {
		return purchase.NewInvalidInput("transactionId must not be empty")
	}
	if len(features) == 0 {
		return nil
	}

	var row purchaseRow
	err := s.db.WithContext(ctx).
		Select("id").
		Where("transaction_id = ?", transactionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return purchase.NewNotFound("no purchase with transaction id " + transactionID)
		}
		return purchase.NewDB(err)
	}

	junctions := make([]purchaseFeatureRow, 0, len(features))
	for _, feature := range features {
		if feature == "" {
			return purchase.NewInvalidInput("featureId must not be empty")
		}
		junctions = append(junctions, purchaseFeatureRow{
			PurchaseID: row.ID,
			FeatureID:  string(feature),
		})
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&junctions).Error
	if err != nil {
		return classifyWrite(err)
	}
	return nil
}

// GetPurchasesByFeature returns the purchases mapped to a feature, joining
// through the junction table. Only the purchase projection is returned.
func (s *Store) GetPurchasesByFeature(ctx context.Context, featureID string) ([]purchase.Purchase, error) {
	if featureID == "" {
		return nil, purchase.NewInvalidInput("featureId must not be empty")
	}

	var rows []purchaseRow
	err := s.db.WithContext(ctx).
		Model(&purchaseRow{}).
		Joins("JOIN purchase_features ON purchase_features.purchase_id = purchases.id").
		Where("purchase_features.feature_id = ?", featureID).
		Order("purchases.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, purchase.NewDB(err)
	}

	purchases := make([]purchase.Purchase, 0, len(rows))
	for _, row := range rows {
		purchases = append(purchases, row.toDomain())
	}
	return purchases, nil
}

// FeaturesForPurchase returns the features a purchase unlocks.
func (s *Store) FeaturesForPurchase(ctx context.Context, transactionID string) ([]purchase.Feature, error) {
	if transactionID == "" {
		return nil, purchase.NewInvalidInput("transactionId must not be empty")
	}

	var featureIDs []string
	err := s.db.WithContext(ctx).
		Model(&purchaseFeatureRow{}).
		Joins("JOIN purchases ON purchases.id = purchase_features.purchase_id").
		Where("purchases.transaction_id = ?", transactionID).
		Order("purchase_features.feature_id ASC").
		Pluck("purchase_features.feature_id", &featureIDs).Error
	if err != nil {
		return nil, purchase.NewDB(err)
	}

	features := make([]purchase.Feature, 0, len(featureIDs))
	for _, id := range featureIDs {
		features = append(features, purchase.Feature(id))
	}
	return features, nil
}

// classifyWrite maps datastore write failures into the taxonomy. Unique
// violations are retryable conflicts: the race loser should re-read and move
// on rather than treat the write as fatal.
func classifyWrite(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		perr := purchase.NewDB(err)
		perr.Retryable = true
		perr.Reason = "conflict"
		return perr
	}
	return purchase.NewDB(err)
}
