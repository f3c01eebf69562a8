package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// purchaseRow mirrors the purchases table. The schema itself is owned by the
// embedded migrations; tags here only map columns.
type purchaseRow struct {
	ID            string     `gorm:"column:id;primaryKey"`
	TransactionID string     `gorm:"column:transaction_id"`
	ProductID     string     `gorm:"column:product_id"`
	PurchasedAt   time.Time  `gorm:"column:purchased_at"`
	PriceAmount   int64      `gorm:"column:price_amount"`
	PriceCurrency string     `gorm:"column:price_currency"`
	IsVerified    bool       `gorm:"column:is_verified"`
	IsSynced      bool       `gorm:"column:is_synced"`
	SyncedAt      *time.Time `gorm:"column:synced_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (purchaseRow) TableName() string { return "purchases" }

type purchaseFeatureRow struct {
	PurchaseID string `gorm:"column:purchase_id;primaryKey"`
	FeatureID  string `gorm:"column:feature_id;primaryKey"`
}

func (purchaseFeatureRow) TableName() string { return "purchase_features" }

func (r purchaseRow) toDomain() purchase.Purchase {
	id, _ := uuid.Parse(r.ID)
	return purchase.Purchase{
		ID:            id,
		TransactionID: r.TransactionID,
		ProductID:     r.ProductID,
		PurchasedAt:   r.PurchasedAt,
		Price:         purchase.Money{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		Verified:      r.IsVerified,
		Synced:        r.IsSynced,
		SyncedAt:      r.SyncedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
