package purchase

import (
	"time"

	"github.com/google/uuid"
)

// Platform identifies which purchase platform issued a transaction.
type Platform string

const (
	PlatformAppStore  Platform = "appstore"
	PlatformPlayStore Platform = "playstore"
)

// Valid reports whether the platform tag is one of the known platforms.
func (p Platform) Valid() bool {
	return p == PlatformAppStore || p == PlatformPlayStore
}

// Transaction is an ephemeral purchase event produced by a platform purchase
// capability. ReceiptData is the opaque signed payload in the platform's own
// encoding; Signature is set only for Play Store receipts, where the platform
// delivers the signature detached from the receipt body.
type Transaction struct {
	TransactionID string
	ProductID     string
	PurchaseDate  time.Time
	ReceiptData   string
	Signature     string
}

// Validate enforces the transaction invariant: TransactionID, ProductID and
// ReceiptData must all be non-empty. It returns a typed INVALID_INPUT error
// naming the first missing field.
func (t Transaction) Validate() error {
	switch {
	case t.TransactionID == "":
		return NewInvalidInput("transaction is missing transactionId")
	case t.ProductID == "":
		return NewInvalidInput("transaction is missing productId")
	case t.ReceiptData == "":
		return NewInvalidInput("transaction is missing receiptData")
	}
	return nil
}

// Money is a monetary amount in the smallest currency unit.
// $10.99 USD is Money{Amount: 1099, Currency: "USD"}.
type Money struct {
	Amount   int64
	Currency string
}

// Product is the purchasable item metadata loaded from a store front.
type Product struct {
	ID          string
	Title       string
	Description string
	Price       Money
}

// Purchase is the persisted, authoritative local record of an accepted
// transaction. Verified reflects the receipt signature check; Synced means the
// transaction was confirmed present in the platform's authoritative history.
// SyncedAt is set only while Synced is true.
type Purchase struct {
	ID            uuid.UUID
	TransactionID string
	ProductID     string
	PurchasedAt   time.Time
	Price         Money
	Verified      bool
	Synced        bool
	SyncedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Feature is a named capability unlocked by a purchase or granted by a tier.
type Feature string
