package repository

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// StoreClient is the platform-native purchase capability. Implementations
// bridge to the store front SDK of the platform the app runs on and fail
// with *ClientError tagged errors.
type StoreClient interface {
	LoadProducts(ctx context.Context, ids []string) ([]purchase.Product, error)
	LaunchPurchaseFlow(ctx context.Context, productID string) (purchase.Transaction, error)
	RequestPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error)
}

// Aggregator is the third-party billing aggregator capability used as the
// metadata fallback and for restore flows. Implementations fail with
// *AggregatorError tagged errors.
type Aggregator interface {
	GetOfferings(ctx context.Context) ([]purchase.Product, error)
	PurchasePackage(ctx context.Context, productID string) (purchase.Transaction, error)
	RestorePurchases(ctx context.Context) ([]purchase.Transaction, error)
	GetCustomerInfo(ctx context.Context) (CustomerInfo, error)
}

// CustomerInfo is the aggregator's view of the customer's entitlements.
type CustomerInfo struct {
	Entitlements        []purchase.Feature
	ActiveSubscriptions []string
}

// ClientError is the tagged error shape platform capabilities throw:
// a stable code, a message and an optional platform-native error code.
type ClientError struct {
	Code       string
	Message    string
	NativeCode string
}

func (e *ClientError) Error() string {
	if e.NativeCode != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.NativeCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Platform capability error codes.
const (
	ClientCodeUserCancelled   = "E_USER_CANCELLED"
	ClientCodeUserError       = "E_USER_ERROR"
	ClientCodeDeferredPayment = "E_DEFERRED_PAYMENT"
	ClientCodeAlreadyPrepared = "E_ALREADY_PREPARED"
	ClientCodeAlreadyOwned    = "E_ALREADY_OWNED"
	ClientCodeItemUnavailable = "E_ITEM_UNAVAILABLE"
	ClientCodeNetwork         = "E_NETWORK_ERROR"
	ClientCodeServiceError    = "E_SERVICE_ERROR"
	ClientCodeRemoteError     = "E_REMOTE_ERROR"
	ClientCodeNotAvailable    = "E_IAP_NOT_AVAILABLE"
	ClientCodeDeveloperError  = "E_DEVELOPER_ERROR"
)

// AggregatorError is the tagged error shape the billing aggregator rejects
// with: a numeric code and a message.
type AggregatorError struct {
	Code    int
	Message string
}

func (e *AggregatorError) Error() string {
	return fmt.Sprintf("aggregator error %d: %s", e.Code, e.Message)
}

// Aggregator error codes.
const (
	AggregatorCodeUnknown            = 0
	AggregatorCodeCancelled          = 1
	AggregatorCodeStoreProblem       = 2
	AggregatorCodeNotAllowed         = 3
	AggregatorCodeInvalid            = 4
	AggregatorCodeAlreadyPurchased   = 6
	AggregatorCodeNetwork            = 10
	AggregatorCodeInvalidCredentials = 11
)
