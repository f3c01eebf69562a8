package receipt

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"

	"github.com/dmitrymomot/purchasekit/pkg/keystore"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// SignatureScheme performs the platform-specific cryptographic check for a
// Play Store receipt. Implementations receive the raw receipt bytes, the
// decoded detached signature and the PEM key material from the keystore.
type SignatureScheme interface {
	Verify(receipt, signature []byte, keyPEM string) error
}

// PlayStoreVerifier validates JSON receipts with a detached signature.
type PlayStoreVerifier struct {
	keys   keystore.Store
	scheme SignatureScheme
}

// PlayStoreOption configures a PlayStoreVerifier.
type PlayStoreOption func(*PlayStoreVerifier)

// WithSignatureScheme replaces the default RSA-SHA1 scheme.
func WithSignatureScheme(scheme SignatureScheme) PlayStoreOption {
	return func(v *PlayStoreVerifier) {
		if scheme != nil {
			v.scheme = scheme
		}
	}
}

func NewPlayStoreVerifier(keys keystore.Store, opts ...PlayStoreOption) *PlayStoreVerifier {
	v := &PlayStoreVerifier{
		keys:   keys,
		scheme: RSASHA1Scheme{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// playReceipt holds the required fields of a Play Store receipt body.
// Pointers distinguish an absent field from an empty one.
type playReceipt struct {
	OrderID     *string `json:"orderId"`
	PackageName *string `json:"packageName"`
	ProductID   *string `json:"productId"`
}

// Verify checks the receipt structure and its detached signature. A receipt
// arriving without a signature is never trusted, regardless of content.
func (v *PlayStoreVerifier) Verify(ctx context.Context, tx purchase.Transaction) (ok bool, err error) {
	defer func() { recoverVerify(recover(), &ok, &err) }()

	if tx.ReceiptData == "" {
		return false, purchase.NewInvalid(purchase.ReasonNotSigned, "receipt data is empty")
	}
	if tx.Signature == "" {
		return false, purchase.NewInvalid(purchase.ReasonNotSigned, "receipt has no detached signature")
	}

	var receipt playReceipt
	if jsonErr := json.Unmarshal([]byte(tx.ReceiptData), &receipt); jsonErr != nil {
		return false, purchase.NewInvalid("malformed_receipt", "receipt is not valid JSON: %v", jsonErr)
	}

	for field, value := range map[string]*string{
		"orderId":     receipt.OrderID,
		"packageName": receipt.PackageName,
		"productId":   receipt.ProductID,
	} {
		if value == nil || *value == "" {
			return false, purchase.NewInvalid("missing_field", "receipt is missing %s", field)
		}
	}

	material, keyErr := v.keys.GetItem(ctx, PlayStoreKeyItem)
	if keyErr != nil {
		if errors.Is(keyErr, keystore.ErrItemNotFound) {
			return false, purchase.NewInvalid("missing_key", "verification key is not provisioned").WithCause(keyErr)
		}
		return false, purchase.NewInvalid("corrupted_key", "verification key could not be read: %v", keyErr).WithCause(keyErr)
	}

	signature, decodeErr := base64.StdEncoding.DecodeString(tx.Signature)
	if decodeErr != nil {
		return false, purchase.NewInvalid("malformed_signature",
			"detached signature is not valid base64: %v", decodeErr)
	}

	if schemeErr := v.scheme.Verify([]byte(tx.ReceiptData), signature, material); schemeErr != nil {
		if perr, isTyped := purchase.AsError(schemeErr); isTyped {
			return false, perr
		}
		return false, purchase.NewInvalid("signature_mismatch",
			"receipt signature verification failed: %v", schemeErr).WithCause(schemeErr)
	}

	return true, nil
}

// RSASHA1Scheme is the Play licensing signature scheme: RSASSA-PKCS1-v1_5
// over a SHA-1 digest of the receipt body.
type RSASHA1Scheme struct{}

func (RSASHA1Scheme) Verify(receipt, signature []byte, keyPEM string) error {
	block, _ := pem.Decode([]byte(trimPEM(keyPEM)))
	if block == nil {
		return purchase.NewInvalid("corrupted_key", "verification key is not valid PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return purchase.NewInvalid("corrupted_key", "verification key could not be parsed: %v", err)
	}

	publicKey, isRSA := parsed.(*rsa.PublicKey)
	if !isRSA {
		return purchase.NewInvalid("corrupted_key", "verification key is not an RSA key")
	}

	digest := sha1.Sum(receipt)
	if err := rsa.VerifyPKCS1v15(publicKey, crypto.SHA1, digest[:], signature); err != nil {
		return purchase.NewInvalid("signature_mismatch", "receipt signature verification failed")
	}
	return nil
}
