package receipt

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"strings"

	"github.com/dmitrymomot/purchasekit/pkg/keystore"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// appStoreAlgorithm is the only signature algorithm accepted in token
// headers. Rejecting everything else prevents algorithm confusion attacks.
const appStoreAlgorithm = "ES256"

// ecdsaSignatureSize is the raw r||s encoding length for P-256 signatures.
const ecdsaSignatureSize = 64

// AppStoreVerifier validates three-segment signed receipt tokens against the
// elliptic curve public key held in the secure keystore.
type AppStoreVerifier struct {
	keys keystore.Store
}

func NewAppStoreVerifier(keys keystore.Store) *AppStoreVerifier {
	return &AppStoreVerifier{keys: keys}
}

type tokenHeader struct {
	Algorithm string `json:"alg"`
}

// Verify runs the full pipeline: segment split, header and payload decode,
// required-claim validation, key load, ES256 signature check. Failures short
// circuit with a PURCHASE_INVALID whose message names the exact stage, so a
// rejected receipt is diagnosable from the error alone.
func (v *AppStoreVerifier) Verify(ctx context.Context, tx purchase.Transaction) (ok bool, err error) {
	defer func() { recoverVerify(recover(), &ok, &err) }()

	if tx.ReceiptData == "" {
		return false, purchase.NewInvalid(purchase.ReasonNotSigned, "receipt data is empty")
	}

	segments := strings.Split(tx.ReceiptData, ".")
	if len(segments) != 3 {
		return false, purchase.NewInvalid(purchase.ReasonNotSigned,
			"signed receipt must have 3 segments, got %d", len(segments))
	}

	headerRaw, decodeErr := base64URLDecode(segments[0])
	if decodeErr != nil {
		return false, purchase.NewInvalid("malformed_header",
			"receipt header is not valid base64url: %v", decodeErr)
	}
	var header tokenHeader
	if jsonErr := json.Unmarshal(headerRaw, &header); jsonErr != nil {
		return false, purchase.NewInvalid("malformed_header",
			"receipt header is not valid JSON: %v", jsonErr)
	}

	payloadRaw, decodeErr := base64URLDecode(segments[1])
	if decodeErr != nil {
		return false, purchase.NewInvalid("malformed_payload",
			"receipt payload is not valid base64url: %v", decodeErr)
	}
	var claims map[string]any
	if jsonErr := json.Unmarshal(payloadRaw, &claims); jsonErr != nil {
		return false, purchase.NewInvalid("malformed_payload",
			"receipt payload is not valid JSON: %v", jsonErr)
	}

	if err := validateClaims(claims); err != nil {
		return false, err
	}

	if header.Algorithm != appStoreAlgorithm {
		return false, purchase.NewInvalid("unsupported_algorithm",
			"unexpected signature algorithm %q, want %s", header.Algorithm, appStoreAlgorithm)
	}

	publicKey, err := v.loadKey(ctx)
	if err != nil {
		return false, err
	}

	signature, decodeErr := base64URLDecode(segments[2])
	if decodeErr != nil {
		return false, purchase.NewInvalid("malformed_signature",
			"receipt signature is not valid base64url: %v", decodeErr)
	}
	if len(signature) != ecdsaSignatureSize {
		return false, purchase.NewInvalid("malformed_signature",
			"receipt signature must be %d bytes, got %d", ecdsaSignatureSize, len(signature))
	}

	digest := sha256.Sum256([]byte(segments[0] + "." + segments[1]))
	r := new(big.Int).SetBytes(signature[:ecdsaSignatureSize/2])
	s := new(big.Int).SetBytes(signature[ecdsaSignatureSize/2:])

	if !ecdsa.Verify(publicKey, digest[:], r, s) {
		return false, purchase.NewInvalid("signature_mismatch", "receipt signature verification failed")
	}

	return true, nil
}

// validateClaims enforces the required payload fields. The error message
// names the offending field so callers can tell a stripped claim from a
// mistyped one.
func validateClaims(claims map[string]any) error {
	for _, field := range []string{"transactionId", "productId"} {
		value, present := claims[field]
		if !present || value == nil {
			return purchase.NewInvalid("missing_field", "receipt payload is missing %s", field)
		}
		str, isString := value.(string)
		if !isString || str == "" {
			return purchase.NewInvalid("missing_field", "receipt payload field %s must be a non-empty string", field)
		}
	}

	value, present := claims["purchaseDate"]
	if !present || value == nil {
		return purchase.NewInvalid("missing_field", "receipt payload is missing purchaseDate")
	}
	if _, isNumber := value.(float64); !isNumber {
		return purchase.NewInvalid("missing_field", "receipt payload field purchaseDate must be numeric epoch milliseconds")
	}

	return nil
}

// loadKey reads and parses the verification key. A missing or unparseable
// key is a non-retryable PURCHASE_INVALID: key provisioning is a separate
// concern and this call must never block on a blind network refetch.
func (v *AppStoreVerifier) loadKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	material, err := v.keys.GetItem(ctx, AppStoreKeyItem)
	if err != nil {
		if errors.Is(err, keystore.ErrItemNotFound) {
			return nil, purchase.NewInvalid("missing_key", "verification key is not provisioned").WithCause(err)
		}
		return nil, purchase.NewInvalid("corrupted_key", "verification key could not be read: %v", err).WithCause(err)
	}

	block, _ := pem.Decode([]byte(trimPEM(material)))
	if block == nil {
		return nil, purchase.NewInvalid("corrupted_key", "verification key is not valid PEM")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, purchase.NewInvalid("corrupted_key", "verification key could not be parsed: %v", err)
	}

	publicKey, isECDSA := parsed.(*ecdsa.PublicKey)
	if !isECDSA {
		return nil, purchase.NewInvalid("corrupted_key", "verification key is not an elliptic curve key")
	}
	return publicKey, nil
}
