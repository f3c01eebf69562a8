package receipt

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/dmitrymomot/purchasekit/pkg/keystore"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
)

// Keystore item names under which platform verification keys are provisioned.
const (
	AppStoreKeyItem  = "appstore_public_key"
	PlayStoreKeyItem = "playstore_public_key"
)

// Verifier validates a transaction's signed receipt. The boolean result is
// true only when the receipt is cryptographically sound; every failure is a
// typed error, never a panic.
type Verifier interface {
	Verify(ctx context.Context, tx purchase.Transaction) (bool, error)
}

// ForPlatform returns the verifier variant for the given platform tag.
func ForPlatform(p purchase.Platform, keys keystore.Store) (Verifier, error) {
	switch p {
	case purchase.PlatformAppStore:
		return NewAppStoreVerifier(keys), nil
	case purchase.PlatformPlayStore:
		return NewPlayStoreVerifier(keys), nil
	default:
		return nil, purchase.NewConfiguration("unknown purchase platform: " + string(p))
	}
}

// base64URLDecode decodes base64url data, restoring the padding signed tokens
// strip per RFC 7515.
func base64URLDecode(s string) ([]byte, error) {
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}

// recoverVerify converts a recovered panic value into the typed error the
// Verify contract promises.
func recoverVerify(r any, ok *bool, err *error) {
	if r == nil {
		return
	}
	*ok = false
	perr := purchase.FromAny(r)
	perr.Message = "receipt verification failed: " + perr.Message
	*err = perr
}

// trimPEM normalises key material that may have been stored with surrounding
// whitespace.
func trimPEM(material string) string {
	return strings.TrimSpace(material)
}
