// Package receipt verifies platform-issued purchase receipts before the rest
// of the engine trusts them.
//
// Two verifier variants exist, one per platform, selected explicitly through
// ForPlatform rather than a global runtime flag:
//
//   - App Store receipts are compact three-segment signed tokens
//     (header.payload.signature, each base64url). Verification walks the
//     segments, validates the required payload claims, loads the elliptic
//     curve public key from the secure keystore and checks the ES256
//     signature.
//
//   - Play Store receipts are JSON documents with a detached signature
//     delivered alongside the receipt. A receipt without its detached
//     signature is never trusted. The cryptographic check is pluggable via
//     SignatureScheme; the default is the RSA-SHA1 scheme Play licensing
//     uses.
//
// Every failure path returns a typed *purchase.Error; internal panics are
// caught at the Verify boundary and re-mapped, so callers never see a raw
// panic. The only side effect of a Verify call is the keystore read.
package receipt
