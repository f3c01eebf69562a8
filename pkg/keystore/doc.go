// Package keystore holds platform verification-key material in a secure,
// tamper-resistant local store, separate from the relational datastore that
// keeps business data.
//
// The receipt verifier only ever reads through the Store interface. Two
// implementations are provided: Memory for tests and provisioning pipelines,
// and SecureFile, which keeps all items in a single AES-256-GCM encrypted
// file using an HKDF-derived key. A corrupted or tampered file surfaces as
// ErrCorrupted rather than bad key material.
package keystore
