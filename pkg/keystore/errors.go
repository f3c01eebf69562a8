package keystore

import "errors"

var (
	ErrItemNotFound     = errors.New("keystore: item not found")
	ErrInvalidStoreKey  = errors.New("keystore: store key must be 32 bytes")
	ErrCorrupted        = errors.New("keystore: stored data is corrupted or tampered")
	ErrEncryptionFailed = errors.New("keystore: encryption failed")
)
