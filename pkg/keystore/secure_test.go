package keystore_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/purchasekit/pkg/keystore"
)

func testStoreKey() []byte {
	return bytes.Repeat([]byte{0x42}, keystore.StoreKeySize)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := keystore.NewMemory()

	_, err := store.GetItem(ctx, "appstore_public_key")
	assert.ErrorIs(t, err, keystore.ErrItemNotFound)

	require.NoError(t, store.SetItem(ctx, "appstore_public_key", "pem-data"))

	value, err := store.GetItem(ctx, "appstore_public_key")
	require.NoError(t, err)
	assert.Equal(t, "pem-data", value)

	require.NoError(t, store.DeleteItem(ctx, "appstore_public_key"))
	_, err = store.GetItem(ctx, "appstore_public_key")
	assert.ErrorIs(t, err, keystore.ErrItemNotFound)
}

func TestSecureFileRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.bin")

	store, err := keystore.NewSecureFile(path, testStoreKey())
	require.NoError(t, err)

	_, err = store.GetItem(ctx, "playstore_public_key")
	assert.ErrorIs(t, err, keystore.ErrItemNotFound)

	require.NoError(t, store.SetItem(ctx, "playstore_public_key", "rsa-pem"))
	require.NoError(t, store.SetItem(ctx, "appstore_public_key", "ec-pem"))

	// A fresh handle over the same file sees the same items.
	reopened, err := keystore.NewSecureFile(path, testStoreKey())
	require.NoError(t, err)

	value, err := reopened.GetItem(ctx, "playstore_public_key")
	require.NoError(t, err)
	assert.Equal(t, "rsa-pem", value)

	// The file on disk never contains plaintext key material.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "rsa-pem")
}

func TestSecureFileRejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	_, err := keystore.NewSecureFile(filepath.Join(t.TempDir(), "keys.bin"), []byte("short"))
	assert.ErrorIs(t, err, keystore.ErrInvalidStoreKey)
}

func TestSecureFileDetectsTampering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.bin")

	store, err := keystore.NewSecureFile(path, testStoreKey())
	require.NoError(t, err)
	require.NoError(t, store.SetItem(ctx, "appstore_public_key", "ec-pem"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = store.GetItem(ctx, "appstore_public_key")
	assert.ErrorIs(t, err, keystore.ErrCorrupted)
}

func TestSecureFileWrongKeyIsCorrupted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys.bin")

	store, err := keystore.NewSecureFile(path, testStoreKey())
	require.NoError(t, err)
	require.NoError(t, store.SetItem(ctx, "appstore_public_key", "ec-pem"))

	other, err := keystore.NewSecureFile(path, bytes.Repeat([]byte{0x13}, keystore.StoreKeySize))
	require.NoError(t, err)

	_, err = other.GetItem(ctx, "appstore_public_key")
	assert.ErrorIs(t, err, keystore.ErrCorrupted)
}
