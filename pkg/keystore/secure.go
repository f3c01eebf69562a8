package keystore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	// StoreKeySize is the required length of the store encryption key.
	StoreKeySize = 32 // AES-256

	// hkdfInfo provides domain separation for the derived file key.
	hkdfInfo = "purchasekit-keystore-v1"
)

// SecureFile is a Store backed by a single encrypted file. All items are kept
// in one JSON document sealed with AES-256-GCM under a key derived from the
// caller-supplied store key via HKDF-SHA256.
type SecureFile struct {
	path string
	key  []byte
	mu   sync.RWMutex
}

// NewSecureFile creates a file-backed store at path. The store key must be
// exactly StoreKeySize bytes. The file is created lazily on the first SetItem.
func NewSecureFile(path string, storeKey []byte) (*SecureFile, error) {
	if len(storeKey) != StoreKeySize {
		return nil, ErrInvalidStoreKey
	}

	derived, err := deriveFileKey(storeKey)
	if err != nil {
		return nil, err
	}

	return &SecureFile{path: path, key: derived}, nil
}

func (s *SecureFile) GetItem(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.load()
	if err != nil {
		return "", err
	}

	value, ok := items[key]
	if !ok {
		return "", ErrItemNotFound
	}
	return value, nil
}

func (s *SecureFile) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		return err
	}
	if items == nil {
		items = make(map[string]string)
	}

	items[key] = value
	return s.save(items)
}

func (s *SecureFile) DeleteItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil
		}
		return err
	}

	delete(items, key)
	return s.save(items)
}

// load reads and decrypts the whole document. A missing file is reported as
// ErrItemNotFound; any decryption or decoding failure as ErrCorrupted.
func (s *SecureFile) load() (map[string]string, error) {
	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, ErrCorrupted
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}

	var items map[string]string
	if err := json.Unmarshal(plaintext, &items); err != nil {
		return nil, errors.Join(ErrCorrupted, err)
	}
	return items, nil
}

// save encrypts and writes the document atomically via a temp file rename so
// a crash mid-write never leaves a half-sealed store behind.
func (s *SecureFile) save(items map[string]string) error {
	plaintext, err := json.Marshal(items)
	if err != nil {
		return errors.Join(ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return errors.Join(ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Join(ErrEncryptionFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".keystore-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func deriveFileKey(storeKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, storeKey, nil, []byte(hkdfInfo))
	derived := make([]byte, StoreKeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, err
	}
	return derived, nil
}
