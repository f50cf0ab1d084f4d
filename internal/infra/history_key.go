package infra

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/humaxai2025/flowmode/internal/domain"
)

const (
	// HistoryKeyFileName holds the SQLCipher key of history.db.
	HistoryKeyFileName = "history.key"

	// historyKeyBytes is the raw SQLCipher key length; NewHistoryStore
	// passes it as x'<hex>' so no passphrase derivation happens.
	historyKeyBytes = 32
)

// HistoryKeyFile implements domain.KeyProvider. The key is stored hex
// encoded, the same form the history DSN uses, in an owner-only file beside
// history.db. Losing it makes the session history unreadable.
type HistoryKeyFile struct {
	path string
}

// NewHistoryKeyFile returns the key file inside dataDir.
func NewHistoryKeyFile(dataDir string) *HistoryKeyFile {
	return &HistoryKeyFile{path: filepath.Join(dataDir, HistoryKeyFileName)}
}

func (k *HistoryKeyFile) GetKey() ([]byte, error) {
	text, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("read history key %s: %w", k.path, err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(text)))
	if err != nil {
		return nil, fmt.Errorf("history key %s is not hex: %w", k.path, err)
	}
	if err := checkHistoryKey(key); err != nil {
		return nil, fmt.Errorf("history key %s: %w", k.path, err)
	}
	return key, nil
}

func (k *HistoryKeyFile) StoreKey(key []byte) error {
	if err := checkHistoryKey(key); err != nil {
		return err
	}
	if err := ensureDir(filepath.Dir(k.path)); err != nil {
		return err
	}
	if err := writeFileAtomic(k.path, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("write history key: %w", err)
	}
	return nil
}

// KeyExists reports whether a key file is present, valid or not.
func (k *HistoryKeyFile) KeyExists() bool {
	_, err := os.Stat(k.path)
	return !errors.Is(err, os.ErrNotExist)
}

func checkHistoryKey(key []byte) error {
	if len(key) != historyKeyBytes {
		return fmt.Errorf("history key must be %d bytes, got %d", historyKeyBytes, len(key))
	}
	return nil
}

// NewHistoryKey returns fresh random key material for a new history.db.
func NewHistoryKey() ([]byte, error) {
	key := make([]byte, historyKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate history key: %w", err)
	}
	return key, nil
}

// LoadOrCreateHistoryKey returns the stored key, creating one on first run.
// A present but unreadable key is an error: replacing it would orphan every
// session already recorded.
func LoadOrCreateHistoryKey(keys domain.KeyProvider) ([]byte, error) {
	if keys.KeyExists() {
		return keys.GetKey()
	}
	key, err := NewHistoryKey()
	if err != nil {
		return nil, err
	}
	if err := keys.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*HistoryKeyFile)(nil)
