package oauth

import (
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"github.com/goliatone/go-errors"
)

const nonceFragmentLen = 12

// newStateNonce builds the CSRF state value: two concatenated random
// base-36 fragments, zero-padded to a stable width so the result is always
// at least 24 characters.
func newStateNonce() string {
	return base36Fragment() + base36Fragment()
}

func base36Fragment() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)

	s := new(big.Int).SetBytes(buf).Text(36)
	for len(s) < nonceFragmentLen {
		s = "0" + s
	}
	return s
}

// NonceStore holds the CSRF state for the duration of one redirect
// round-trip. The value is consumed on first Take, regardless of what the
// caller does with it afterwards.
type NonceStore interface {
	Put(nonce string) error
	// Take returns the stored nonce and deletes it. Returns "" when no
	// nonce is pending.
	Take() (string, error)
}

// FileNonceStore persists the nonce on disk so it survives the full process
// restart between redirect and callback.
type FileNonceStore struct {
	path string
}

var _ NonceStore = (*FileNonceStore)(nil)

// NewFileNonceStore stores the pending nonce under dir.
func NewFileNonceStore(dir string) (*FileNonceStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create nonce storage dir")
	}
	return &FileNonceStore{path: filepath.Join(dir, "oauth-state")}, nil
}

func (s *FileNonceStore) Put(nonce string) error {
	if err := os.WriteFile(s.path, []byte(nonce), 0o600); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to persist oauth state")
	}
	return nil
}

func (s *FileNonceStore) Take() (string, error) {
	data, readErr := os.ReadFile(s.path)

	// Deletion is unconditional: the nonce is single-use no matter how the
	// validation turns out.
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return "", errors.Wrap(err, errors.CategoryOperation, "failed to consume oauth state")
	}

	if readErr != nil {
		if os.IsNotExist(readErr) {
			return "", nil
		}
		return "", errors.Wrap(readErr, errors.CategoryOperation, "failed to read oauth state")
	}
	return string(data), nil
}

// MemoryNonceStore is a NonceStore for tests.
type MemoryNonceStore struct {
	mu    sync.Mutex
	value string
}

var _ NonceStore = (*MemoryNonceStore)(nil)

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{}
}

func (s *MemoryNonceStore) Put(nonce string) error {
	s.mu.Lock()
	s.value = nonce
	s.mu.Unlock()
	return nil
}

func (s *MemoryNonceStore) Take() (string, error) {
	s.mu.Lock()
	v := s.value
	s.value = ""
	s.mu.Unlock()
	return v, nil
}
