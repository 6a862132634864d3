package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/notifyhub/notify-stream/internal/domain"
)

const (
	keyringService = "notify-stream"
	keyringKey     = "access_code"
)

// KeyringStore reads the credential from the OS keyring, falling back to
// an encrypted file under fileDir on systems without one.
type KeyringStore struct {
	open func() (keyring.Keyring, error)
	key  string
}

func NewKeyringStore(fileDir string) *KeyringStore {
	return &KeyringStore{
		open: func() (keyring.Keyring, error) {
			ring, err := keyring.Open(keyring.Config{
				ServiceName: keyringService,
				AllowedBackends: []keyring.BackendType{
					keyring.KeychainBackend,
					keyring.SecretServiceBackend,
					keyring.WinCredBackend,
					keyring.PassBackend,
					keyring.FileBackend,
				},
				FileDir:                  fileDir,
				FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
				KeychainTrustApplication: true,
			})
			if err != nil {
				return nil, fmt.Errorf("opening keyring: %w", err)
			}
			return ring, nil
		},
		key: keyringKey,
	}
}

// NewKeyringStoreFrom reads key from an already opened keyring.
func NewKeyringStoreFrom(ring keyring.Keyring, key string) *KeyringStore {
	if key == "" {
		key = keyringKey
	}
	return &KeyringStore{
		open: func() (keyring.Keyring, error) { return ring, nil },
		key:  key,
	}
}

func (s *KeyringStore) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ring, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", domain.ErrNoCredential
		}
		return "", fmt.Errorf("getting credential %q: %w", s.key, err)
	}

	t := strings.TrimSpace(string(item.Data))
	if t == "" {
		return "", domain.ErrNoCredential
	}
	return t, nil
}
