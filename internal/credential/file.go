package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// tokenKeys are tried in order; the sign-in flow writes access_code, older
// installs only have api_key.
var tokenKeys = []string{"access_code", "api_key"}

// FileStore reads a JSON credentials file written by the sign-in flow.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFilePath returns <user config dir>/witchcraft/credentials.json,
// falling back to the working directory when no config dir is known.
func DefaultFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "witchcraft", "credentials.json")
}

// Path returns the file this store reads.
func (s *FileStore) Path() string { return s.path }

// Token re-reads the file on every call so a fresh sign-in is picked up
// without restarting.
func (s *FileStore) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrNoCredential
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", domain.ErrNoCredential
		}
		return "", fmt.Errorf("reading credentials %s: %w", s.path, err)
	}

	for _, key := range tokenKeys {
		if t := strings.TrimSpace(v.GetString(key)); t != "" {
			return t, nil
		}
	}
	return "", domain.ErrNoCredential
}
