package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Credential backends.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	// BackendAuto tries the credentials file first, then the keyring.
	BackendAuto = "auto"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; nothing is required.
type Config struct {
	// Notification service
	BaseURL          string        `env:"NOTIFY_BASE_URL" envDefault:"wss://witchcraft.insanelabs.org"`
	Keepalive        time.Duration `env:"NOTIFY_KEEPALIVE" envDefault:"30s"`
	HandshakeTimeout time.Duration `env:"NOTIFY_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	AutoConnect      bool          `env:"NOTIFY_AUTO_CONNECT" envDefault:"true"`

	// Credentials. Token, when set, wins over any stored credential.
	Token             string `env:"NOTIFY_TOKEN"`
	CredentialBackend string `env:"NOTIFY_CREDENTIAL_BACKEND" envDefault:"file"`
	CredentialsFile   string `env:"NOTIFY_CREDENTIALS_FILE"`
	KeyringDir        string `env:"NOTIFY_KEYRING_DIR"`

	// Local API
	HTTPAddr        string        `env:"NOTIFY_HTTP_ADDR" envDefault:"127.0.0.1:8089"`
	ReadTimeout     time.Duration `env:"NOTIFY_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"NOTIFY_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"NOTIFY_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Explicit connects through the local API: one per interval, with burst.
	ConnectInterval time.Duration `env:"NOTIFY_CONNECT_INTERVAL" envDefault:"2s"`
	ConnectBurst    int           `env:"NOTIFY_CONNECT_BURST" envDefault:"3"`

	// ForwardURL, when set, receives every displayed notification as a JSON POST.
	ForwardURL     string        `env:"NOTIFY_FORWARD_URL"`
	ForwardTimeout time.Duration `env:"NOTIFY_FORWARD_TIMEOUT" envDefault:"5s"`

	Debug bool `env:"NOTIFY_LOG_DEBUG" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
// NOTIFY_ENV_FILE names the .env file; if it is set the file must exist.
// Otherwise ./.env is used when present.
func Load() (*Config, error) {
	if err := loadEnvFile(os.Getenv("NOTIFY_ENV_FILE")); err != nil {
		return nil, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Existing variables are never overridden, so a stray .env cannot mask the shell.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.CredentialBackend {
	case BackendFile, BackendKeyring, BackendAuto:
	default:
		return fmt.Errorf("NOTIFY_CREDENTIAL_BACKEND must be file, keyring or auto, got %q", c.CredentialBackend)
	}
	if c.Keepalive <= 0 {
		return fmt.Errorf("NOTIFY_KEEPALIVE must be positive, got %s", c.Keepalive)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("NOTIFY_HANDSHAKE_TIMEOUT must be positive, got %s", c.HandshakeTimeout)
	}
	if c.HTTPAddr == "" {
		return errors.New("NOTIFY_HTTP_ADDR must not be empty")
	}
	if c.ForwardURL != "" {
		u, err := url.Parse(c.ForwardURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("NOTIFY_FORWARD_URL must be an http(s) URL, got %q", c.ForwardURL)
		}
	}
	return nil
}
