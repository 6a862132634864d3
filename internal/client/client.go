package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/stream"
	"github.com/notifyhub/notify-stream/internal/transport"
)

// streamPath is appended to the base URL to reach the notification socket.
const streamPath = "/api/notifications/ws"

// TransportError is returned when the socket could not be established
// (DNS, TLS, or the server refusing the protocol upgrade).
type TransportError struct {
	Endpoint string // token redacted
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, domain.ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == domain.ErrTransport }

// Hooks carries metric callbacks. Nil fields are no-ops.
type Hooks struct {
	OnConnectAttempt func()
	OnConnectFailure func()
	// Driver is passed to every Connection this client creates.
	Driver stream.Hooks
}

// Client dials the notification service and caches the last credential used.
//
// The cache is a single slot: connecting with a new token replaces it, so
// the client serves one identity at a time.
type Client struct {
	dialer    transport.Dialer
	baseURL   *url.URL
	keepalive time.Duration
	logger    *zap.Logger
	hooks     Hooks

	mu    sync.RWMutex
	token string
}

// New validates baseURL (ws:// or wss://, host only) and returns a Client.
func New(dialer transport.Dialer, baseURL string, keepalive time.Duration, logger *zap.Logger, hooks Hooks) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: got %q", domain.ErrInvalidBaseURL, baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", domain.ErrInvalidBaseURL, baseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if hooks.OnConnectAttempt == nil {
		hooks.OnConnectAttempt = func() {}
	}
	if hooks.OnConnectFailure == nil {
		hooks.OnConnectFailure = func() {}
	}

	return &Client{
		dialer:    dialer,
		baseURL:   u,
		keepalive: keepalive,
		logger:    logger,
		hooks:     hooks,
	}, nil
}

// Connect opens one socket to the service. A non-empty token replaces the
// cached credential before dialling; an empty token reuses the cached one.
// There is no retry: a failure is returned as is.
func (c *Client) Connect(ctx context.Context, token string) (*stream.Connection, error) {
	if token != "" {
		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
	} else {
		token = c.Token()
	}
	if token == "" {
		return nil, domain.ErrNoCredential
	}

	endpoint := c.endpoint(token)
	redacted := c.endpoint("REDACTED")
	connID := uuid.New().String()
	log := c.logger.With(zap.String("conn_id", connID))

	c.hooks.OnConnectAttempt()
	log.Info("connecting", zap.String("endpoint", redacted))

	sock, err := c.dialer.Dial(ctx, endpoint)
	if err != nil {
		c.hooks.OnConnectFailure()
		log.Warn("connect failed", zap.Error(err))
		return nil, &TransportError{Endpoint: redacted, Err: scrub(err, token)}
	}

	log.Info("connection established")
	return stream.New(sock,
		stream.WithKeepalive(c.keepalive),
		stream.WithLogger(c.logger),
		stream.WithHooks(c.hooks.Driver),
		stream.WithConnID(connID),
	), nil
}

// Token returns the cached credential, or "" if none was ever supplied.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// endpoint returns the socket URL for token.
func (c *Client) endpoint(token string) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + streamPath
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

// scrub keeps the raw credential out of error strings that echo the URL.
func scrub(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	for _, form := range []string{url.QueryEscape(token), token} {
		msg = strings.ReplaceAll(msg, form, "REDACTED")
	}
	if msg == err.Error() {
		return err
	}
	return &scrubbedError{msg: msg, err: err}
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }
