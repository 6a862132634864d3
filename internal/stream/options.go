package stream

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultKeepalive is how long the driver waits between application-level pings.
const DefaultKeepalive = 30 * time.Second

// Hooks carries metric callbacks so the driver stays metrics-agnostic.
// Any nil field is a no-op.
type Hooks struct {
	OnFrameSent     func(kind string)
	OnFrameReceived func(kind string)
	OnDecodeFailure func()
	OnExit          func(reason string)
}

func (h Hooks) withDefaults() Hooks {
	if h.OnFrameSent == nil {
		h.OnFrameSent = func(string) {}
	}
	if h.OnFrameReceived == nil {
		h.OnFrameReceived = func(string) {}
	}
	if h.OnDecodeFailure == nil {
		h.OnDecodeFailure = func() {}
	}
	if h.OnExit == nil {
		h.OnExit = func(string) {}
	}
	return h
}

type options struct {
	keepalive time.Duration
	logger    *zap.Logger
	hooks     Hooks
	connID    string
}

// Option configures a Connection.
type Option func(*options)

// WithKeepalive overrides the ping interval. Non-positive values are ignored.
func WithKeepalive(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.keepalive = d
		}
	}
}

// WithLogger sets the driver logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHooks installs metric callbacks. Nil fields are no-ops.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithConnID sets the identifier attached to every log line of this connection.
func WithConnID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.connID = id
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		keepalive: DefaultKeepalive,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.connID == "" {
		o.connID = uuid.New().String()
	}
	o.hooks = o.hooks.withDefaults()
	return o
}
