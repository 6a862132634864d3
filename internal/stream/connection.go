package stream

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/queue"
	"github.com/notifyhub/notify-stream/internal/transport"
)

// Connection owns a live socket until it is spawned.
type Connection struct {
	mu      sync.Mutex
	sock    transport.Socket
	send    transport.Writer
	recv    transport.Reader
	spawned bool
	opts    options
}

// New wraps a live socket, splitting it into its send and receive halves.
func New(sock transport.Socket, opts ...Option) *Connection {
	return &Connection{
		sock: sock,
		send: sock,
		recv: sock,
		opts: buildOptions(opts),
	}
}

// ID returns the identifier used in this connection's log lines.
func (c *Connection) ID() string { return c.opts.connID }

// Spawn moves both socket halves into a background driver and returns the
// consumer handles. It may be called once; later calls return
// domain.ErrAlreadySpawned.
//
// The driver runs until one of its terminal conditions fires, the returned
// task is stopped, or ctx is cancelled. Keep the task: it is the only way
// to release a healthy connection.
func (c *Connection) Spawn(ctx context.Context) (*MessageStream, *OutgoingSender, *DriverTask, error) {
	c.mu.Lock()
	if c.spawned {
		c.mu.Unlock()
		return nil, nil, nil, domain.ErrAlreadySpawned
	}
	c.spawned = true
	send, recv, sock := c.send, c.recv, c.sock
	c.send, c.recv, c.sock = nil, nil, nil
	c.mu.Unlock()

	inbound := queue.New[protocol.InboundMessage]()
	outbound := queue.New[protocol.OutgoingMessage]()

	d := newDriver(c.opts, send, recv, sock, inbound, outbound)

	driverCtx, cancel := context.WithCancel(ctx)
	task := &DriverTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer cancel()
		d.run(driverCtx)
	}()

	c.opts.logger.Debug("connection handler spawned", zap.String("conn_id", c.opts.connID))

	return &MessageStream{q: inbound}, newOutgoingSender(outbound), task, nil
}

// Close releases the socket of a connection that was never spawned. After
// Spawn the socket belongs to the driver and Close does nothing.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spawned || c.sock == nil {
		return nil
	}
	c.spawned = true
	err := c.sock.Close()
	c.send, c.recv, c.sock = nil, nil, nil
	return err
}
