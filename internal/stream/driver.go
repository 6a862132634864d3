package stream

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/queue"
	"github.com/notifyhub/notify-stream/internal/transport"
)

// Exit reasons, reported to logs and the OnExit hook only.
const (
	ExitSendersClosed = "senders_closed"
	ExitPeerClosed    = "peer_closed"
	ExitConsumerGone  = "consumer_gone"
	ExitReadFailed    = "read_failed"
	ExitWriteFailed   = "write_failed"
	ExitStopped       = "stopped"
)

// maxLoggedPayload caps how much of an unparseable frame ends up in the log.
const maxLoggedPayload = 512

// stopGrace is how long a released driver may spend in a socket write
// before the socket is closed underneath it.
const stopGrace = 500 * time.Millisecond

type readResult struct {
	frame transport.Frame
	err   error
}

// driver is the single owner of both socket halves and of the producer
// end of the inbound queue.
type driver struct {
	connID    string
	send      transport.Writer
	recv      transport.Reader
	sock      io.Closer
	inbound   *queue.Queue[protocol.InboundMessage]
	outbound  *queue.Queue[protocol.OutgoingMessage]
	keepalive time.Duration
	logger    *zap.Logger
	hooks     Hooks

	// Throttles protocol warnings so a misbehaving peer cannot flood the log.
	warn rate.Sometimes
}

func newDriver(
	o options,
	send transport.Writer,
	recv transport.Reader,
	sock io.Closer,
	inbound *queue.Queue[protocol.InboundMessage],
	outbound *queue.Queue[protocol.OutgoingMessage],
) *driver {
	return &driver{
		connID:    o.connID,
		send:      send,
		recv:      recv,
		sock:      sock,
		inbound:   inbound,
		outbound:  outbound,
		keepalive: o.keepalive,
		logger:    o.logger.With(zap.String("conn_id", o.connID)),
		hooks:     o.hooks,
		warn:      rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// run is the event loop. It returns after the connection has been torn
// down and the read pump has exited.
func (d *driver) run(ctx context.Context) {
	d.logger.Info("connection handler started", zap.Duration("keepalive", d.keepalive))

	stop := make(chan struct{})
	frames := make(chan readResult)
	pumpDone := make(chan struct{})
	go d.readPump(frames, stop, pumpDone)

	// A write to a peer that stopped reading never returns on its own.
	// Once the task is released, closing the socket unblocks it.
	writesDone := make(chan struct{})
	unwatch := context.AfterFunc(ctx, func() {
		t := time.NewTimer(stopGrace)
		defer t.Stop()
		select {
		case <-writesDone:
		case <-t.C:
			d.logger.Warn("driver blocked in socket write after release, closing socket")
			_ = d.sock.Close()
		}
	})
	defer unwatch()

	reason := d.loop(ctx, frames)

	close(stop)
	d.inbound.Close()
	dropped := d.outbound.Abandon()

	switch reason {
	case ExitReadFailed, ExitWriteFailed:
	default:
		// Best effort; the peer may already be gone.
		_ = d.send.WriteFrame(transport.NormalClosure(""))
	}
	close(writesDone)
	_ = d.sock.Close()
	<-pumpDone

	d.hooks.OnExit(reason)
	d.logger.Info("connection handler loop ended",
		zap.String("reason", reason),
		zap.Int("dropped_outgoing", dropped),
	)
}

func (d *driver) loop(ctx context.Context, frames <-chan readResult) string {
	timer := time.NewTimer(d.keepalive)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExitStopped

		case <-timer.C:
			d.logger.Debug("sending keepalive ping")
			if err := d.write(protocol.Ping{}); err != nil {
				return d.writeFailed(ctx, "failed to send ping", err)
			}
			timer.Reset(d.keepalive)

		case <-d.outbound.Ready():
			msg, ok, done := d.outbound.TryPop()
			if done {
				d.logger.Info("outgoing senders closed, closing connection")
				return ExitSendersClosed
			}
			if !ok {
				continue
			}
			d.logger.Debug("sending outgoing message", zap.String("type", msg.Kind()))
			if err := d.write(msg); err != nil {
				return d.writeFailed(ctx, "failed to send outgoing message", err)
			}

		case r := <-frames:
			if r.err != nil {
				if ctx.Err() == nil {
					d.logger.Warn("stream ended unexpectedly", zap.Error(r.err))
				}
				return ExitReadFailed
			}
			if reason, stop := d.handleFrame(r.frame); stop {
				return reason
			}
		}
	}
}

// writeFailed classifies a failed write. A write cut short because the
// task was released is a stop, not a socket failure.
func (d *driver) writeFailed(ctx context.Context, msg string, err error) string {
	if ctx.Err() != nil {
		d.logger.Debug(msg+" during release", zap.Error(err))
		return ExitStopped
	}
	d.logger.Error(msg, zap.Error(err))
	return ExitWriteFailed
}

// write encodes and sends msg. Encoding failures are logged and the
// message dropped; only socket failures are returned.
func (d *driver) write(msg protocol.OutgoingMessage) error {
	payload, err := protocol.EncodeOutbound(msg)
	if err != nil {
		d.logger.Error("failed to serialize outgoing message", zap.Error(err))
		return nil
	}
	if err := d.send.WriteFrame(transport.Text(payload)); err != nil {
		return err
	}
	d.hooks.OnFrameSent(msg.Kind())
	return nil
}

func (d *driver) handleFrame(f transport.Frame) (reason string, stop bool) {
	switch f.Op {
	case transport.OpText:
		return d.handleText(f.Payload)
	case transport.OpClose:
		d.logger.Info("connection closed by server")
		return ExitPeerClosed, true
	case transport.OpPing, transport.OpPong:
		d.logger.Debug("received transport control frame", zap.Stringer("op", f.Op))
	default:
		d.logger.Debug("ignoring frame", zap.Stringer("op", f.Op), zap.Int("size", len(f.Payload)))
	}
	return "", false
}

func (d *driver) handleText(payload []byte) (reason string, stop bool) {
	if !utf8.Valid(payload) {
		d.hooks.OnDecodeFailure()
		d.warn.Do(func() { d.logger.Warn("received non-UTF8 text frame") })
		return "", false
	}

	msg, err := protocol.DecodeInbound(payload)
	if err != nil {
		d.hooks.OnDecodeFailure()
		d.warn.Do(func() {
			d.logger.Warn("failed to parse message",
				zap.Error(err),
				zap.ByteString("raw", truncate(payload, maxLoggedPayload)),
			)
		})
		return "", false
	}
	d.hooks.OnFrameReceived(msg.Kind())

	switch m := msg.(type) {
	case protocol.Heartbeat:
		d.logger.Debug("received pong")
		return "", false
	case protocol.Unknown:
		d.warn.Do(func() { d.logger.Warn("ignoring unrecognised message", zap.String("type", m.Type)) })
		return "", false
	case protocol.Connected:
		d.logger.Info("connected",
			zap.String("user_id", m.UserID),
			zap.String("method", string(m.Method)),
		)
	case protocol.UnreadBatch:
		d.logger.Info("unread notifications", zap.Int("count", m.Count))
	case protocol.Event:
		d.logger.Info("new notification",
			zap.String("event", m.Name),
			zap.String("notification_id", m.Item.ID),
		)
	}

	if err := d.inbound.Push(msg); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			d.logger.Warn("message consumer gone, closing connection")
		}
		return ExitConsumerGone, true
	}
	return "", false
}

// readPump owns the receive half. It stops after delivering an error or
// a close frame, or once stop is closed.
func (d *driver) readPump(frames chan<- readResult, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		f, err := d.recv.ReadFrame()
		select {
		case frames <- readResult{frame: f, err: err}:
		case <-stop:
			return
		}
		if err != nil || f.Op == transport.OpClose {
			return
		}
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
