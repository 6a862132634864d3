package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMockClosed is returned by MockSocket once it has been closed.
var ErrMockClosed = errors.New("mock socket closed")

type mockRead struct {
	frame Frame
	err   error
}

// MockSocket is a hand-written, in-memory Socket used in unit tests.
// The test plays the peer: Deliver* queues frames for ReadFrame, and
// every WriteFrame is recorded.
type MockSocket struct {
	incoming chan mockRead
	writes   chan Frame

	mu       sync.Mutex
	written  []Frame
	writeErr error

	closeOnce sync.Once
	closed    chan struct{}
}

func NewMockSocket() *MockSocket {
	return &MockSocket{
		incoming: make(chan mockRead, 256),
		writes:   make(chan Frame, 1024),
		closed:   make(chan struct{}),
	}
}

// Deliver queues a frame as if the peer had sent it.
func (m *MockSocket) Deliver(f Frame) {
	select {
	case m.incoming <- mockRead{frame: f}:
	case <-m.closed:
	}
}

// DeliverText queues a text frame.
func (m *MockSocket) DeliverText(s string) {
	m.Deliver(Text([]byte(s)))
}

// DeliverClose queues a close frame from the peer.
func (m *MockSocket) DeliverClose() {
	m.Deliver(Frame{Op: OpClose})
}

// FailRead makes the next pending read return err.
func (m *MockSocket) FailRead(err error) {
	select {
	case m.incoming <- mockRead{err: err}:
	case <-m.closed:
	}
}

// SetWriteError makes every later WriteFrame fail with err (nil restores).
func (m *MockSocket) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

func (m *MockSocket) ReadFrame() (Frame, error) {
	// Drain what the peer already sent before reporting closure.
	select {
	case r := <-m.incoming:
		return r.frame, r.err
	default:
	}
	select {
	case r := <-m.incoming:
		return r.frame, r.err
	case <-m.closed:
		return Frame{}, ErrMockClosed
	}
}

func (m *MockSocket) WriteFrame(f Frame) error {
	select {
	case <-m.closed:
		return ErrMockClosed
	default:
	}

	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	clone := Frame{Op: f.Op, Payload: append([]byte(nil), f.Payload...)}
	m.written = append(m.written, clone)
	m.mu.Unlock()

	select {
	case m.writes <- clone:
	default:
	}
	return nil
}

func (m *MockSocket) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Closed is closed once Close has been called.
func (m *MockSocket) Closed() <-chan struct{} { return m.closed }

// Written returns a copy of every frame written so far.
func (m *MockSocket) Written() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.written))
	copy(out, m.written)
	return out
}

// WrittenText returns the payloads of every text frame written so far.
func (m *MockSocket) WrittenText() []string {
	var out []string
	for _, f := range m.Written() {
		if f.Op == OpText {
			out = append(out, string(f.Payload))
		}
	}
	return out
}

// NextWrite waits up to timeout for the next written frame.
func (m *MockSocket) NextWrite(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-m.writes:
		return f, true
	case <-time.After(timeout):
		return Frame{}, false
	}
}

// MockDialer hands out a prepared socket, or fails with Err.
type MockDialer struct {
	mu     sync.Mutex
	Socket Socket
	Err    error
	urls   []string
}

func (d *MockDialer) Dial(ctx context.Context, url string) (Socket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Socket, nil
}

// URLs returns every URL dialled, in order.
func (d *MockDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

var (
	_ Socket = (*MockSocket)(nil)
	_ Dialer = (*MockDialer)(nil)
)
