package stream

import (
	"context"
	"iter"
	"sync"

	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/queue"
)

// DriverTask is the lifetime of a spawned driver.
type DriverTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the driver has exited and released the socket.
func (t *DriverTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the driver exits on its own.
func (t *DriverTask) Wait() { <-t.done }

// Stop releases the task: the driver is cancelled and Stop returns once it
// has exited. Safe to call more than once and after the driver has ended.
func (t *DriverTask) Stop() {
	t.cancel()
	<-t.done
}

// MessageStream yields inbound messages in the order they were received.
// It has a single consumer.
type MessageStream struct {
	q *queue.Queue[protocol.InboundMessage]
}

// Next blocks for the next message. ok is false once the driver has ended
// and every delivered message was consumed, or when ctx is cancelled.
func (s *MessageStream) Next(ctx context.Context) (msg protocol.InboundMessage, ok bool) {
	return s.q.Pop(ctx)
}

// All ranges over the stream until it ends or ctx is cancelled.
func (s *MessageStream) All(ctx context.Context) iter.Seq[protocol.InboundMessage] {
	return func(yield func(protocol.InboundMessage) bool) {
		for {
			msg, ok := s.q.Pop(ctx)
			if !ok || !yield(msg) {
				return
			}
		}
	}
}

// Close tells the driver nobody is listening any more. Pending messages
// are discarded and the driver exits on its next delivery attempt.
func (s *MessageStream) Close() {
	s.q.Abandon()
}

// OutgoingSender enqueues control messages for the driver. Send never
// blocks. Every handle obtained from Clone must be closed; when the last
// one is, the driver flushes what was queued and ends the connection.
type OutgoingSender struct {
	shared *senderShared

	mu     sync.Mutex
	closed bool
}

type senderShared struct {
	q    *queue.Queue[protocol.OutgoingMessage]
	mu   sync.Mutex
	refs int
}

func newOutgoingSender(q *queue.Queue[protocol.OutgoingMessage]) *OutgoingSender {
	return &OutgoingSender{shared: &senderShared{q: q, refs: 1}}
}

// Send queues msg. It returns domain.ErrConnectionClosed if this handle was
// closed or the driver has already ended.
func (s *OutgoingSender) Send(msg protocol.OutgoingMessage) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrConnectionClosed
	}
	if err := s.shared.q.Push(msg); err != nil {
		return domain.ErrConnectionClosed
	}
	return nil
}

// MarkRead queues a read receipt for the given notification.
func (s *OutgoingSender) MarkRead(notificationID string) error {
	if notificationID == "" {
		return domain.ErrEmptyNotification
	}
	return s.Send(protocol.MarkRead{NotificationID: notificationID})
}

// Clone returns another handle onto the same queue. Cloning a closed
// handle yields a closed handle.
func (s *OutgoingSender) Clone() *OutgoingSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &OutgoingSender{shared: s.shared, closed: true}
	}

	s.shared.mu.Lock()
	s.shared.refs++
	s.shared.mu.Unlock()
	return &OutgoingSender{shared: s.shared}
}

// Close releases this handle. Closing it twice is a no-op.
func (s *OutgoingSender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.shared.mu.Lock()
	s.shared.refs--
	last := s.shared.refs == 0
	s.shared.mu.Unlock()

	if last {
		s.shared.q.Close()
	}
}

// Pending returns how many messages are waiting to be written.
func (s *OutgoingSender) Pending() int {
	return s.shared.q.Len()
}
