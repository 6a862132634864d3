package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/client"
	"github.com/notifyhub/notify-stream/internal/credential"
	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/inbox"
	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/stream"
)

// Hooks carries metric callbacks so the service stays metrics-agnostic.
// Nil fields are no-ops.
type Hooks struct {
	OnSession   func(up bool)
	OnInbox     func(inbox.Stats)
	OnDisplayed func(domain.Severity)
}

func (h Hooks) withDefaults() Hooks {
	if h.OnSession == nil {
		h.OnSession = func(bool) {}
	}
	if h.OnInbox == nil {
		h.OnInbox = func(inbox.Stats) {}
	}
	if h.OnDisplayed == nil {
		h.OnDisplayed = func(domain.Severity) {}
	}
	return h
}

// Status describes the live session, if any.
type Status struct {
	Connected   bool            `json:"connected"`
	UserID      string          `json:"user_id,omitempty"`
	Method      protocol.Method `json:"method,omitempty"`
	ConnectedAt *time.Time      `json:"connected_at,omitempty"`
}

// session is one spawned connection plus the goroutine consuming it.
type session struct {
	stream *stream.MessageStream
	sender *stream.OutgoingSender
	task   *stream.DriverTask
}

// release hands every handle back and waits for the driver to exit.
func (sess *session) release() {
	sess.stream.Close()
	sess.sender.Close()
	sess.task.Stop()
}

// NotificationService owns the client, the inbox and at most one live session.
// HTTP handlers and the startup auto-connect depend on this service, not on
// the stream package directly.
type NotificationService struct {
	client *client.Client
	creds  credential.Store
	box    *inbox.Inbox
	sink   Sink
	logger *zap.Logger
	hooks  Hooks

	// ctx bounds every driver and consumer; request contexts only bound dialling.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	sess       *session
	connecting bool
	closed     bool
	status     Status
}

// NewNotificationService wires the service. creds may be nil, in which case
// only an explicit token or the client's cached one can be used.
func NewNotificationService(
	c *client.Client,
	creds credential.Store,
	box *inbox.Inbox,
	sink Sink,
	logger *zap.Logger,
	hooks Hooks,
) *NotificationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationService{
		client: c,
		creds:  creds,
		box:    box,
		sink:   sink,
		logger: logger,
		hooks:  hooks.withDefaults(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect makes a single connection attempt and starts consuming it.
// An empty token falls back to the client's cached credential and then to
// the credential store. It returns domain.ErrAlreadyConnected while a
// session is live or another attempt is in flight.
func (s *NotificationService) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrConnectionClosed
	}
	if s.sess != nil || s.connecting {
		s.mu.Unlock()
		return domain.ErrAlreadyConnected
	}
	s.connecting = true
	s.mu.Unlock()

	sess, err := s.open(ctx, token)

	s.mu.Lock()
	s.connecting = false
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.closed {
		// Close ran while dialling; it is not waiting for this session.
		s.mu.Unlock()
		sess.release()
		return domain.ErrConnectionClosed
	}
	s.sess = sess
	s.status = Status{Connected: true}
	// Tracked before the lock is released so Close always waits for it.
	s.wg.Add(1)
	s.mu.Unlock()

	s.hooks.OnSession(true)

	consumer := newConsumer(s, sess)
	go func() {
		defer s.wg.Done()
		consumer.Run(s.ctx)
		s.endSession(sess)
	}()
	return nil
}

func (s *NotificationService) open(ctx context.Context, token string) (*session, error) {
	if token == "" && s.client.Token() == "" && s.creds != nil {
		stored, err := s.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored credential: %w", err)
		}
		token = stored
	}

	conn, err := s.client.Connect(ctx, token)
	if err != nil {
		return nil, err
	}

	st, sender, task, err := conn.Spawn(s.ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("spawn driver: %w", err)
	}
	return &session{stream: st, sender: sender, task: task}, nil
}

// AutoConnect is the startup path: it connects with whatever credential is
// stored. A missing credential is not an error; the user can connect later.
func (s *NotificationService) AutoConnect(ctx context.Context) error {
	err := s.Connect(ctx, "")
	if errors.Is(err, domain.ErrNoCredential) {
		s.logger.Info("no stored credential; waiting for an explicit connect")
		return nil
	}
	return err
}

// Disconnect ends the live session. It returns domain.ErrNotConnected if
// there is none.
func (s *NotificationService) Disconnect() error {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return domain.ErrNotConnected
	}

	sess.sender.Close()
	sess.task.Stop()
	return nil
}

// MarkRead marks a notification read locally and queues the receipt for the
// service. The id must be in the inbox and a session must be live.
func (s *NotificationService) MarkRead(id string) error {
	if _, ok := s.box.Get(id); !ok {
		return domain.ErrNotFound
	}

	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()
	if sess == nil {
		return domain.ErrNotConnected
	}

	if err := sess.sender.MarkRead(id); err != nil {
		if errors.Is(err, domain.ErrConnectionClosed) {
			return domain.ErrNotConnected
		}
		return fmt.Errorf("queue mark_read: %w", err)
	}
	if err := s.box.MarkRead(id); err != nil {
		return err
	}
	s.hooks.OnInbox(s.box.Stats())
	return nil
}

func (s *NotificationService) List(unreadOnly bool) []inbox.Entry {
	return s.box.List(unreadOnly)
}

func (s *NotificationService) Stats() inbox.Stats {
	return s.box.Stats()
}

func (s *NotificationService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close ends any live session and waits for its consumer to finish.
// The service cannot be reconnected afterwards.
func (s *NotificationService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// endSession releases a finished session. The driver has already ended or
// is about to, because the stream only closes once the driver exits.
func (s *NotificationService) endSession(sess *session) {
	sess.release()

	s.mu.Lock()
	if s.sess == sess {
		s.sess = nil
		s.status = Status{}
	}
	s.mu.Unlock()

	s.hooks.OnSession(false)
	s.logger.Info("session ended")
}

func (s *NotificationService) setConnected(msg protocol.Connected) {
	now := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
		now = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.UserID = msg.UserID
	s.status.Method = msg.Method
	s.status.ConnectedAt = &now
}
