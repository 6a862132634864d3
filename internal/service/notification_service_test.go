package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/notify-stream/internal/client"
	"github.com/notifyhub/notify-stream/internal/credential"
	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/inbox"
	"github.com/notifyhub/notify-stream/internal/protocol"
	"github.com/notifyhub/notify-stream/internal/service"
	"github.com/notifyhub/notify-stream/internal/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type recordingSink struct {
	mu    sync.Mutex
	shown []domain.Notification
}

func (r *recordingSink) Show(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, n)
}

func (r *recordingSink) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.shown))
	for _, n := range r.shown {
		ids = append(ids, n.ID)
	}
	return ids
}

type fixture struct {
	svc    *service.NotificationService
	sock   *transport.MockSocket
	dialer *transport.MockDialer
	sink   *recordingSink
	box    *inbox.Inbox

	mu       sync.Mutex
	sessions []bool
}

func (f *fixture) Sessions() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.sessions...)
}

func newFixture(t *testing.T, creds credential.Store) *fixture {
	t.Helper()

	f := &fixture{
		sock: transport.NewMockSocket(),
		sink: &recordingSink{},
		box:  inbox.New(),
	}
	f.dialer = &transport.MockDialer{Socket: f.sock}

	c, err := client.New(f.dialer, "wss://notify.example.com", time.Minute, zap.NewNop(), client.Hooks{})
	require.NoError(t, err)

	f.svc = service.NewNotificationService(c, creds, f.box, f.sink, zap.NewNop(), service.Hooks{
		OnSession: func(up bool) {
			f.mu.Lock()
			f.sessions = append(f.sessions, up)
			f.mu.Unlock()
		},
	})
	t.Cleanup(f.svc.Close)
	return f
}

const (
	connectedFrame = `{"type":"connected","userId":"u1","timestamp":"2024-05-01T10:00:00Z","method":"realtime"}`
	eventFrame     = `{"type":"notification","event":"new","data":{"id":"abc","title":"Build","message":"done","type":"success","priority":1,"createdAt":"2024-05-01T10:20:30Z"}}`
	backlogFrame   = `{"type":"unread_notifications","count":2,"notifications":[` +
		`{"id":"b1","title":"Old","message":"one","type":"info","priority":0,"createdAt":"2024-04-30T09:00:00Z"},` +
		`{"id":"b2","title":"Old","message":"two","type":"warning","priority":2,"createdAt":"2024-04-30T09:05:00Z"}]}`
)

func TestConnect_ConnectedUpdatesStatus(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.Connect(context.Background(), "tok"))
	assert.True(t, f.svc.Status().Connected)

	f.sock.DeliverText(connectedFrame)

	require.Eventually(t, func() bool { return f.svc.Status().UserID == "u1" }, waitFor, tick)
	st := f.svc.Status()
	assert.Equal(t, protocol.MethodRealtime, st.Method)
	require.NotNil(t, st.ConnectedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), st.ConnectedAt.UTC())
}

func TestConnect_AlreadyConnected(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.Connect(context.Background(), "tok"))
	err := f.svc.Connect(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrAlreadyConnected)
	assert.Len(t, f.dialer.URLs(), 1)
}

func TestConnect_NoCredential(t *testing.T) {
	f := newFixture(t, credential.Chain{})

	err := f.svc.Connect(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrNoCredential)
	assert.False(t, f.svc.Status().Connected)
	assert.Empty(t, f.dialer.URLs())

	assert.NoError(t, f.svc.AutoConnect(context.Background()), "missing credential is not fatal at startup")
}

func TestConnect_UsesStoredCredential(t *testing.T) {
	f := newFixture(t, credential.Static("stored-code"))

	require.NoError(t, f.svc.AutoConnect(context.Background()))

	urls := f.dialer.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "token=stored-code")
}

func TestConnect_TransportFailureLeavesServiceReusable(t *testing.T) {
	f := newFixture(t, nil)
	f.dialer.Err = errors.New("dial tcp: connection refused")

	err := f.svc.Connect(context.Background(), "tok")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.False(t, f.svc.Status().Connected)

	f.dialer.Err = nil
	require.NoError(t, f.svc.Connect(context.Background(), ""), "cached token is reused on the next attempt")
	assert.True(t, f.svc.Status().Connected)
}

func TestBacklogFillsInboxWithoutDisplay(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.sock.DeliverText(backlogFrame)

	require.Eventually(t, func() bool { return f.svc.Stats().Total == 2 }, waitFor, tick)
	assert.Empty(t, f.sink.IDs())
	assert.Equal(t, inbox.Stats{Total: 2, Unread: 2}, f.svc.Stats())
}

func TestDuplicateNotificationDisplayedOnce(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.sock.DeliverText(eventFrame)
	f.sock.DeliverText(eventFrame)
	f.sock.DeliverText(connectedFrame)

	// connected arrives after both events, so once it is applied both were processed.
	require.Eventually(t, func() bool { return f.svc.Status().UserID == "u1" }, waitFor, tick)

	assert.Equal(t, []string{"abc"}, f.sink.IDs())
	assert.Len(t, f.svc.List(false), 1)
}

func TestEventAlreadyInBacklogIsNotDisplayed(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.sock.DeliverText(`{"type":"unread_notifications","count":1,"notifications":[` +
		`{"id":"abc","title":"Build","message":"done","type":"success","priority":1,"createdAt":"2024-05-01T10:20:30Z"}]}`)
	f.sock.DeliverText(eventFrame)
	f.sock.DeliverText(connectedFrame)

	require.Eventually(t, func() bool { return f.svc.Status().UserID == "u1" }, waitFor, tick)
	assert.Empty(t, f.sink.IDs())
	assert.Equal(t, 1, f.svc.Stats().Total)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	assert.ErrorIs(t, f.svc.MarkRead("missing"), domain.ErrNotFound)

	f.sock.DeliverText(eventFrame)
	require.Eventually(t, func() bool { return f.svc.Stats().Total == 1 }, waitFor, tick)

	require.NoError(t, f.svc.MarkRead("abc"))

	frame, ok := f.sock.NextWrite(waitFor)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"mark_read","notificationId":"abc"}`, string(frame.Payload))
	assert.Empty(t, f.svc.List(true))
	assert.Equal(t, inbox.Stats{Total: 1, Unread: 0}, f.svc.Stats())
}

func TestMarkRead_NotConnectedAfterPeerClose(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.sock.DeliverText(eventFrame)
	require.Eventually(t, func() bool { return f.svc.Stats().Total == 1 }, waitFor, tick)

	f.sock.DeliverClose()
	require.Eventually(t, func() bool { return !f.svc.Status().Connected }, waitFor, tick)

	assert.ErrorIs(t, f.svc.MarkRead("abc"), domain.ErrNotConnected)
	got, _ := f.box.Get("abc")
	assert.False(t, got.Read, "a receipt that was never queued must not mark the item read")
	require.Eventually(t, func() bool { return len(f.Sessions()) == 2 }, waitFor, tick)
	assert.Equal(t, []bool{true, false}, f.Sessions())
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.svc.Disconnect(), domain.ErrNotConnected)

	require.NoError(t, f.svc.Connect(context.Background(), "tok"))
	require.NoError(t, f.svc.Disconnect())

	select {
	case <-f.sock.Closed():
	case <-time.After(waitFor):
		t.Fatal("socket was not closed")
	}
	require.Eventually(t, func() bool { return !f.svc.Status().Connected }, waitFor, tick)
}

func TestReconnectAfterSessionEnds(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.sock.DeliverClose()
	require.Eventually(t, func() bool { return !f.svc.Status().Connected }, waitFor, tick)

	f.dialer.Socket = transport.NewMockSocket()
	require.NoError(t, f.svc.Connect(context.Background(), ""))
	assert.True(t, f.svc.Status().Connected)
}

func TestClose_EndsSession(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Connect(context.Background(), "tok"))

	f.svc.Close()

	select {
	case <-f.sock.Closed():
	default:
		t.Fatal("Close must not return before the socket is released")
	}
	assert.False(t, f.svc.Status().Connected)
	assert.ErrorIs(t, f.svc.Connect(context.Background(), "tok"), domain.ErrConnectionClosed)
}

// gatedDialer holds Dial until release is closed.
type gatedDialer struct {
	inner   *transport.MockDialer
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDialer) Dial(ctx context.Context, url string) (transport.Socket, error) {
	close(d.entered)
	<-d.release
	return d.inner.Dial(ctx, url)
}

func TestClose_DuringDialDiscardsSession(t *testing.T) {
	sock := transport.NewMockSocket()
	d := &gatedDialer{
		inner:   &transport.MockDialer{Socket: sock},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, err := client.New(d, "wss://notify.example.com", time.Minute, zap.NewNop(), client.Hooks{})
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		sessions []bool
	)
	svc := service.NewNotificationService(c, nil, inbox.New(), &recordingSink{}, zap.NewNop(), service.Hooks{
		OnSession: func(up bool) {
			mu.Lock()
			sessions = append(sessions, up)
			mu.Unlock()
		},
	})

	connectErr := make(chan error, 1)
	go func() { connectErr <- svc.Connect(context.Background(), "tok") }()
	<-d.entered

	closed := make(chan struct{})
	go func() {
		svc.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close blocked on a dial that has not produced a session")
	}

	close(d.release)
	select {
	case err := <-connectErr:
		assert.ErrorIs(t, err, domain.ErrConnectionClosed)
	case <-time.After(waitFor):
		t.Fatal("Connect did not return")
	}

	select {
	case <-sock.Closed():
	case <-time.After(waitFor):
		t.Fatal("socket opened after Close was not released")
	}
	assert.False(t, svc.Status().Connected)
	mu.Lock()
	assert.Empty(t, sessions, "no session may start after Close")
	mu.Unlock()
}

func TestLogSink(t *testing.T) {
	url := "https://example.com/runs/1"
	sink := service.NewLogSink(zap.NewNop())
	// Exercised for every severity; the sink must not panic on optional fields.
	for _, sev := range []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityError, "custom"} {
		sink.Show(domain.Notification{ID: "x", Title: "t", Body: "b", Severity: sev, ActionURL: &url})
	}
	sink.Show(domain.Notification{ID: "y"})
}
