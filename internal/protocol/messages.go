package protocol

import "github.com/notifyhub/notify-stream/internal/domain"

// Wire discriminators.
const (
	TypeConnected           = "connected"
	TypeUnreadNotifications = "unread_notifications"
	TypeNotification        = "notification"
	TypePong                = "pong"
	TypeMarkRead            = "mark_read"
	TypePing                = "ping"
)

// KnownType reports whether t is one of the discriminators above.
func KnownType(t string) bool {
	switch t {
	case TypeConnected, TypeUnreadNotifications, TypeNotification, TypePong, TypeMarkRead, TypePing:
		return true
	}
	return false
}

// Method is how the service delivers events to this session.
type Method string

const (
	MethodPolling  Method = "polling"
	MethodRealtime Method = "realtime"
)

// InboundMessage is a frame received from the service.
// The concrete type is one of Connected, UnreadBatch, Event, Heartbeat or Unknown.
type InboundMessage interface {
	// Kind returns the wire discriminator the message was decoded from.
	Kind() string
	inbound()
}

// Connected is sent once after the socket is accepted.
type Connected struct {
	UserID    string
	Timestamp string
	// Method is empty when the service omits it.
	Method Method
}

// UnreadBatch carries the notifications that were unread when the session began.
type UnreadBatch struct {
	Count int
	Items []domain.Notification
}

// Event is a single notification pushed while the session is live.
type Event struct {
	Name string
	Item domain.Notification
}

// Heartbeat is the service's reply to a ping.
type Heartbeat struct{}

// Unknown is any frame with a discriminator this client does not know.
type Unknown struct {
	Type string
	Raw  []byte
}

func (Connected) Kind() string   { return TypeConnected }
func (UnreadBatch) Kind() string { return TypeUnreadNotifications }
func (Event) Kind() string       { return TypeNotification }
func (Heartbeat) Kind() string   { return TypePong }
func (u Unknown) Kind() string   { return u.Type }

func (Connected) inbound()   {}
func (UnreadBatch) inbound() {}
func (Event) inbound()       {}
func (Heartbeat) inbound()   {}
func (Unknown) inbound()     {}

// OutgoingMessage is a control message sent to the service.
// The concrete type is MarkRead or Ping.
type OutgoingMessage interface {
	Kind() string
	outgoing()
}

// MarkRead acknowledges a notification.
type MarkRead struct {
	NotificationID string
}

// Ping is the application-level keepalive.
type Ping struct{}

func (MarkRead) Kind() string { return TypeMarkRead }
func (Ping) Kind() string     { return TypePing }

func (MarkRead) outgoing() {}
func (Ping) outgoing()     {}
