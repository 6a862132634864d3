package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// object is a decoded JSON object. Lookups are by exact key, unlike
// struct decoding, which also accepts keys differing only in case.
type object map[string]json.RawMessage

func decodeObject(data []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected an object")
	}
	return obj, nil
}

// required decodes key into dst. A missing key or a null value is an error.
func (o object) required(key string, dst any) error {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("missing %q", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%q: %w", key, err)
	}
	return nil
}

// optional decodes key into dst when present and not null.
func (o object) optional(key string, dst any) error {
	raw, ok := o[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%q: %w", key, err)
	}
	return nil
}

// decodeItem reads a notification item. Every field except the action
// pair is required.
func decodeItem(raw json.RawMessage) (domain.Notification, error) {
	var n domain.Notification
	obj, err := decodeObject(raw)
	if err != nil {
		return n, err
	}
	for _, f := range []struct {
		key string
		dst any
	}{
		{"id", &n.ID},
		{"title", &n.Title},
		{"message", &n.Body},
		{"type", &n.Severity},
		{"priority", &n.Priority},
		{"createdAt", &n.CreatedAt},
	} {
		if err := obj.required(f.key, f.dst); err != nil {
			return n, err
		}
	}
	if err := obj.optional("actionUrl", &n.ActionURL); err != nil {
		return n, err
	}
	if err := obj.optional("actionLabel", &n.ActionLabel); err != nil {
		return n, err
	}
	return n, n.Validate()
}

type markReadWire struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId"`
}

type pingWire struct {
	Type string `json:"type"`
}

// DecodeInbound parses a single text frame.
//
// Malformed JSON, a missing discriminator, or a known discriminator with
// an invalid body yields an error wrapping domain.ErrMalformedFrame. An
// unrecognised discriminator yields Unknown and no error.
func DecodeInbound(data []byte) (InboundMessage, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	var kind string
	if err := obj.required("type", &kind); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}

	switch kind {
	case TypeConnected:
		var m Connected
		if err := obj.required("userId", &m.UserID); err != nil {
			return nil, malformed(kind, err)
		}
		if err := obj.required("timestamp", &m.Timestamp); err != nil {
			return nil, malformed(kind, err)
		}
		if err := obj.optional("method", &m.Method); err != nil {
			return nil, malformed(kind, err)
		}
		return m, nil

	case TypeUnreadNotifications:
		var m UnreadBatch
		var raws []json.RawMessage
		if err := obj.required("count", &m.Count); err != nil {
			return nil, malformed(kind, err)
		}
		if err := obj.required("notifications", &raws); err != nil {
			return nil, malformed(kind, err)
		}
		m.Items = make([]domain.Notification, 0, len(raws))
		for i, raw := range raws {
			n, err := decodeItem(raw)
			if err != nil {
				return nil, malformed(kind, fmt.Errorf("notifications[%d]: %w", i, err))
			}
			m.Items = append(m.Items, n)
		}
		return m, nil

	case TypeNotification:
		var m Event
		var raw json.RawMessage
		if err := obj.required("event", &m.Name); err != nil {
			return nil, malformed(kind, err)
		}
		if err := obj.required("data", &raw); err != nil {
			return nil, malformed(kind, err)
		}
		if m.Item, err = decodeItem(raw); err != nil {
			return nil, malformed(kind, fmt.Errorf("data: %w", err))
		}
		return m, nil

	case TypePong:
		return Heartbeat{}, nil

	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return Unknown{Type: kind, Raw: raw}, nil
	}
}

// EncodeOutbound renders a control message as a JSON text frame payload.
func EncodeOutbound(msg OutgoingMessage) ([]byte, error) {
	switch m := msg.(type) {
	case MarkRead:
		return json.Marshal(markReadWire{Type: TypeMarkRead, NotificationID: m.NotificationID})
	case Ping:
		return json.Marshal(pingWire{Type: TypePing})
	case nil:
		return nil, fmt.Errorf("encode outbound: nil message")
	default:
		return nil, fmt.Errorf("encode outbound: unsupported message %T", msg)
	}
}

func malformed(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrMalformedFrame, kind, err)
}
