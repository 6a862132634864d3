package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/notify-stream/internal/domain"
	"github.com/notifyhub/notify-stream/internal/protocol"
)

const itemJSON = `{"id":"abc","title":"Build failed","message":"main is red","type":"error","priority":200,"actionUrl":"https://ci.example.com/1","actionLabel":"Open","createdAt":"2024-05-01T10:20:30Z"}`

func TestDecodeInbound_Connected(t *testing.T) {
	msg, err := protocol.DecodeInbound([]byte(`{"type":"connected","userId":"u1","timestamp":"t","method":"realtime"}`))
	require.NoError(t, err)

	got, ok := msg.(protocol.Connected)
	require.True(t, ok, "expected Connected, got %T", msg)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "t", got.Timestamp)
	assert.Equal(t, protocol.MethodRealtime, got.Method)
	assert.Equal(t, protocol.TypeConnected, got.Kind())
}

func TestDecodeInbound_ConnectedWithoutMethod(t *testing.T) {
	msg, err := protocol.DecodeInbound([]byte(`{"type":"connected","userId":"u1","timestamp":"t"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.Method(""), msg.(protocol.Connected).Method)
}

func TestDecodeInbound_UnreadBatch(t *testing.T) {
	frame := `{"type":"unread_notifications","count":2,"notifications":[` + itemJSON + `,{"id":"def","title":"t","message":"m","type":"info","priority":0,"createdAt":"2024-05-01T10:20:31Z"}]}`

	msg, err := protocol.DecodeInbound([]byte(frame))
	require.NoError(t, err)

	got := msg.(protocol.UnreadBatch)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "abc", got.Items[0].ID)
	assert.Nil(t, got.Items[1].ActionURL)
}

func TestDecodeInbound_Event(t *testing.T) {
	msg, err := protocol.DecodeInbound([]byte(`{"type":"notification","event":"build.failed","data":` + itemJSON + `}`))
	require.NoError(t, err)

	got := msg.(protocol.Event)
	assert.Equal(t, "build.failed", got.Name)
	assert.Equal(t, "abc", got.Item.ID)
	assert.Equal(t, "Build failed", got.Item.Title)
	assert.Equal(t, "main is red", got.Item.Body)
	assert.Equal(t, domain.SeverityError, got.Item.Severity)
	assert.Equal(t, uint8(200), got.Item.Priority)
	require.NotNil(t, got.Item.ActionURL)
	assert.Equal(t, "https://ci.example.com/1", *got.Item.ActionURL)
	require.NotNil(t, got.Item.ActionLabel)
	assert.Equal(t, "Open", *got.Item.ActionLabel)
	assert.Equal(t, "2024-05-01T10:20:30Z", got.Item.CreatedAt)
}

func TestDecodeInbound_Pong(t *testing.T) {
	msg, err := protocol.DecodeInbound([]byte(`{"type":"pong"}`))
	require.NoError(t, err)
	assert.Equal(t, protocol.Heartbeat{}, msg)
}

func TestDecodeInbound_UnknownType(t *testing.T) {
	raw := []byte(`{"type":"presence","userId":"u2"}`)
	msg, err := protocol.DecodeInbound(raw)
	require.NoError(t, err)

	got, ok := msg.(protocol.Unknown)
	require.True(t, ok, "expected Unknown, got %T", msg)
	assert.Equal(t, "presence", got.Kind())
	assert.JSONEq(t, string(raw), string(got.Raw))
}

func TestDecodeInbound_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"truncated", `{"type":"connected"`},
		{"missing type", `{"userId":"u1"}`},
		{"type not a string", `{"type":5}`},
		{"notification without data", `{"type":"notification","event":"e"}`},
		{"notification without id", `{"type":"notification","event":"e","data":{"title":"x"}}`},
		{"priority out of range", `{"type":"notification","event":"e","data":{"id":"a","priority":300}}`},
		{"batch item without id", `{"type":"unread_notifications","count":1,"notifications":[{"title":"x"}]}`},
		{"count not a number", `{"type":"unread_notifications","count":"one","notifications":[]}`},
		{"item with only an id", `{"type":"notification","event":"e","data":{"id":"abc"}}`},
		{"item without title", `{"type":"notification","event":"e","data":{"id":"a","message":"m","type":"info","priority":1,"createdAt":"2024-05-01T10:20:30Z"}}`},
		{"item without message", `{"type":"notification","event":"e","data":{"id":"a","title":"t","type":"info","priority":1,"createdAt":"2024-05-01T10:20:30Z"}}`},
		{"item without severity", `{"type":"notification","event":"e","data":{"id":"a","title":"t","message":"m","priority":1,"createdAt":"2024-05-01T10:20:30Z"}}`},
		{"item without priority", `{"type":"notification","event":"e","data":{"id":"a","title":"t","message":"m","type":"info","createdAt":"2024-05-01T10:20:30Z"}}`},
		{"item without createdAt", `{"type":"notification","event":"e","data":{"id":"a","title":"t","message":"m","type":"info","priority":1}}`},
		{"item with null title", `{"type":"notification","event":"e","data":{"id":"a","title":null,"message":"m","type":"info","priority":1,"createdAt":"2024-05-01T10:20:30Z"}}`},
		{"notification without event", `{"type":"notification","data":` + itemJSON + `}`},
		{"batch item with only an id", `{"type":"unread_notifications","count":1,"notifications":[{"id":"a"}]}`},
		{"batch without notifications", `{"type":"unread_notifications","count":0}`},
		{"connected without userId", `{"type":"connected","timestamp":"t"}`},
		{"connected without timestamp", `{"type":"connected","userId":"u1"}`},
		{"upper-case discriminator key", `{"TYPE":"notification","event":"e","data":` + itemJSON + `}`},
		{"upper-case item keys", `{"type":"notification","event":"e","data":{"ID":"a","TITLE":"t","MESSAGE":"m","TYPE":"info","PRIORITY":1,"CREATEDAT":"2024-05-01T10:20:30Z"}}`},
		{"array frame", `[]`},
		{"null frame", `null`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.DecodeInbound([]byte(tc.frame))
			assert.ErrorIs(t, err, domain.ErrMalformedFrame)
		})
	}
}

func TestEncodeOutbound(t *testing.T) {
	t.Run("mark read", func(t *testing.T) {
		b, err := protocol.EncodeOutbound(protocol.MarkRead{NotificationID: "abc"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"mark_read","notificationId":"abc"}`, string(b))
	})

	t.Run("ping", func(t *testing.T) {
		b, err := protocol.EncodeOutbound(protocol.Ping{})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ping"}`, string(b))
	})

	t.Run("nil", func(t *testing.T) {
		_, err := protocol.EncodeOutbound(nil)
		assert.Error(t, err)
	})

	t.Run("pointer variant is rejected", func(t *testing.T) {
		_, err := protocol.EncodeOutbound(&protocol.MarkRead{NotificationID: "abc"})
		assert.Error(t, err)
	})
}

// The service's camelCase keys must survive regardless of Go field names.
func TestNotificationWireKeys(t *testing.T) {
	var n domain.Notification
	require.NoError(t, json.Unmarshal([]byte(itemJSON), &n))

	out, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, itemJSON, string(out))

	n.ActionURL, n.ActionLabel = nil, nil
	out, err = json.Marshal(n)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "actionUrl")
	assert.NotContains(t, string(out), "actionLabel")
}
