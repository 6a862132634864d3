package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// controlWriteWait bounds how long a control frame (pong, close) may take
// to hit the wire. Data frames have no deadline.
const controlWriteWait = 5 * time.Second

// WebSocketDialer dials sockets with gorilla/websocket.
type WebSocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger
}

// NewWebSocketDialer returns a dialer whose handshake is limited to
// handshakeTimeout (0 means the ctx alone bounds it).
func NewWebSocketDialer(handshakeTimeout time.Duration, logger *zap.Logger) *WebSocketDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header: http.Header{},
		logger: logger,
	}
}

// WithHeader adds a header sent with every handshake request.
func (d *WebSocketDialer) WithHeader(key, value string) *WebSocketDialer {
	d.header.Add(key, value)
	return d
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return NewWebSocket(conn, d.logger), nil
}

// WebSocket adapts a *websocket.Conn to Socket.
//
// gorilla answers pings and closes inside ReadMessage; those control
// frames are logged here and never surface to the caller as data.
type WebSocket struct {
	conn   *websocket.Conn
	logger *zap.Logger
}

func NewWebSocket(conn *websocket.Conn, logger *zap.Logger) *WebSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &WebSocket{conn: conn, logger: logger}

	conn.SetPingHandler(func(appData string) error {
		ws.logger.Debug("received transport ping")
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		ws.logger.Debug("received transport pong")
		return nil
	})

	return ws
}

func (w *WebSocket) ReadFrame() (Frame, error) {
	mt, data, err := w.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		// 1006 is synthesised locally when the TCP stream ends without a
		// close frame; the peer never sent one.
		if errors.As(err, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure {
			return Frame{Op: OpClose, Payload: websocket.FormatCloseMessage(closeErr.Code, closeErr.Text)}, nil
		}
		return Frame{}, err
	}

	switch mt {
	case websocket.TextMessage:
		return Frame{Op: OpText, Payload: data}, nil
	case websocket.BinaryMessage:
		return Frame{Op: OpBinary, Payload: data}, nil
	}
	return Frame{}, fmt.Errorf("unexpected websocket message type %d", mt)
}

func (w *WebSocket) WriteFrame(f Frame) error {
	switch f.Op {
	case OpText:
		return w.conn.WriteMessage(websocket.TextMessage, f.Payload)
	case OpBinary:
		return w.conn.WriteMessage(websocket.BinaryMessage, f.Payload)
	case OpClose:
		return w.conn.WriteControl(websocket.CloseMessage, f.Payload, time.Now().Add(controlWriteWait))
	case OpPing:
		return w.conn.WriteControl(websocket.PingMessage, f.Payload, time.Now().Add(controlWriteWait))
	case OpPong:
		return w.conn.WriteControl(websocket.PongMessage, f.Payload, time.Now().Add(controlWriteWait))
	}
	return fmt.Errorf("cannot write frame with opcode %s", f.Op)
}

func (w *WebSocket) Close() error {
	return w.conn.Close()
}

// NormalClosure builds the close frame sent when this side shuts down cleanly.
func NormalClosure(reason string) Frame {
	return Frame{Op: OpClose, Payload: websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)}
}

var (
	_ Socket = (*WebSocket)(nil)
	_ Dialer = (*WebSocketDialer)(nil)
)
