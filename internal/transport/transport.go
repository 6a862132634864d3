package transport

import "context"

// Opcode identifies the kind of a WebSocket frame.
type Opcode int

const (
	OpText Opcode = iota + 1
	OpBinary
	OpClose
	OpPing
	OpPong
)

func (o Opcode) String() string {
	switch o {
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	}
	return "unknown"
}

// Frame is one message read from or written to a socket.
type Frame struct {
	Op      Opcode
	Payload []byte
}

// Text builds a text frame.
func Text(payload []byte) Frame { return Frame{Op: OpText, Payload: payload} }

// Reader is the receive half of a socket. At most one goroutine may call
// ReadFrame at a time. A close frame from the peer is returned as a Frame
// with Op == OpClose; any later read returns an error. A connection that
// drops without a close frame is an error, not a close frame.
type Reader interface {
	ReadFrame() (Frame, error)
}

// Writer is the send half of a socket. At most one goroutine may call
// WriteFrame at a time.
type Writer interface {
	WriteFrame(f Frame) error
}

// Socket is a live, bidirectional, message-framed connection.
// Close may be called concurrently with reads and writes and unblocks them.
type Socket interface {
	Reader
	Writer
	Close() error
}

// Dialer opens a Socket to url. Implementations must honour ctx for the
// whole handshake (DNS, TLS, protocol upgrade).
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}
