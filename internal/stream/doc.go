// Package stream drives one live notification socket.
//
// A Connection wraps a freshly dialled socket. Spawn hands both halves of
// that socket to a background driver and returns three handles:
//
//	*MessageStream   decoded inbound messages, in arrival order
//	*OutgoingSender  non-blocking control channel (mark-read receipts)
//	*DriverTask      the driver's lifetime; Stop releases it
//
// The driver multiplexes a keepalive timer, the outbound queue and inbound
// frames in a single select loop. It ends, once and for good, when the
// peer closes, the socket fails, every sender handle is closed, the
// consumer closes the stream, or the task is stopped. There is no
// reconnection: a finished stream means the caller should connect again.
package stream
