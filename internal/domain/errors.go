package domain

import "errors"

// Sentinel errors used throughout the application.
// The local API translates these to HTTP status codes via a single mapError function.
var (
	ErrNoCredential      = errors.New("no credential: provide an access code or API key")
	ErrTransport         = errors.New("transport error")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrAlreadySpawned    = errors.New("connection already spawned")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrNotConnected      = errors.New("not connected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotFound          = errors.New("not found")
	ErrInvalidBaseURL    = errors.New("base url must use the ws or wss scheme")
	ErrEmptyNotification = errors.New("notification id must not be empty")
)
