package provider

import (
	"context"
	"sync"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// MockProvider records every notification it is asked to send.
// Set Err to make every Send fail.
type MockProvider struct {
	mu   sync.Mutex
	Err  error
	sent []domain.Notification
}

func (m *MockProvider) Send(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, n)
	return nil
}

// Sent returns the ids delivered so far, in order.
func (m *MockProvider) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sent))
	for _, n := range m.sent {
		ids = append(ids, n.ID)
	}
	return ids
}

var _ Provider = (*MockProvider)(nil)
