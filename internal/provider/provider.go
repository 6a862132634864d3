package provider

import (
	"context"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// ForwardRequest is the JSON body posted to the forwarding target.
type ForwardRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	Priority    uint8   `json:"priority"`
	ActionURL   *string `json:"action_url,omitempty"`
	ActionLabel *string `json:"action_label,omitempty"`
	CreatedAt   string  `json:"created_at"`
	// Text is the rendered "<title>: <message>" line, for chat-style hooks.
	Text string `json:"text"`
}

func newForwardRequest(n domain.Notification) ForwardRequest {
	return ForwardRequest{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Body,
		Severity:    string(n.Severity),
		Priority:    n.Priority,
		ActionURL:   n.ActionURL,
		ActionLabel: n.ActionLabel,
		CreatedAt:   n.CreatedAt,
		Text:        n.Title + ": " + n.Body,
	}
}

// Provider delivers a displayed notification to an external system.
// Mocking this interface in tests gives full control over delivery
// without making real HTTP calls.
type Provider interface {
	Send(ctx context.Context, n domain.Notification) error
}
