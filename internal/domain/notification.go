package domain

import (
	"fmt"
	"time"
)

// Severity is the display level of a notification. The wire field is "type".
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IsValid reports whether s is one of the levels the service documents.
// Unrecognised levels are still carried through; callers decide how to render them.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification is a single entry pushed by the notification service.
// Field names follow Go conventions; json tags follow the service's wire keys.
type Notification struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Body        string   `json:"message"`
	Severity    Severity `json:"type"`
	Priority    uint8    `json:"priority"`
	ActionURL   *string  `json:"actionUrl,omitempty"`
	ActionLabel *string  `json:"actionLabel,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

// CreatedTime parses CreatedAt as RFC3339. The raw string is kept on the
// struct so a redelivered item round-trips byte-for-byte.
func (n Notification) CreatedTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, n.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt %q: %w", n.CreatedAt, err)
	}
	return t, nil
}

// HasAction reports whether the notification carries a call to action.
func (n Notification) HasAction() bool {
	return n.ActionURL != nil && *n.ActionURL != ""
}

// Validate checks the fields the client relies on for deduplication.
func (n Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyNotification
	}
	return nil
}
