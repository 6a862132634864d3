// Package credential reads the access code used to open the notification
// socket. Acquiring and storing credentials belongs to the sign-in flow;
// from here every backend is read-only.
package credential

import (
	"context"
	"errors"
	"strings"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// Store yields the current credential, or domain.ErrNoCredential when none
// is stored.
type Store interface {
	Token(ctx context.Context) (string, error)
}

// Static is a Store holding a fixed token (for example from the environment).
type Static string

func (s Static) Token(context.Context) (string, error) {
	t := strings.TrimSpace(string(s))
	if t == "" {
		return "", domain.ErrNoCredential
	}
	return t, nil
}

// Chain asks each store in turn and returns the first credential found.
// A store reporting domain.ErrNoCredential is skipped; any other error stops
// the search.
type Chain []Store

func (c Chain) Token(ctx context.Context) (string, error) {
	for _, s := range c {
		t, err := s.Token(ctx)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, domain.ErrNoCredential) {
			return "", err
		}
	}
	return "", domain.ErrNoCredential
}
