// Package inbox keeps the notifications seen during one process lifetime,
// deduplicated by id. The service may redeliver an item (for example once
// in the unread batch and again as a live event); the inbox surfaces it once.
package inbox

import (
	"sync"
	"time"

	"github.com/notifyhub/notify-stream/internal/domain"
)

// Entry is a notification plus the local state the client tracks for it.
type Entry struct {
	domain.Notification
	Read       bool      `json:"read"`
	ReceivedAt time.Time `json:"received_at"`
}

// Stats is a point-in-time count of the inbox.
type Stats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// Inbox is safe for concurrent use.
type Inbox struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
	now     func() time.Time
}

func New() *Inbox {
	return &Inbox{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Add stores n unless an item with the same id is already present.
// It reports whether n was new. Items without an id are rejected.
func (b *Inbox) Add(n domain.Notification) bool {
	if n.Validate() != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(n)
}

// AddBatch adds every item and returns the ones that were new, in order.
func (b *Inbox) AddBatch(items []domain.Notification) []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	var added []domain.Notification
	for _, n := range items {
		if n.Validate() != nil {
			continue
		}
		if b.addLocked(n) {
			added = append(added, n)
		}
	}
	return added
}

func (b *Inbox) addLocked(n domain.Notification) bool {
	if _, seen := b.entries[n.ID]; seen {
		return false
	}
	b.entries[n.ID] = &Entry{Notification: n, ReceivedAt: b.now()}
	b.order = append(b.order, n.ID)
	return true
}

// MarkRead flags the item as read locally. It returns domain.ErrNotFound
// for an id the inbox has never seen. Marking twice is not an error.
func (b *Inbox) MarkRead(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Read = true
	return nil
}

func (b *Inbox) Get(id string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns entries in the order they were first received.
func (b *Inbox) List(unreadOnly bool) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, 0, len(b.order))
	for _, id := range b.order {
		e := b.entries[id]
		if unreadOnly && e.Read {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func (b *Inbox) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Total: len(b.order)}
	for _, e := range b.entries {
		if !e.Read {
			s.Unread++
		}
	}
	return s
}
