// Package notify keeps the session's notification feed: swipe interest,
// matches and group matches. Message arrival never creates an entry here.
package notify

import (
	"sync"
	"time"

	"github.com/broomate/roomie/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SystemNotifier raises an OS-level notification.
type SystemNotifier interface {
	Notify(title, body string) error
}

type SwipeSource interface {
	OnNewSwipe(fn func(models.MatchEvent)) func()
}

// Feed is an in-memory, newest-first list of notifications. Nothing is
// persisted; a new session starts empty.
type Feed struct {
	system SystemNotifier
	log    *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	items  []models.Notification
	ids    map[string]struct{}
	unread int

	updates chan struct{}
}

// NewFeed returns an empty feed. system may be nil.
func NewFeed(system SystemNotifier, log *zap.Logger) *Feed {
	return &Feed{
		system:  system,
		log:     log.Named("notify"),
		now:     time.Now,
		ids:     make(map[string]struct{}),
		updates: make(chan struct{}, 1),
	}
}

// Attach feeds swipe-channel events for userID into f until the returned
// function is called.
func (f *Feed) Attach(source SwipeSource, userID string) func() {
	return source.OnNewSwipe(func(ev models.MatchEvent) {
		n, ok := FromEvent(ev, userID, f.now())
		if !ok {
			return
		}
		f.Add(n)
	})
}

// Add prepends n. An id already in the feed is ignored so that broker
// redelivery does not duplicate entries. It reports whether n was added.
func (f *Feed) Add(n models.Notification) bool {
	f.mu.Lock()
	if _, dup := f.ids[n.ID]; dup {
		f.mu.Unlock()
		f.log.Debug("duplicate notification ignored", zap.String("id", n.ID))
		return false
	}
	f.ids[n.ID] = struct{}{}
	f.items = append([]models.Notification{n}, f.items...)
	if !n.Read {
		f.unread++
	}
	f.mu.Unlock()

	f.log.Info("notification", zap.String("id", n.ID), zap.String("type", string(n.Type)))
	f.notify()
	if f.system != nil {
		go f.raise(n)
	}
	return true
}

func (f *Feed) raise(n models.Notification) {
	err := f.system.Notify(n.Title, n.Description)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupported):
		f.log.Debug("system notifications unavailable", zap.Error(err))
	default:
		f.log.Warn("system notification failed", zap.String("id", n.ID), zap.Error(err))
	}
}

func (f *Feed) MarkAsRead(id string) {
	f.mu.Lock()
	changed := f.markLocked(id)
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

func (f *Feed) MarkAllAsRead() {
	f.mu.Lock()
	changed := f.unread > 0
	for i := range f.items {
		f.items[i].Read = true
	}
	f.unread = 0
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

// Clear removes the entry with id.
func (f *Feed) Clear(id string) {
	f.mu.Lock()
	removed := false
	for i, n := range f.items {
		if n.ID != id {
			continue
		}
		if !n.Read && f.unread > 0 {
			f.unread--
		}
		f.items = append(f.items[:i:i], f.items[i+1:]...)
		delete(f.ids, id)
		removed = true
		break
	}
	f.mu.Unlock()
	if removed {
		f.notify()
	}
}

// HandleClick marks n read and returns where to go next.
func (f *Feed) HandleClick(n models.Notification) Intent {
	f.MarkAsRead(n.ID)
	return IntentFor(n)
}

// List returns the entries, newest first.
func (f *Feed) List() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

func (f *Feed) markLocked(id string) bool {
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].Read {
			f.items[i].Read = true
			if f.unread > 0 {
				f.unread--
			}
			return true
		}
	}
	return false
}

func (f *Feed) notify() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}
