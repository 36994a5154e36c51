// Package ledger is the durable per-user record of acknowledged (read)
// conversations. Entries are keyed by user id so that switching accounts on
// one device never shares read state.
package ledger

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/broomate/roomie/internal/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const keyPrefix = "readConversations_"

var ErrNoUser = errors.New("user id is required")

// Key returns the storage key holding userID's acknowledged conversations.
func Key(userID string) string {
	return keyPrefix + userID
}

type Ledger struct {
	store store.Store
	log   *zap.Logger

	// mu serializes read-modify-write cycles within the process. Other
	// processes sharing the store race with last write wins.
	mu sync.Mutex
}

func New(s store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: s, log: log.Named("ledger")}
}

// GetAcknowledged returns the acknowledged set for userID. It never fails:
// a missing, unreadable or corrupted entry yields an empty set, which makes
// everything look unread rather than hiding new messages.
func (l *Ledger) GetAcknowledged(ctx context.Context, userID string) Set {
	if userID == "" {
		return Set{}
	}
	raw, err := l.store.Get(ctx, Key(userID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.log.Warn("read state unavailable, treating all as unread",
				zap.String("user_id", userID), zap.Error(err))
		}
		return Set{}
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		l.log.Warn("read state corrupted, treating all as unread",
			zap.String("user_id", userID), zap.Error(err))
		return Set{}
	}
	return NewSet(ids...)
}

// SetAcknowledged overwrites the persisted set for userID.
func (l *Ledger) SetAcknowledged(ctx context.Context, userID string, ids Set) error {
	if userID == "" {
		return ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(ctx, userID, ids)
}

func (l *Ledger) Acknowledge(ctx context.Context, userID, conversationID string) error {
	return l.update(ctx, userID, func(ids Set) bool {
		if ids.Has(conversationID) {
			return false
		}
		ids.Add(conversationID)
		return true
	})
}

// Revoke removes conversationID so that it reads as unread again.
func (l *Ledger) Revoke(ctx context.Context, userID, conversationID string) error {
	return l.update(ctx, userID, func(ids Set) bool {
		if !ids.Has(conversationID) {
			return false
		}
		ids.Remove(conversationID)
		return true
	})
}

func (l *Ledger) update(ctx context.Context, userID string, mutate func(Set) bool) error {
	if userID == "" {
		return ErrNoUser
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.GetAcknowledged(ctx, userID)
	if !mutate(ids) {
		return nil
	}
	return l.write(ctx, userID, ids)
}

func (l *Ledger) write(ctx context.Context, userID string, ids Set) error {
	raw, err := json.Marshal(ids.Sorted())
	if err != nil {
		return errors.Wrap(err, "failed to encode read state")
	}
	if err := l.store.Set(ctx, Key(userID), raw); err != nil {
		return errors.Wrapf(err, "failed to persist read state for %s", userID)
	}
	return nil
}
