// Package chat holds the state of the one conversation the user has open.
// The open conversation id lives in the Thread and in the closure of its
// message listener, nowhere else.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/broomate/roomie/internal/api"
	"github.com/broomate/roomie/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const markTimeout = 5 * time.Second

var ErrEmptyMessage = errors.New("message needs content or an attachment")

type Backend interface {
	GetConversation(ctx context.Context, id string) (models.ConversationDetail, error)
	SendMessage(ctx context.Context, conversationID, content string, media *api.Attachment) (models.Message, error)
}

type ReadMarker interface {
	MarkConversationAsRead(ctx context.Context, id string) error
}

type MessageSource interface {
	OnNewMessage(fn func(models.Message)) func()
}

type Thread struct {
	backend Backend
	marker  ReadMarker
	userID  string
	log     *zap.Logger

	mu           sync.Mutex
	conversation models.Conversation
	messages     []models.Message
	seen         map[string]struct{}
	unsub        func()
	closed       bool

	updates chan struct{}
}

// Open loads conversationID, marks it read and starts appending peer
// messages for it as they arrive. Messages that arrive while the history
// loads are kept.
func Open(ctx context.Context, backend Backend, marker ReadMarker, source MessageSource, userID, conversationID string, log *zap.Logger) (*Thread, error) {
	t := &Thread{
		backend:      backend,
		marker:       marker,
		userID:       userID,
		log:          log.Named("chat").With(zap.String("conversation_id", conversationID)),
		conversation: models.Conversation{ID: conversationID},
		seen:         make(map[string]struct{}),
		updates:      make(chan struct{}, 1),
	}
	t.unsub = source.OnNewMessage(func(msg models.Message) {
		if msg.ConversationID != conversationID {
			return
		}
		t.receive(msg)
	})

	detail, err := backend.GetConversation(ctx, conversationID)
	if err != nil {
		t.Close()
		return nil, errors.Wrapf(err, "failed to open conversation %s", conversationID)
	}

	t.mu.Lock()
	live := t.messages
	t.conversation = detail.Conversation
	t.messages = nil
	t.seen = make(map[string]struct{}, len(detail.Messages)+len(live))
	for _, m := range detail.Messages {
		t.appendLocked(m)
	}
	for _, m := range live {
		t.appendLocked(m)
	}
	t.mu.Unlock()

	if err := marker.MarkConversationAsRead(ctx, conversationID); err != nil {
		t.log.Warn("mark read failed", zap.Error(err))
	}
	return t, nil
}

func (t *Thread) Conversation() models.Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversation
}

// Messages returns a copy of the history in arrival order.
func (t *Thread) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Updates signals after the history changed. It is closed by Close.
func (t *Thread) Updates() <-chan struct{} {
	return t.updates
}

// Send posts a message and appends the stored copy right away. The broker
// echo of it is ignored later.
func (t *Thread) Send(ctx context.Context, content string, media *api.Attachment) (models.Message, error) {
	if strings.TrimSpace(content) == "" && media == nil {
		return models.Message{}, ErrEmptyMessage
	}

	id := t.Conversation().ID
	msg, err := t.backend.SendMessage(ctx, id, content, media)
	if err != nil {
		t.log.Warn("send failed", zap.Error(err))
		return models.Message{}, err
	}
	if msg.SenderID == "" {
		msg.SenderID = t.userID
	}

	t.mu.Lock()
	t.appendLocked(msg)
	t.mu.Unlock()
	t.notify()
	return msg, nil
}

// Close stops live updates. It is safe to call more than once.
func (t *Thread) Close() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	if !t.closed {
		t.closed = true
		close(t.updates)
	}
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

func (t *Thread) receive(msg models.Message) {
	if msg.SenderID == t.userID {
		return
	}

	t.mu.Lock()
	added := t.appendLocked(msg)
	t.mu.Unlock()
	if added {
		t.notify()
	}

	// A redelivered frame still re-marks the conversation unread in the
	// directory, so the open conversation is marked read either way.
	ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
	defer cancel()
	if err := t.marker.MarkConversationAsRead(ctx, msg.ConversationID); err != nil {
		t.log.Warn("mark read failed", zap.Error(err))
	}
}

// appendLocked adds msg unless a message with the same id is already there.
func (t *Thread) appendLocked(msg models.Message) bool {
	if msg.ID != "" {
		if _, ok := t.seen[msg.ID]; ok {
			return false
		}
		t.seen[msg.ID] = struct{}{}
	}
	t.messages = append(t.messages, msg)
	return true
}

func (t *Thread) notify() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.updates <- struct{}{}:
	default:
	}
}
