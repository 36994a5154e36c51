package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/broomate/roomie/internal/api"
	"github.com/broomate/roomie/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	detail  models.ConversationDetail
	err     error
	loading func()

	sent []string
}

func (b *fakeBackend) GetConversation(ctx context.Context, id string) (models.ConversationDetail, error) {
	if b.loading != nil {
		b.loading()
	}
	return b.detail, b.err
}

func (b *fakeBackend) SendMessage(ctx context.Context, conversationID, content string, media *api.Attachment) (models.Message, error) {
	b.sent = append(b.sent, content)
	return models.Message{ID: "sent-1", ConversationID: conversationID, SenderID: "me", Content: content}, nil
}

type fakeMarker struct {
	mu     sync.Mutex
	marked []string
}

func (m *fakeMarker) MarkConversationAsRead(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, id)
	return nil
}

func (m *fakeMarker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marked)
}

type fakeSource struct {
	listeners map[int]func(models.Message)
	next      int
}

func (s *fakeSource) OnNewMessage(fn func(models.Message)) func() {
	if s.listeners == nil {
		s.listeners = make(map[int]func(models.Message))
	}
	s.next++
	id := s.next
	s.listeners[id] = fn
	return func() { delete(s.listeners, id) }
}

func (s *fakeSource) emit(msg models.Message) {
	for _, fn := range s.listeners {
		fn(msg)
	}
}

func history() models.ConversationDetail {
	return models.ConversationDetail{
		Conversation: models.Conversation{ID: "conv-1", OtherParticipantName: "Mai", LastMessage: "hi"},
		Messages: []models.Message{
			{ID: "m1", ConversationID: "conv-1", SenderID: "mai", Content: "hi"},
		},
	}
}

func open(t *testing.T, backend *fakeBackend, source *fakeSource, marker *fakeMarker) *Thread {
	th, err := Open(context.Background(), backend, marker, source, "me", "conv-1", zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(th.Close)
	return th
}

func TestOpenLoadsHistoryAndMarksRead(t *testing.T) {
	marker := &fakeMarker{}
	th := open(t, &fakeBackend{detail: history()}, &fakeSource{}, marker)

	assert.Equal(t, "Mai", th.Conversation().DisplayName())
	require.Len(t, th.Messages(), 1)
	assert.Equal(t, []string{"conv-1"}, marker.marked)
}

func TestOpenFailureUnsubscribes(t *testing.T) {
	source := &fakeSource{}
	_, err := Open(context.Background(), &fakeBackend{err: errors.New("404")}, &fakeMarker{}, source, "me", "conv-1", zaptest.NewLogger(t))
	assert.Error(t, err)
	assert.Empty(t, source.listeners)
}

func TestPeerMessagesAppendLive(t *testing.T) {
	source := &fakeSource{}
	marker := &fakeMarker{}
	th := open(t, &fakeBackend{detail: history()}, source, marker)

	source.emit(models.Message{ID: "m2", ConversationID: "conv-1", SenderID: "mai", Content: "you around?"})
	source.emit(models.Message{ID: "m2", ConversationID: "conv-1", SenderID: "mai", Content: "you around?"})
	source.emit(models.Message{ID: "x1", ConversationID: "conv-2", SenderID: "lan", Content: "elsewhere"})

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, 3, marker.count())

	select {
	case <-th.Updates():
	default:
		t.Fatal("expected an update signal")
	}
}

func TestOwnEchoIsNotApplied(t *testing.T) {
	source := &fakeSource{}
	backend := &fakeBackend{detail: history()}
	th := open(t, backend, source, &fakeMarker{})

	sent, err := th.Send(context.Background(), "on my way", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"on my way"}, backend.sent)

	source.emit(models.Message{ID: "echo-of-" + sent.ID, ConversationID: "conv-1", SenderID: "me", Content: "on my way"})

	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "sent-1", msgs[1].ID)
}

func TestSendRejectsEmpty(t *testing.T) {
	backend := &fakeBackend{detail: history()}
	th := open(t, backend, &fakeSource{}, &fakeMarker{})

	_, err := th.Send(context.Background(), "   ", nil)
	assert.True(t, errors.Is(err, ErrEmptyMessage))
	assert.Empty(t, backend.sent)

	_, err = th.Send(context.Background(), "", &api.Attachment{Filename: "room.jpg", Data: []byte{0xff}})
	assert.NoError(t, err)
}

func TestMessagesDuringLoadAreKept(t *testing.T) {
	source := &fakeSource{}
	backend := &fakeBackend{detail: history()}
	backend.loading = func() {
		source.emit(models.Message{ID: "m1", ConversationID: "conv-1", SenderID: "mai", Content: "hi"})
		source.emit(models.Message{ID: "m5", ConversationID: "conv-1", SenderID: "mai", Content: "new one"})
	}

	th := open(t, backend, source, &fakeMarker{})
	msgs := th.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m5", msgs[1].ID)
}

func TestCloseStopsLiveUpdates(t *testing.T) {
	source := &fakeSource{}
	th := open(t, &fakeBackend{detail: history()}, source, &fakeMarker{})

	th.Close()
	th.Close()
	assert.Empty(t, source.listeners)
	_, ok := <-th.Updates()
	assert.False(t, ok)
	source.emit(models.Message{ID: "m9", ConversationID: "conv-1", SenderID: "mai"})
	assert.Len(t, th.Messages(), 1)
}

func TestRedeliveredHistoryMessageMarksRead(t *testing.T) {
	source := &fakeSource{}
	marker := &fakeMarker{}
	th := open(t, &fakeBackend{detail: history()}, source, marker)
	require.Equal(t, 1, marker.count())

	source.emit(models.Message{ID: "m1", ConversationID: "conv-1", SenderID: "mai", Content: "hi"})

	assert.Len(t, th.Messages(), 1)
	assert.Equal(t, 2, marker.count())
	select {
	case <-th.Updates():
		t.Fatal("a duplicate should not signal a change")
	default:
	}
}
