package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/broomate/roomie/internal/directory"
	"github.com/broomate/roomie/internal/ledger"
	"github.com/broomate/roomie/internal/models"
	"github.com/broomate/roomie/internal/notify"
	"github.com/broomate/roomie/internal/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticLister []models.Conversation

func (l staticLister) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return append([]models.Conversation(nil), l...), nil
}

type quietSource struct{}

func (quietSource) Connect(ctx context.Context, token, userID string) error { return nil }
func (quietSource) IsConnected() bool                                         { return false }
func (quietSource) OnNewMessage(fn func(models.Message)) func()               { return func() {} }
func (quietSource) OnNewSwipe(fn func(models.MatchEvent)) func()              { return func() {} }

func newServices(t *testing.T, conversations ...models.Conversation) *Services {
	log := zap.NewNop()
	dir := directory.New(staticLister(conversations), ledger.New(store.NewMemory(), log), quietSource{}, "me", log)
	require.NoError(t, dir.Start(context.Background()))
	t.Cleanup(dir.Close)

	return &Services{
		Directory: dir,
		Feed:      notify.NewFeed(nil, log),
		Source:    quietSource{},
		UserID:    "me",
		Log:       log,
	}
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "unknown", formatTimeAgo(time.Time{}))
	assert.Equal(t, "just now", formatTimeAgo(now.Add(-10*time.Second)))
	assert.Equal(t, "5m ago", formatTimeAgo(now.Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", formatTimeAgo(now.Add(-3*time.Hour-time.Second)))
	assert.Equal(t, "yesterday", formatTimeAgo(now.Add(-30*time.Hour)))
}

func TestConversationItemMarksUnread(t *testing.T) {
	c := models.Conversation{ID: "c1", OtherParticipantName: "Mai", LastMessage: strings.Repeat("x", 60)}

	assert.Equal(t, "● Mai", conversationItem{conversation: c, unread: true}.Title())
	assert.Equal(t, "Mai", conversationItem{conversation: c}.Title())
	assert.True(t, strings.HasSuffix(conversationItem{conversation: c}.Description(), "..."))
}

func TestInboxMarksUnreadConversations(t *testing.T) {
	svc := newServices(t,
		models.Conversation{ID: "c1", OtherParticipantName: "Mai", LastMessage: "hi"},
		models.Conversation{ID: "c2", OtherParticipantName: "Lan"},
	)

	m := NewConversationsModel(svc)
	require.Len(t, m.list.Items(), 2)
	assert.True(t, m.list.Items()[0].(conversationItem).unread)
	assert.False(t, m.list.Items()[1].(conversationItem).unread)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	m = next.(ConversationsModel)
	assert.Len(t, m.list.Items(), 1)
}

func TestMenuOpensInbox(t *testing.T) {
	svc := newServices(t)
	next, _ := NewMenuModel(svc).Update(tea.KeyMsg{Type: tea.KeyEnter})
	_, ok := next.(ConversationsModel)
	assert.True(t, ok)
}

func TestNotificationClickOpensConversation(t *testing.T) {
	svc := newServices(t, models.Conversation{ID: "c9", OtherParticipantName: "Mai", LastMessage: "hey"})
	svc.Feed.Add(models.Notification{
		ID:    "match-s1",
		Type:  models.NotificationMatch,
		Title: "It's a match!",
		Data:  models.MatchEvent{Swipe: &models.SwipeEvent{SwipeID: "s1", IsMatch: true, ConversationID: "c9"}},
	})

	m := NewNotificationsModel(svc)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	messages, ok := next.(MessagesModel)
	require.True(t, ok)
	assert.Equal(t, "Mai", messages.conversation.DisplayName())
	assert.Equal(t, 0, svc.Feed.UnreadCount())
}

func TestNotificationClickOnSwipeStays(t *testing.T) {
	svc := newServices(t)
	svc.Feed.Add(models.Notification{
		ID:          "swipe-s2",
		Type:        models.NotificationSwipe,
		Description: "Lan is interested in your room",
		Data:        models.MatchEvent{Swipe: &models.SwipeEvent{SwipeID: "s2", SwiperID: "lan"}},
	})

	next, _ := NewNotificationsModel(svc).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, ok := next.(NotificationsModel)
	require.True(t, ok)
	assert.Contains(t, m.status, "lan")
}
