package models

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConversationsNormalizesIDVariants(t *testing.T) {
	body := []byte(`{"conversations": [
		{"id": "conv-1", "otherParticipantName": "Mai", "lastMessage": "hi", "lastMessageAt": "2025-03-01T10:00:00Z", "unreadCount": 3},
		{"conversationId": 42, "type": "GROUP", "participants": [{"userId": "u2", "name": "Lan"}, {"userId": "u3", "name": "Minh"}]},
		{"lastMessage": "no id at all"}
	]}`)

	conversations, err := DecodeConversations(body)
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	direct := conversations[0]
	assert.Equal(t, "conv-1", direct.ID)
	assert.Equal(t, KindDirect, direct.Kind)
	assert.Equal(t, "Mai", direct.DisplayName())
	assert.True(t, direct.HasPreview())
	assert.Equal(t, 3, direct.UnreadCount)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), direct.LastMessageAt)

	group := conversations[1]
	assert.Equal(t, "42", group.ID)
	assert.True(t, group.IsGroup())
	assert.Equal(t, "Lan, Minh", group.DisplayName())
	assert.False(t, group.HasPreview())
}

func TestDecodeConversationsAcceptsBareArray(t *testing.T) {
	conversations, err := DecodeConversations([]byte(`[{"id": "a"}, {"id": "b", "isGroup": true, "roomTitle": "Loft"}]`))
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, KindGroup, conversations[1].Kind)
	assert.Equal(t, "Loft", conversations[1].DisplayName())
}

func TestDecodeConversationsRejectsGarbage(t *testing.T) {
	_, err := DecodeConversations([]byte(`{"conversations": "nope"}`))
	assert.Error(t, err)
}

func TestTimestampFormats(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	cases := map[string]string{
		"rfc3339":  `"2025-01-02T03:04:05Z"`,
		"local":    `"2025-01-02T03:04:05"`,
		"fraction": `"2025-01-02T03:04:05.000"`,
		"millis":   `1735787045000`,
		"array":    `[2025, 1, 2, 3, 4, 5]`,
	}
	for name, ts := range cases {
		t.Run(name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(`{"messageId": "m1", "conversationId": "c1", "timestamp": ` + ts + `}`))
			require.NoError(t, err)
			assert.True(t, want.Equal(msg.CreatedAt), "got %s", msg.CreatedAt)
		})
	}
}

func TestDecodeMessageFromTransportFrame(t *testing.T) {
	frame := []byte(`{"messageId": 7, "conversationId": "conv-1", "senderId": 12, "senderName": "Mai",
		"content": "", "mediaUrls": ["https://cdn.example.com/a.png"], "timestamp": "2025-01-02T03:04:05Z"}`)

	msg, err := DecodeMessage(frame)
	require.NoError(t, err)
	assert.Equal(t, "7", msg.ID)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, "12", msg.SenderID)
	assert.Empty(t, msg.Content)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, msg.MediaURLs)
}

func TestDecodeMessageWithoutConversation(t *testing.T) {
	_, err := DecodeMessage([]byte(`{"messageId": "m1"}`))
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestDecodeMessageInFallsBackToConversation(t *testing.T) {
	msg, err := DecodeMessageIn([]byte(`{"messageId": "m1", "conversationId": ""}`), `c "1"`)
	require.NoError(t, err)
	assert.Equal(t, `c "1"`, msg.ConversationID)

	msg, err = DecodeMessageIn([]byte(`{"messageId": "m1", "conversationId": "c2"}`), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c2", msg.ConversationID)

	_, err = DecodeMessageIn([]byte(`{"messageId": "m1"}`), "")
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestDecodeConversationDetail(t *testing.T) {
	detail, err := DecodeConversationDetail([]byte(`{"id": "conv-1", "otherParticipantName": "Mai",
		"messages": [{"id": "m1", "senderId": "u2", "content": "hey", "createdAt": "2025-01-02T03:04:05Z"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", detail.ID)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "conv-1", detail.Messages[0].ConversationID)

	wrapped, err := DecodeConversationDetail([]byte(`{"conversation": {"conversationId": "conv-2"},
		"messages": [{"id": "m9", "content": "yo"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "conv-2", wrapped.ID)
	require.Len(t, wrapped.Messages, 1)
	assert.Equal(t, "m9", wrapped.Messages[0].ID)
}

func TestDecodeMatchEvent(t *testing.T) {
	swipe, err := DecodeMatchEvent([]byte(`{"swipeId": 5, "swiperId": "u9", "swiperName": "Khoa", "isMatch": true, "conversationId": "conv-7"}`))
	require.NoError(t, err)
	require.NotNil(t, swipe.Swipe)
	assert.Nil(t, swipe.Created)
	assert.Equal(t, "5", swipe.Swipe.SwipeID)
	assert.True(t, swipe.Swipe.IsMatch)
	assert.Equal(t, "conv-7", swipe.Swipe.ConversationID)

	created, err := DecodeMatchEvent([]byte(`{"type": "THREE_WAY_CONVERSATION_CREATED", "conversationId": "conv-8",
		"roomTitle": "Sunny loft", "participants": [{"userId": "u1", "name": "Me"}, {"userId": "u2", "name": "Lan"}]}`))
	require.NoError(t, err)
	require.NotNil(t, created.Created)
	assert.Equal(t, "Sunny loft", created.Created.RoomTitle)
	assert.Len(t, created.Created.Participants, 2)

	_, err = DecodeMatchEvent([]byte(`{"isMatch": false}`))
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestTimestampOffsetAndFloatEpoch(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"jackson offset": `"2024-05-01T10:00:00.000+0000"`,
		"offset":         `"2024-05-01T12:00:00+0200"`,
		"float millis":   `1714557600000.0`,
	}
	for name, ts := range cases {
		t.Run(name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(`{"messageId": "m1", "conversationId": "c1", "createdAt": ` + ts + `}`))
			require.NoError(t, err)
			assert.True(t, want.Equal(msg.CreatedAt), "got %s", msg.CreatedAt)
		})
	}
}

func TestBadTimestampKeepsTheRestOfTheList(t *testing.T) {
	body := []byte(`{"conversations": [
		{"id": "conv-1", "lastMessage": "hi", "lastMessageAt": "2025-03-01T10:00:00Z"},
		{"id": "conv-2", "lastMessage": "yo", "lastMessageAt": "05/01/2024 10:00"},
		{"id": "conv-3", "lastMessage": "hey", "lastMessageAt": {"epochSecond": 1}}
	]}`)

	conversations, err := DecodeConversations(body)
	require.NoError(t, err)
	require.Len(t, conversations, 3)
	assert.False(t, conversations[0].LastMessageAt.IsZero())
	assert.Equal(t, "conv-2", conversations[1].ID)
	assert.True(t, conversations[1].LastMessageAt.IsZero())
	assert.Equal(t, "yo", conversations[1].LastMessage)
	assert.True(t, conversations[2].LastMessageAt.IsZero())
}

func TestBadTimestampKeepsSwipeFrame(t *testing.T) {
	ev, err := DecodeMatchEvent([]byte(`{"swipeId": "s1", "swiperId": "u9", "swiperName": "Mai", "timestamp": "05/01/2024 10:00"}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Swipe)
	assert.Equal(t, "s1", ev.Swipe.SwipeID)
	assert.True(t, ev.Swipe.Timestamp.IsZero())
}
