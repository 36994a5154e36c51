package models

import (
	"strings"
	"time"
)

type ConversationKind string

const (
	KindDirect ConversationKind = "DIRECT"
	KindGroup  ConversationKind = "GROUP"
)

type Participant struct {
	UserID string
	Name   string
	Avatar string
}

type Conversation struct {
	ID                     string
	Kind                   ConversationKind
	Participants           []Participant
	OtherParticipantName   string
	OtherParticipantAvatar string
	RoomTitle              string
	LastMessage            string
	LastMessageAt          time.Time
	// UnreadCount is what the server reported. The unread tracker does not trust it.
	UnreadCount int
}

func (c Conversation) IsGroup() bool {
	return c.Kind == KindGroup
}

// HasPreview reports whether the conversation carries a last message. Only
// conversations with a preview can be unread.
func (c Conversation) HasPreview() bool {
	return c.LastMessage != ""
}

// DisplayName returns the other participant's name for direct conversations
// and the joined participant names (or the room title) for group ones.
func (c Conversation) DisplayName() string {
	if !c.IsGroup() {
		if c.OtherParticipantName != "" {
			return c.OtherParticipantName
		}
		return c.ID
	}

	names := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	if c.RoomTitle != "" {
		return c.RoomTitle
	}
	return c.ID
}

type ConversationDetail struct {
	Conversation
	Messages []Message
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	SenderAvatar   string
	// Content may be empty when the message only carries media.
	Content   string
	MediaURLs []string
	CreatedAt time.Time
}

type SwipeEvent struct {
	SwipeID        string
	SwiperID       string
	SwiperName     string
	SwiperAvatar   string
	IsMatch        bool
	ConversationID string
	Timestamp      time.Time
}

type ConversationCreatedEvent struct {
	ConversationID string
	RoomTitle      string
	RoomImageURL   string
	Participants   []Participant
	Timestamp      time.Time
}

// MatchEvent is one frame from the swipe/match channel. Exactly one of Swipe
// and Created is set.
type MatchEvent struct {
	Swipe   *SwipeEvent
	Created *ConversationCreatedEvent
}

type NotificationType string

const (
	NotificationSwipe      NotificationType = "swipe"
	NotificationMatch      NotificationType = "match"
	NotificationGroupMatch NotificationType = "group-match"
)

type Notification struct {
	ID          string
	Type        NotificationType
	Title       string
	Description string
	Icon        string
	Timestamp   time.Time
	Read        bool
	Data        MatchEvent
}
