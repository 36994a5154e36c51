package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// This file is the only place that knows how the backend spells things.
// Everything past these decoders works on the canonical types.

const threeWayConversationCreated = "THREE_WAY_CONVERSATION_CREATED"

var ErrMissingID = errors.New("payload has no identifier")

// flexString accepts a JSON string or number. Ids come back as either
// depending on the endpoint.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrapf(err, "unsupported id value %s", string(b))
	}
	*s = flexString(n.String())
	return nil
}

// flexTime accepts RFC3339, zone-less ISO local date-times, numeric
// offsets without a colon, epoch milliseconds (integer or float) and
// Jackson's [y,m,d,h,m,s,nanos] arrays. A value in any other shape decodes
// to the zero time so that one odd field never rejects the whole payload.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	parsed, err := parseTime(b)
	if err != nil {
		zap.L().Named("models").Warn("ignoring unparseable timestamp", zap.ByteString("value", b), zap.Error(err))
		*t = flexTime{}
		return nil
	}
	*t = flexTime(parsed)
	return nil
}

func parseTime(b []byte) (time.Time, error) {
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, errors.Errorf("unsupported timestamp %q", s)

	case '[':
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return time.Time{}, err
		}
		if len(parts) < 3 {
			return time.Time{}, errors.Errorf("timestamp array too short: %v", parts)
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.UTC), nil

	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return time.Time{}, errors.Wrapf(err, "unsupported timestamp %s", string(b))
		}
		if ms, err := n.Int64(); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		f, err := n.Float64()
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "unsupported timestamp %s", string(b))
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}
}

func (t flexTime) time() time.Time { return time.Time(t) }

func firstTime(ts ...flexTime) time.Time {
	for _, t := range ts {
		if !t.time().IsZero() {
			return t.time()
		}
	}
	return time.Time{}
}

func firstString(vs ...flexString) string {
	for _, v := range vs {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

type rawParticipant struct {
	UserID    flexString `json:"userId"`
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	Avatar    string     `json:"avatar"`
	AvatarURL string     `json:"avatarUrl"`
}

func (p rawParticipant) normalize() Participant {
	avatar := p.Avatar
	if avatar == "" {
		avatar = p.AvatarURL
	}
	return Participant{
		UserID: firstString(p.UserID, p.ID),
		Name:   p.Name,
		Avatar: avatar,
	}
}

func normalizeParticipants(raw []rawParticipant) []Participant {
	if len(raw) == 0 {
		return nil
	}
	out := make([]Participant, 0, len(raw))
	for _, p := range raw {
		out = append(out, p.normalize())
	}
	return out
}

type rawMessage struct {
	ID             flexString `json:"id"`
	MessageID      flexString `json:"messageId"`
	ConversationID flexString `json:"conversationId"`
	SenderID       flexString `json:"senderId"`
	SenderName     string     `json:"senderName"`
	SenderAvatar   string     `json:"senderAvatar"`
	Content        string     `json:"content"`
	MediaURLs      []string   `json:"mediaUrls"`
	CreatedAt      flexTime   `json:"createdAt"`
	Timestamp      flexTime   `json:"timestamp"`
}

func (m rawMessage) normalize() Message {
	return Message{
		ID:             firstString(m.ID, m.MessageID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		SenderName:     m.SenderName,
		SenderAvatar:   m.SenderAvatar,
		Content:        m.Content,
		MediaURLs:      m.MediaURLs,
		CreatedAt:      firstTime(m.CreatedAt, m.Timestamp),
	}
}

type rawConversation struct {
	ID                     flexString       `json:"id"`
	ConversationID         flexString       `json:"conversationId"`
	Type                   string           `json:"type"`
	Kind                   string           `json:"kind"`
	IsGroup                *bool            `json:"isGroup"`
	Participants           []rawParticipant `json:"participants"`
	OtherParticipantName   string           `json:"otherParticipantName"`
	OtherParticipantAvatar string           `json:"otherParticipantAvatar"`
	RoomTitle              string           `json:"roomTitle"`
	LastMessage            string           `json:"lastMessage"`
	LastMessageAt          flexTime         `json:"lastMessageAt"`
	LastMessageTime        flexTime         `json:"lastMessageTime"`
	UpdatedAt              flexTime         `json:"updatedAt"`
	UnreadCount            int              `json:"unreadCount"`
	Messages               []rawMessage     `json:"messages"`
}

func (c rawConversation) kind() ConversationKind {
	if c.IsGroup != nil {
		if *c.IsGroup {
			return KindGroup
		}
		return KindDirect
	}
	for _, v := range []string{c.Type, c.Kind} {
		switch strings.ToUpper(v) {
		case string(KindGroup):
			return KindGroup
		case string(KindDirect):
			return KindDirect
		}
	}
	if c.OtherParticipantName == "" && len(c.Participants) >= 2 {
		return KindGroup
	}
	return KindDirect
}

func (c rawConversation) normalize() (Conversation, error) {
	id := firstString(c.ID, c.ConversationID)
	if id == "" {
		return Conversation{}, errors.Wrap(ErrMissingID, "conversation")
	}
	return Conversation{
		ID:                     id,
		Kind:                   c.kind(),
		Participants:           normalizeParticipants(c.Participants),
		OtherParticipantName:   c.OtherParticipantName,
		OtherParticipantAvatar: c.OtherParticipantAvatar,
		RoomTitle:              c.RoomTitle,
		LastMessage:            c.LastMessage,
		LastMessageAt:          firstTime(c.LastMessageAt, c.LastMessageTime, c.UpdatedAt),
		UnreadCount:            c.UnreadCount,
	}, nil
}

// DecodeConversations decodes the list endpoint. Both the documented
// {"conversations": [...]} envelope and a bare array are accepted.
// Entries without an id are dropped.
func DecodeConversations(body []byte) ([]Conversation, error) {
	body = bytes.TrimSpace(body)

	var raw []rawConversation
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to decode conversations")
		}
	} else {
		var envelope struct {
			Conversations []rawConversation `json:"conversations"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, errors.Wrap(err, "failed to decode conversations")
		}
		raw = envelope.Conversations
	}

	conversations := make([]Conversation, 0, len(raw))
	for _, r := range raw {
		c, err := r.normalize()
		if err != nil {
			continue
		}
		conversations = append(conversations, c)
	}
	return conversations, nil
}

// DecodeConversationDetail decodes GET /conversations/{id}. The conversation
// may be wrapped in a "conversation" key with messages beside it.
func DecodeConversationDetail(body []byte) (ConversationDetail, error) {
	var envelope struct {
		Conversation *rawConversation `json:"conversation"`
		Messages     []rawMessage     `json:"messages"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ConversationDetail{}, errors.Wrap(err, "failed to decode conversation")
	}

	var raw rawConversation
	if envelope.Conversation != nil {
		raw = *envelope.Conversation
		if len(raw.Messages) == 0 {
			raw.Messages = envelope.Messages
		}
	} else if err := json.Unmarshal(body, &raw); err != nil {
		return ConversationDetail{}, errors.Wrap(err, "failed to decode conversation")
	}

	conversation, err := raw.normalize()
	if err != nil {
		return ConversationDetail{}, err
	}

	messages := make([]Message, 0, len(raw.Messages))
	for _, m := range raw.Messages {
		msg := m.normalize()
		if msg.ConversationID == "" {
			msg.ConversationID = conversation.ID
		}
		messages = append(messages, msg)
	}
	return ConversationDetail{Conversation: conversation, Messages: messages}, nil
}

// DecodeMessage decodes both a REST message and a realtime new-message frame.
func DecodeMessage(body []byte) (Message, error) {
	return DecodeMessageIn(body, "")
}

// DecodeMessageIn decodes a message that belongs to conversationID when the
// payload itself does not name one.
func DecodeMessageIn(body []byte, conversationID string) (Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Message{}, errors.Wrap(err, "failed to decode message")
	}
	msg := raw.normalize()
	if msg.ConversationID == "" {
		msg.ConversationID = conversationID
	}
	if msg.ConversationID == "" {
		return Message{}, errors.Wrap(ErrMissingID, "message conversation")
	}
	return msg, nil
}

type rawMatchFrame struct {
	Type           string           `json:"type"`
	SwipeID        flexString       `json:"swipeId"`
	SwiperID       flexString       `json:"swiperId"`
	SwiperName     string           `json:"swiperName"`
	SwiperAvatar   string           `json:"swiperAvatar"`
	IsMatch        bool             `json:"isMatch"`
	ConversationID flexString       `json:"conversationId"`
	RoomTitle      string           `json:"roomTitle"`
	RoomImageURL   string           `json:"roomImageUrl"`
	Participants   []rawParticipant `json:"participants"`
	Timestamp      flexTime         `json:"timestamp"`
}

// DecodeMatchEvent decodes a frame from the swipe/match channel, which also
// carries group conversation creation.
func DecodeMatchEvent(body []byte) (MatchEvent, error) {
	var raw rawMatchFrame
	if err := json.Unmarshal(body, &raw); err != nil {
		return MatchEvent{}, errors.Wrap(err, "failed to decode swipe frame")
	}

	if raw.Type == threeWayConversationCreated {
		if raw.ConversationID == "" {
			return MatchEvent{}, errors.Wrap(ErrMissingID, "conversation created")
		}
		return MatchEvent{Created: &ConversationCreatedEvent{
			ConversationID: string(raw.ConversationID),
			RoomTitle:      raw.RoomTitle,
			RoomImageURL:   raw.RoomImageURL,
			Participants:   normalizeParticipants(raw.Participants),
			Timestamp:      raw.Timestamp.time(),
		}}, nil
	}

	if raw.SwipeID == "" && raw.SwiperID == "" {
		return MatchEvent{}, errors.Wrap(ErrMissingID, "swipe")
	}
	return MatchEvent{Swipe: &SwipeEvent{
		SwipeID:        string(raw.SwipeID),
		SwiperID:       string(raw.SwiperID),
		SwiperName:     raw.SwiperName,
		SwiperAvatar:   raw.SwiperAvatar,
		IsMatch:        raw.IsMatch,
		ConversationID: string(raw.ConversationID),
		Timestamp:      raw.Timestamp.time(),
	}}, nil
}
