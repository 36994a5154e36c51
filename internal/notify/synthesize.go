package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/broomate/roomie/internal/models"
	"github.com/google/uuid"
)

const (
	RouteProfile      = "profile"
	RouteConversation = "conversation"
)

// Intent is where the presentation layer should navigate after a click.
type Intent struct {
	Route  string
	Params map[string]string
}

// FromEvent turns a swipe-channel frame into a feed entry. localUserID is
// left out of group participant lists.
func FromEvent(ev models.MatchEvent, localUserID string, now time.Time) (models.Notification, bool) {
	switch {
	case ev.Created != nil:
		return groupMatch(ev, localUserID, now), true
	case ev.Swipe != nil && ev.Swipe.IsMatch:
		return match(ev, now), true
	case ev.Swipe != nil:
		return swipe(ev, now), true
	}
	return models.Notification{}, false
}

func swipe(ev models.MatchEvent, now time.Time) models.Notification {
	s := ev.Swipe
	ts := orNow(s.Timestamp, now)
	return models.Notification{
		ID:          notificationID(models.NotificationSwipe, s.SwipeID, s.Timestamp),
		Type:        models.NotificationSwipe,
		Title:       "New interest",
		Description: fmt.Sprintf("%s is interested in your room", nameOr(s.SwiperName, "Someone")),
		Icon:        "♥",
		Timestamp:   ts,
		Data:        ev,
	}
}

func match(ev models.MatchEvent, now time.Time) models.Notification {
	s := ev.Swipe
	return models.Notification{
		ID:          notificationID(models.NotificationMatch, s.SwipeID, s.Timestamp),
		Type:        models.NotificationMatch,
		Title:       "It's a match!",
		Description: fmt.Sprintf("You and %s matched. Say hello!", nameOr(s.SwiperName, "a new roommate")),
		Icon:        "★",
		Timestamp:   orNow(s.Timestamp, now),
		Data:        ev,
	}
}

func groupMatch(ev models.MatchEvent, localUserID string, now time.Time) models.Notification {
	c := ev.Created
	var names []string
	for _, p := range c.Participants {
		if p.UserID != "" && p.UserID == localUserID {
			continue
		}
		names = append(names, nameOr(p.Name, "someone"))
	}

	desc := "New group conversation"
	if len(names) > 0 {
		desc = "You matched with " + strings.Join(names, ", ")
	}
	if c.RoomTitle != "" {
		desc += " for " + c.RoomTitle
	}

	return models.Notification{
		ID:          notificationID(models.NotificationGroupMatch, c.ConversationID, c.Timestamp),
		Type:        models.NotificationGroupMatch,
		Title:       "Group match!",
		Description: desc,
		Icon:        "⌂",
		Timestamp:   orNow(c.Timestamp, now),
		Data:        ev,
	}
}

// IntentFor returns the navigation target for n.
func IntentFor(n models.Notification) Intent {
	switch n.Type {
	case models.NotificationSwipe:
		var userID string
		if n.Data.Swipe != nil {
			userID = n.Data.Swipe.SwiperID
		}
		return Intent{Route: RouteProfile, Params: map[string]string{"userId": userID}}
	default:
		var conversationID string
		switch {
		case n.Data.Created != nil:
			conversationID = n.Data.Created.ConversationID
		case n.Data.Swipe != nil:
			conversationID = n.Data.Swipe.ConversationID
		}
		return Intent{Route: RouteConversation, Params: map[string]string{"conversationId": conversationID}}
	}
}

// notificationID is "<type>-<source id>", falling back to the event time
// and then to a random id.
func notificationID(t models.NotificationType, sourceID string, ts time.Time) string {
	switch {
	case sourceID != "":
		return string(t) + "-" + sourceID
	case !ts.IsZero():
		return string(t) + "-" + strconv.FormatInt(ts.UnixMilli(), 10)
	default:
		return string(t) + "-" + uuid.NewString()
	}
}

func orNow(ts, now time.Time) time.Time {
	if ts.IsZero() {
		return now
	}
	return ts
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
