// Package transport owns the realtime connection to the backend broker and
// fans its two per-user channels (new messages, swipes/matches) out to any
// number of listeners.
package transport

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrClosed        = errors.New("transport disconnected")
	ErrNotConfigured = errors.New("transport not configured")
)

type Credentials struct {
	Token  string
	UserID string
}

// Dialer opens a broker session for one user.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Session, error)
}

// Session is one live broker connection.
type Session interface {
	// Subscribe delivers every frame body published to destination to handle.
	// The subscription is active when Subscribe returns.
	Subscribe(destination string, handle func([]byte)) error
	// Done is closed when the underlying connection ends for any reason.
	Done() <-chan struct{}
	Close() error
}

type Options struct {
	// Destinations may contain {userId}, replaced on connect.
	MessageDestination string
	SwipeDestination   string
	ReconnectDelay     time.Duration
	DialTimeout        time.Duration
}

func (o Options) withDefaults() Options {
	if o.MessageDestination == "" {
		o.MessageDestination = "/user/{userId}/queue/messages"
	}
	if o.SwipeDestination == "" {
		o.SwipeDestination = "/user/{userId}/queue/swipes"
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	return o
}

func destination(template, userID string) string {
	return strings.ReplaceAll(template, "{userId}", userID)
}
