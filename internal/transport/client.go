package transport

import (
	"context"
	"sync"
	"time"

	"github.com/broomate/roomie/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const connectKey = "connect"

type listener[T any] struct {
	id uint64
	fn func(T)
}

// without returns a new slice so that snapshots held by a dispatch stay valid.
func without[T any](ls []listener[T], id uint64) []listener[T] {
	out := make([]listener[T], 0, len(ls))
	for _, l := range ls {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}

// Client holds at most one live broker session. It is built once by the
// application root and torn down with Disconnect on logout or exit.
type Client struct {
	dialer Dialer
	opts   Options
	log    *zap.Logger

	flight singleflight.Group

	mu      sync.Mutex
	session Session
	creds   Credentials
	// epoch changes on every Disconnect; dials and reconnect loops started
	// in an older epoch give up.
	epoch uint64
	stop  chan struct{}

	lmu       sync.RWMutex
	nextID    uint64
	onMessage []listener[models.Message]
	onSwipe   []listener[models.MatchEvent]

	// dispatchMu serializes delivery across both channels.
	dispatchMu sync.Mutex
}

func New(dialer Dialer, opts Options, log *zap.Logger) *Client {
	return &Client{
		dialer: dialer,
		opts:   opts.withDefaults(),
		log:    log.Named("transport"),
		stop:   make(chan struct{}),
	}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Connect establishes the session and both per-user subscriptions. It
// returns immediately when already connected, and concurrent callers share a
// single dial. A caller whose ctx ends stops waiting; the shared dial goes on
// for the others. A failed dial is not retried here.
func (c *Client) Connect(ctx context.Context, token, userID string) error {
	if c.dialer == nil {
		return ErrNotConfigured
	}
	if userID == "" {
		return errors.New("user id is required")
	}
	if c.IsConnected() {
		return nil
	}

	creds := Credentials{Token: token, UserID: userID}
	ch := c.flight.DoChan(connectKey, func() (interface{}, error) {
		return nil, c.dial(creds)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) dial(creds Credentials) error {
	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		return nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	defer cancel()

	sess, err := c.dialer.Dial(ctx, creds)
	if err != nil {
		c.log.Warn("connect failed", zap.String("user_id", creds.UserID), zap.Error(err))
		return errors.Wrap(err, "failed to connect to broker")
	}

	if err := c.subscribe(sess, creds.UserID); err != nil {
		c.log.Warn("subscribe failed", zap.String("user_id", creds.UserID), zap.Error(err))
		sess.Close()
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		sess.Close()
		return ErrClosed
	}
	c.session = sess
	c.creds = creds
	stop := c.stop
	c.mu.Unlock()

	c.log.Info("connected", zap.String("user_id", creds.UserID))
	go c.watch(sess, epoch, stop)
	return nil
}

func (c *Client) subscribe(sess Session, userID string) error {
	messages := destination(c.opts.MessageDestination, userID)
	if err := sess.Subscribe(messages, c.dispatchMessage); err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", messages)
	}
	swipes := destination(c.opts.SwipeDestination, userID)
	if err := sess.Subscribe(swipes, c.dispatchSwipe); err != nil {
		return errors.Wrapf(err, "failed to subscribe to %s", swipes)
	}
	return nil
}

func (c *Client) watch(sess Session, epoch uint64, stop <-chan struct{}) {
	select {
	case <-sess.Done():
	case <-stop:
		return
	}

	c.mu.Lock()
	if c.session == sess {
		c.session = nil
	}
	lost := c.epoch == epoch
	creds := c.creds
	c.mu.Unlock()

	sess.Close()
	if !lost {
		return
	}
	c.log.Warn("connection lost, reconnecting", zap.Duration("delay", c.opts.ReconnectDelay))
	c.reconnect(creds, stop)
}

// reconnect retries with a fixed delay until a dial succeeds or the client
// is disconnected.
func (c *Client) reconnect(creds Credentials, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.ReconnectDelay)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if c.IsConnected() {
			return
		}
		res := <-c.flight.DoChan(connectKey, func() (interface{}, error) {
			return nil, c.dial(creds)
		})
		if res.Err == nil {
			c.log.Info("reconnected", zap.Int("attempt", attempt))
			return
		}
		if errors.Is(res.Err, ErrClosed) {
			return
		}
		c.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(res.Err))
	}
}

// Disconnect closes the session, stops reconnecting and drops every
// listener. The client can Connect again afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.creds = Credentials{}
	c.epoch++
	close(c.stop)
	c.stop = make(chan struct{})
	// A dial still in flight belongs to the old epoch and will fail with
	// ErrClosed; the next Connect must start its own.
	c.flight.Forget(connectKey)
	c.mu.Unlock()

	c.lmu.Lock()
	c.onMessage = nil
	c.onSwipe = nil
	c.lmu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			c.log.Debug("close session", zap.Error(err))
		}
		c.log.Info("disconnected")
	}
}

// OnNewMessage registers fn for new-message events. The returned function
// removes exactly this registration and is safe to call more than once.
func (c *Client) OnNewMessage(fn func(models.Message)) func() {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.nextID++
	id := c.nextID
	c.onMessage = append(c.onMessage, listener[models.Message]{id: id, fn: fn})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		c.onMessage = without(c.onMessage, id)
	}
}

// OnNewSwipe registers fn for swipe, match and group-conversation events.
func (c *Client) OnNewSwipe(fn func(models.MatchEvent)) func() {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.nextID++
	id := c.nextID
	c.onSwipe = append(c.onSwipe, listener[models.MatchEvent]{id: id, fn: fn})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		c.onSwipe = without(c.onSwipe, id)
	}
}

func (c *Client) dispatchMessage(body []byte) {
	msg, err := models.DecodeMessage(body)
	if err != nil {
		c.log.Warn("dropping message frame", zap.Error(err), zap.ByteString("body", body))
		return
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.lmu.RLock()
	ls := c.onMessage
	c.lmu.RUnlock()

	for _, l := range ls {
		l.fn(msg)
	}
}

func (c *Client) dispatchSwipe(body []byte) {
	ev, err := models.DecodeMatchEvent(body)
	if err != nil {
		c.log.Warn("dropping swipe frame", zap.Error(err), zap.ByteString("body", body))
		return
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.lmu.RLock()
	ls := c.onSwipe
	c.lmu.RUnlock()

	for _, l := range ls {
		l.fn(ev)
	}
}
