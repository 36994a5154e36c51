package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// STOMPDialer speaks STOMP over a WebSocket, the way the backend's message
// broker endpoint expects. The bearer token goes on the HTTP upgrade and on
// the CONNECT frame.
type STOMPDialer struct {
	URL       string
	Heartbeat time.Duration
	WS        *websocket.Dialer
	Log       *zap.Logger
}

func (d *STOMPDialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid broker url %q", d.URL)
	}

	header := http.Header{}
	if creds.Token != "" {
		header.Set("Authorization", "Bearer "+creds.Token)
	}

	wsd := d.WS
	if wsd == nil {
		wsd = websocket.DefaultDialer
	}
	ws, resp, err := wsd.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "websocket handshake failed with status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket dial failed")
	}

	// go-stomp only applies a context deadline to a net.Conn, so the wait
	// for CONNECTED is bounded on the socket instead.
	if deadline, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(deadline)
	}

	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(u.Hostname()),
		stomp.ConnOpt.HeartBeat(d.Heartbeat, d.Heartbeat),
		stomp.ConnOpt.Logger(newStompLogger(log)),
	}
	if creds.Token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+creds.Token))
	}

	conn, err := stomp.Connect(newWSStream(ws), opts...)
	if err != nil {
		ws.Close()
		return nil, errors.Wrap(err, "stomp connect failed")
	}
	ws.SetReadDeadline(time.Time{})

	id := uuid.NewString()
	log.Debug("stomp session opened", zap.String("session", id), zap.String("url", d.URL))

	return &stompSession{
		id:   id,
		conn: conn,
		log:  log.With(zap.String("session", id)),
		done: make(chan struct{}),
	}, nil
}

type stompSession struct {
	id   string
	conn *stomp.Conn
	log  *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
	closing  atomic.Bool
}

func (s *stompSession) Subscribe(dest string, handle func([]byte)) error {
	sub, err := s.conn.Subscribe(dest, stomp.AckAuto)
	if err != nil {
		return errors.Wrapf(err, "stomp subscribe %s", dest)
	}
	go s.pump(dest, sub, handle)
	return nil
}

func (s *stompSession) pump(dest string, sub *stomp.Subscription, handle func([]byte)) {
	defer s.markDone()

	for msg := range sub.C {
		if msg.Err != nil {
			if !s.closing.Load() {
				s.log.Warn("subscription ended", zap.String("destination", dest), zap.Error(msg.Err))
			}
			return
		}
		handle(msg.Body)
	}
}

func (s *stompSession) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *stompSession) Done() <-chan struct{} {
	return s.done
}

func (s *stompSession) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.markDone()
	return s.conn.MustDisconnect()
}
