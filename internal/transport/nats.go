package transport

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NATSDialer connects to a NATS deployment of the broker. Destinations are
// subjects such as user.{userId}.messages.
type NATSDialer struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Log           *zap.Logger
}

func (d *NATSDialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &natsSession{done: make(chan struct{})}

	opts := []nats.Option{
		nats.Name(d.Name),
		nats.MaxReconnects(d.MaxReconnects),
		nats.ReconnectWait(d.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			s.markDone()
		}),
	}
	if creds.Token != "" {
		opts = append(opts, nats.Token(creds.Token))
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(d.URL, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "nats connect %s", d.URL)
	}
	s.nc = nc
	return s, nil
}

type natsSession struct {
	nc *nats.Conn

	done     chan struct{}
	doneOnce sync.Once
}

func (s *natsSession) Subscribe(subject string, handle func([]byte)) error {
	if _, err := s.nc.Subscribe(subject, func(m *nats.Msg) {
		handle(m.Data)
	}); err != nil {
		return errors.Wrapf(err, "nats subscribe %s", subject)
	}
	// Flush so the server has the interest registered before we report success.
	return errors.Wrap(s.nc.Flush(), "nats flush")
}

func (s *natsSession) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *natsSession) Done() <-chan struct{} {
	return s.done
}

func (s *natsSession) Close() error {
	s.nc.Close()
	s.markDone()
	return nil
}
