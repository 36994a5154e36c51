package main

import (
	"context"
	"time"

	"github.com/broomate/roomie/internal/api"
	"github.com/broomate/roomie/internal/config"
	"github.com/broomate/roomie/internal/directory"
	"github.com/broomate/roomie/internal/ledger"
	"github.com/broomate/roomie/internal/notify"
	"github.com/broomate/roomie/internal/store"
	"github.com/broomate/roomie/internal/transport"
	"github.com/broomate/roomie/internal/ui"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const startTimeout = 20 * time.Second

// application owns every long-lived service of one session.
type application struct {
	cfg       config.Config
	log       *zap.Logger
	store     store.Store
	api       *api.Client
	transport *transport.Client
	directory *directory.Directory
	feed      *notify.Feed
	detach    func()
}

func openStore(cfg config.LedgerConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.LedgerMemory:
		return store.NewMemory(), nil
	case config.LedgerRedis:
		return store.OpenRedis(store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return store.OpenSQLite(cfg.Path)
	}
}

func newDialer(cfg config.BrokerConfig, log *zap.Logger) transport.Dialer {
	if cfg.Kind == config.BrokerNATS {
		return &transport.NATSDialer{URL: cfg.URL, Name: "roomie", Log: log}
	}
	return &transport.STOMPDialer{URL: cfg.URL, Heartbeat: cfg.Heartbeat, Log: log}
}

// build wires the services without touching the network.
func build(cfg config.Config, log *zap.Logger) (*application, error) {
	st, err := openStore(cfg.Ledger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s ledger", cfg.Ledger.Driver)
	}

	apiClient := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.Auth.Token,
		Timeout: cfg.API.Timeout,
	}, log)

	tc := transport.New(newDialer(cfg.Broker, log), transport.Options{
		MessageDestination: cfg.Broker.MessageDestination,
		SwipeDestination:   cfg.Broker.SwipeDestination,
		ReconnectDelay:     cfg.Broker.ReconnectDelay,
		DialTimeout:        cfg.Broker.DialTimeout,
	}, log)

	dir := directory.New(apiClient, ledger.New(st, log), tc, cfg.Auth.UserID, log)

	var system notify.SystemNotifier
	if cfg.Notifications.System {
		system = notify.NewCommandNotifier("Roomie")
	}

	return &application{
		cfg:       cfg,
		log:       log,
		store:     st,
		api:       apiClient,
		transport: tc,
		directory: dir,
		feed:      notify.NewFeed(system, log),
	}, nil
}

// start builds the services, loads the inbox and connects the realtime
// transport. Neither a failed fetch nor a failed connect is fatal: the UI
// shows the offline state and the user can refresh.
func start(cfg config.Config, log *zap.Logger) (*application, error) {
	app, err := build(cfg, log)
	if err != nil {
		return nil, err
	}

	app.detach = app.feed.Attach(app.transport, cfg.Auth.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()
	if err := app.directory.Start(ctx); err != nil {
		log.Warn("initial fetch failed", zap.Error(err))
	}
	if cfg.Auth.Token != "" {
		_ = app.directory.Connect(ctx, cfg.Auth.Token)
	} else {
		log.Info("no auth token, realtime updates disabled")
	}
	return app, nil
}

func (a *application) Services() ui.Services {
	return ui.Services{
		Directory: a.directory,
		Feed:      a.feed,
		Backend:   a.api,
		Source:    a.transport,
		UserID:    a.cfg.Auth.UserID,
		Log:       a.log,
	}
}

// Close tears the session down. Pending ledger writes are flushed before
// the store closes.
func (a *application) Close() {
	if a.detach != nil {
		a.detach()
	}
	a.directory.Close()
	a.transport.Disconnect()
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close ledger store", zap.Error(err))
	}
}
