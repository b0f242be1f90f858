// Package app composes the client: config, logging, storage, the sync
// engines, and the TUI, wired together as an fx module.
package app

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ltavares/feira/internal/api"
	"github.com/ltavares/feira/internal/bus"
	"github.com/ltavares/feira/internal/config"
	"github.com/ltavares/feira/internal/gate"
	"github.com/ltavares/feira/internal/lock"
	"github.com/ltavares/feira/internal/logging"
	"github.com/ltavares/feira/internal/notify"
	"github.com/ltavares/feira/internal/poller"
	"github.com/ltavares/feira/internal/profile"
	"github.com/ltavares/feira/internal/store"
	intsync "github.com/ltavares/feira/internal/sync"
	"github.com/ltavares/feira/internal/tui"
	"github.com/ltavares/feira/internal/unread"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
}

// Module returns the fx module for the interactive client.
func Module(p Params) fx.Option {
	return fx.Module("feira",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideTokenStore,
			provideLock,
			provideStore,
			provideClient,
			provideNotifier,
			provideCounter,
			provideGate,
			provideSession,
			provideListSync,
			provideListPoller,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	// File only: stderr shares the terminal with the TUI.
	return logging.FileOnly(profile.LogPath(p.Profile), p.Profile)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTokenStore(p Params) *profile.TokenStore {
	return profile.NewTokenStore(profile.TokenPath(p.Profile))
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("profile", p.Profile))
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, tokens *profile.TokenStore, logger *zap.Logger) *api.Client {
	return api.New(cfg.APIURL, tokens, logger)
}

func provideNotifier(b *bus.Bus, logger *zap.Logger) *notify.Notifier {
	return notify.New(b, logger)
}

func provideCounter(b *bus.Bus) *unread.Counter {
	return unread.NewCounter(b)
}

func provideGate(tokens *profile.TokenStore) *gate.Gate {
	return gate.New(tokens)
}

// Session bundles the teardown that runs when any call reports an invalid
// credential: clear the token, zero the badge, drop the list, and announce
// it so the UI can switch to the login form. No toast by contract.
type Session struct {
	invalidate func()
}

// Invalidate runs the session teardown.
func (s *Session) Invalidate() { s.invalidate() }

func provideSession(tokens *profile.TokenStore, counter *unread.Counter, b *bus.Bus, logger *zap.Logger) *Session {
	return &Session{invalidate: func() {
		if err := tokens.Clear(); err != nil {
			logger.Warn("clearing credential failed", zap.Error(err))
		}
		counter.SetTotal(0)
		b.Publish(bus.Event{Kind: bus.KindSessionInvalidated, Timestamp: time.Now()})
		logger.Info("session invalidated")
	}}
}

func provideListSync(client *api.Client, db *store.DB, counter *unread.Counter,
	b *bus.Bus, notifier *notify.Notifier, logger *zap.Logger,
	cfg *config.Config, session *Session) *intsync.ListSync {
	return intsync.NewListSync(client, db, counter, b, notifier, logger,
		cfg.Poll.UnreadThrottle(), session.Invalidate)
}

func provideListPoller(list *intsync.ListSync, g *gate.Gate, cfg *config.Config,
	notifier *notify.Notifier, logger *zap.Logger, session *Session) *poller.Poller {
	p := poller.New(poller.Config{
		Name:     "list",
		Interval: cfg.Poll.ListInterval(),
		Backoff:  cfg.Poll.Backoff(),
	}, list.Refresh, g.ShouldPoll, session.Invalidate, notifier, logger)
	g.Register(p)
	return p
}

func provideApp(p Params, cfg *config.Config, logger *zap.Logger, b *bus.Bus,
	client *api.Client, tokens *profile.TokenStore, db *store.DB,
	counter *unread.Counter, g *gate.Gate, list *intsync.ListSync,
	listPoller *poller.Poller, notifier *notify.Notifier, session *Session) *tui.App {
	return tui.NewApp(tui.Deps{
		Profile:        p.Profile,
		Config:         cfg,
		Logger:         logger,
		Bus:            b,
		Client:         client,
		Tokens:         tokens,
		Store:          db,
		Counter:        counter,
		Gate:           g,
		List:           list,
		ListPoller:     listPoller,
		Notifier:       notifier,
		OnUnauthorized: session.Invalidate,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App,
	list *intsync.ListSync, listPoller *poller.Poller, lk *lock.Lock,
	db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Cached data first so the UI is never empty on startup.
			list.LoadCached()
			listPoller.Start(context.Background())

			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			listPoller.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("closing cache failed", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("releasing profile lock failed", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
