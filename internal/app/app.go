package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/smartcart/internal/backend"
	"github.com/fjod/smartcart/internal/budget"
	"github.com/fjod/smartcart/internal/cart"
	"github.com/fjod/smartcart/internal/catalog"
	"github.com/fjod/smartcart/internal/config"
	"github.com/fjod/smartcart/internal/database"
	apihttp "github.com/fjod/smartcart/internal/http"
	"github.com/fjod/smartcart/internal/notify"
	"github.com/fjod/smartcart/internal/orders"
	"github.com/fjod/smartcart/internal/publisher"
	"github.com/fjod/smartcart/internal/session"
	"github.com/fjod/smartcart/internal/shopper"
	"github.com/fjod/smartcart/internal/store"
	"go.uber.org/zap"
)

// App owns every long-lived component of the device. Each engine is
// created once here and shared by reference.
type App struct {
	Handler http.Handler

	Cart     *cart.Engine
	Session  *session.Engine
	Shopper  *shopper.Service
	Catalog  *shopper.Catalog
	Toaster  *notify.Toaster
	Recorder *orders.Recorder

	log     *zap.Logger
	closers []func(context.Context) error
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	a := &App{log: log}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return db.Close() })

	st, err := a.openStore(ctx, cfg, db)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	pub := a.openPublisher(cfg)
	a.onClose(func(context.Context) error { return pub.Close() })

	delays := backend.Delays{}
	if cfg.MockLatency {
		delays = backend.DefaultDelays()
	}
	repo := catalog.NewRepository(db)
	be := backend.NewBreaker(
		backend.NewMock(repo, delays, log.Named("backend")),
		cfg.BreakerMaxFailures,
		cfg.BreakerOpenTimeout,
		log.Named("breaker"),
	)

	a.Toaster = notify.NewToaster(cfg.ToastDuration, log.Named("toast"))
	a.onClose(func(context.Context) error {
		a.Toaster.Close()
		return nil
	})

	a.Cart = cart.NewEngine(ctx, st, log.Named("cart"))
	budget.Attach(a.Cart, a.Toaster)
	a.Session = session.NewEngine(ctx, st, be, a.Cart, log.Named("session"))
	a.Recorder = orders.NewRecorder(st, pub, log.Named("orders"))
	a.Shopper = shopper.NewService(a.Cart, a.Session, be, a.Recorder, a.Toaster, log.Named("shopper"))
	a.Catalog = shopper.NewCatalog(repo, a.Toaster, log.Named("catalog"))

	a.Handler = apihttp.NewRouter(apihttp.Deps{
		Shopper: a.Shopper,
		Catalog: a.Catalog,
		Cart:    a.Cart,
		Session: a.Session,
		Toasts:  a.Toaster,
	}, cfg.RequestTimeout, log)

	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, db *sql.DB) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StoreRedis:
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return client.Close() })
		return store.NewRedisStore(client, cfg.RedisPrefix, cfg.RedisTTL), nil
	case config.StoreMongo:
		mdb, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		a.onClose(func(ctx context.Context) error { return mdb.Client().Disconnect(ctx) })
		return store.NewMongoStore(mdb), nil
	case config.StoreSQLite, "":
		return store.NewSQLStore(db), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) openPublisher(cfg config.Config) publisher.OrderPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		a.log.Info("no kafka brokers configured, orders will not be published")
		return publisher.Nop{}
	}
	return publisher.NewKafkaPublisher(cfg.KafkaTopic, a.log.Named("publisher"), cfg.KafkaBrokers...)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
