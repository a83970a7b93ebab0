package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sharedlist-sync-server/internal/config"
	"sharedlist-sync-server/internal/notify"
	"sharedlist-sync-server/internal/ratelimit"
	"sharedlist-sync-server/internal/repository"
	"sharedlist-sync-server/internal/websocket"

	"github.com/redis/go-redis/v9"
)

const quotaJanitorInterval = time.Minute

// App owns every backend the HTTP handler needs and closes them in order.
type App struct {
	Handler http.Handler

	cfg        *config.Config
	db         *sql.DB
	rdb        *redis.Client
	memQuota   *ratelimit.MemoryStore
	wsManager  *websocket.Manager
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
}

// New opens storage, the quota store and the push platforms selected by cfg.
// Postgres migrations run before the handler is built.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	repos, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	limiter, err := a.openQuota(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.wsManager = websocket.NewManager(
		cfg.WebSocket.MaxConnPerList,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		logger,
	)

	platforms, err := a.openPlatforms(ctx, repos.Subscriptions)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatcher = notify.NewDispatcher(cfg.Push.Workers, cfg.Push.Timeout, logger, platforms...)

	a.Handler = NewRouter(Deps{
		Config:    cfg,
		Repos:     repos,
		Limiter:   limiter,
		Notifier:  a.dispatcher,
		WSManager: a.wsManager,
		Logger:    logger,
	})
	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*repository.Repositories, error) {
	switch a.cfg.Database.Driver {
	case "memory":
		a.logger.Warn("using in-memory list storage, data is lost on restart")
		return repository.NewMemoryRepositories(), nil
	case "postgres":
		db, err := repository.OpenPostgres(ctx, a.cfg.Database.URL, a.cfg.Database.MaxOpenConns, a.cfg.Database.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if err := repository.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.logger.Info("connected to postgres")
		return repository.NewPostgresRepositories(db), nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", a.cfg.Database.Driver)
	}
}

// openQuota returns nil when admission control is turned off.
func (a *App) openQuota(ctx context.Context) (*ratelimit.Limiter, error) {
	if !a.cfg.RateLimit.Enabled {
		a.logger.Warn("rate limiting disabled")
		return nil, nil
	}

	var store ratelimit.Store
	switch a.cfg.Redis.Driver {
	case "memory":
		a.memQuota = ratelimit.NewMemoryStore()
		store = a.memQuota
	case "redis":
		opts, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.rdb = redis.NewClient(opts)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.logger.Info("connected to redis")
		store = ratelimit.NewRedisStore(a.rdb)
	default:
		return nil, fmt.Errorf("unknown QUOTA_DRIVER %q", a.cfg.Redis.Driver)
	}

	if a.cfg.RateLimit.DisableAddressScope {
		a.logger.Warn("per-address rate limits disabled")
	}
	return ratelimit.NewLimiter(store, ratelimit.WithAddressScopeDisabled(a.cfg.RateLimit.DisableAddressScope)), nil
}

func (a *App) openPlatforms(ctx context.Context, tokens notify.TokenLister) ([]notify.Platform, error) {
	fcm, err := notify.NewFCM(ctx, notify.FCMConfig{
		ProjectID:       a.cfg.Push.FCM.ProjectID,
		CredentialsFile: a.cfg.Push.FCM.CredentialsFile,
	}, a.logger)
	if err != nil {
		return nil, err
	}

	apnsCfg := a.cfg.Push.APNs
	apns, err := notify.NewAPNs(notify.APNsConfig{
		TeamID:         apnsCfg.TeamID,
		KeyID:          apnsCfg.KeyID,
		BundleID:       apnsCfg.BundleID,
		PrivateKeyPath: apnsCfg.PrivateKeyPath,
		UseSandbox:     apnsCfg.UseSandbox,
		RatePerSecond:  float64(apnsCfg.RatePerSecond),
		Burst:          apnsCfg.RatePerSecond,
	}, tokens, a.logger)
	if err != nil {
		return nil, err
	}

	a.logger.Info("push platforms", "fcm", fcm.Enabled(), "apns", apns.Enabled())
	return []notify.Platform{fcm, apns, notify.NewWebSocketPlatform(a.wsManager)}, nil
}

// Run drives the background loops until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	if a.memQuota != nil {
		a.memQuota.StartJanitor(ctx, quotaJanitorInterval)
	}
	go a.wsManager.Run(ctx)
}

// Close waits for in-flight notifications, then closes the stores. Call it
// after the HTTP server has drained.
func (a *App) Close() error {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}

	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
