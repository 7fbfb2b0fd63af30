package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"tx-dashboard/internal/alerting"
	"tx-dashboard/internal/cache"
	"tx-dashboard/internal/config"
	"tx-dashboard/internal/pipeline"
	"tx-dashboard/internal/scheduler"
	"tx-dashboard/internal/service"
	"tx-dashboard/internal/source"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if !a.Config.UsesPostgres() {
		return nil, nil
	}
	db := a.Config.Database
	return source.NewPool(ctx, source.PoolOptions{
		DSN:             db.DSN,
		MaxConns:        db.MaxOpenConns,
		MinConns:        db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	})
}

func (a *App) newReader(pool *pgxpool.Pool, cfg config.SourceConfig) source.Reader {
	opts := source.Options{Lenient: a.Config.Sources.Lenient, Logger: a.Logger}
	if cfg.Kind == config.SourcePostgres {
		return source.NewPostgres(pool, cfg.Table, opts)
	}
	return source.NewCSV(cfg.Path, opts)
}

func (a *App) newCacheStore(ctx context.Context) (cache.Store, func(), error) {
	if a.Config.Cache.Backend != config.CacheRedis {
		return cache.NewMemoryStore(), nil, nil
	}
	rc := a.Config.Cache.Redis
	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	return cache.NewRedisStore(client, rc.KeyPrefix), func() { _ = client.Close() }, nil
}

// openPipeline wires readers, cache and pipeline. The returned closer releases
// the database pool and Redis client.
func (a *App) openPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	pool, err := a.openPool(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, closeStore, err := a.newCacheStore(ctx)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, err
	}

	closer := func() {
		if closeStore != nil {
			closeStore()
		}
		if pool != nil {
			pool.Close()
		}
	}

	p := pipeline.New(
		a.newReader(pool, a.Config.Sources.Status),
		a.newReader(pool, a.Config.Sources.Auth),
		cache.New(store, nil, a.Logger),
		pipeline.Options{TTL: a.Config.Cache.TTL, ReadTimeout: a.Config.Sources.ReadTimeout},
		a.Logger,
	)
	return p, closer, nil
}

// Run executes the refresh loop and renders the dashboard to stdout on every tick.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sel, err := a.Config.ResolveWindow(opts.Window)
	if err != nil {
		return err
	}

	p, closePipeline, err := a.openPipeline(ctx)
	if err != nil {
		return err
	}
	defer closePipeline()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresh.Interval,
		AlignToStart: a.Config.Refresh.AlignToTick,
		StartupDelay: a.Config.Refresh.StartupDelay,
		Immediate:    true,
	}, a.Logger)

	publish := func(snap pipeline.Snapshot, err error) {
		if err != nil {
			renderFailure(opts.Out, err)
			return
		}
		renderDashboard(opts.Out, snap, a.Config.Display.TableRows)
	}

	svc := service.New(a.Config, sched, p, sel, publish, a.newNotifier(), nil, a.Logger)

	a.Logger.Info().
		Str("identity", p.Identity()).
		Str("window", sel.Name).
		Dur("interval", a.Config.Refresh.Interval).
		Msg("starting dashboard refresh loop")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("refresh loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh loop stopped")
	return nil
}

// refreshOnce runs a single cycle for one-shot commands.
func (a *App) refreshOnce(ctx context.Context, window string) (pipeline.Snapshot, error) {
	sel, err := a.Config.ResolveWindow(window)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	p, closePipeline, err := a.openPipeline(ctx)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	defer closePipeline()

	snap, err := p.Refresh(ctx, sel)
	if err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("refresh: %w", err)
	}
	return snap, nil
}
