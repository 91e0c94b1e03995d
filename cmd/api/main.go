package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-nearvibe/internal/config"
	"backend-nearvibe/internal/db"
	"backend-nearvibe/internal/logger"
	"backend-nearvibe/internal/scheduler"
	"backend-nearvibe/internal/server"
	"backend-nearvibe/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	newLogger       func(env, level string) (*zap.Logger, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	ensureSchema    func(context.Context, db.Querier) error
	connectRedis    func(config.Config) *redis.Client
	newObjectStore  func(config.Config) (storage.ObjectStore, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Resources, <-chan os.Signal, ListenFunc) error
}

// Resources are the connections Run serves with. Any of them may be nil.
type Resources struct {
	PG    *pgxpool.Pool
	Redis *redis.Client
	Store storage.ObjectStore
	Log   *zap.Logger
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		newLogger:       logger.New,
		connectPostgres: db.ConnectPostgres,
		ensureSchema:    db.EnsureSchema,
		connectRedis:    db.ConnectRedis,
		newObjectStore:  newObjectStore,
		notify:          signal.Notify,
		run:             Run,
	}
}

// newObjectStore keeps a failed client from becoming a typed nil interface.
func newObjectStore(cfg config.Config) (storage.ObjectStore, error) {
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	zl, err := deps.newLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Printf("logger setup failed: %v", err)
		zl = zap.NewNop()
	}
	defer func() { _ = zl.Sync() }()

	res := Resources{Log: zl}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		zl.Error("postgres connection failed", zap.Error(err))
	} else {
		res.PG = pg
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := deps.ensureSchema(ctx, pg); err != nil {
			zl.Error("schema setup failed", zap.Error(err))
		}
		cancel()
	}

	res.Redis = deps.connectRedis(cfg)

	if cfg.UploadsEnabled() {
		store, err := deps.newObjectStore(cfg)
		if err != nil {
			zl.Warn("object storage disabled", zap.Error(err))
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := storage.EnsureBucket(ctx, store, cfg.MinioBucket); err != nil {
				zl.Warn("bucket setup failed", zap.Error(err))
			}
			cancel()
			res.Store = store
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, res, signals, nil); err != nil {
		zl.Error("server exited with error", zap.Error(err))
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and background jobs, then waits for termination signals.
func Run(ctx context.Context, cfg config.Config, res Resources, signals <-chan os.Signal, listen ListenFunc) error {
	zl := logger.OrNop(res.Log)
	srv := server.NewServer(cfg, res.PG, res.Redis, res.Store, zl)

	jobs := scheduler.New(zl.Named("scheduler"))
	if res.PG != nil {
		if err := jobs.Add(scheduler.PruneTokensJob(cfg.TokenPruneSchedule, srv.Auth)); err != nil {
			return err
		}
		if err := jobs.Add(scheduler.ReconcileRatingsJob(cfg.RatingReconcileSchedule, srv.Adventures)); err != nil {
			return err
		}
	}
	jobs.Start()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	var listenErr error
	select {
	case <-signals:
	case <-ctx.Done():
	case listenErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jobs.Stop(shutdownCtx)
	if listenErr != nil {
		return listenErr
	}
	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Stream.Close()
	if res.PG != nil {
		res.PG.Close()
	}
	if res.Redis != nil {
		_ = res.Redis.Close()
	}
	return nil
}
