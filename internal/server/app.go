// Package server wires the piggysync components together and runs the HTTP
// API until the process is signalled, then shuts everything down in order.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/piggysync/internal/cryptox"
	"github.com/dmitrijs2005/piggysync/internal/filex"
	"github.com/dmitrijs2005/piggysync/internal/logging"
	"github.com/dmitrijs2005/piggysync/internal/notify"
	"github.com/dmitrijs2005/piggysync/internal/realtime"
	"github.com/dmitrijs2005/piggysync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/piggysync/internal/repositories/viewcache"
	"github.com/dmitrijs2005/piggysync/internal/server/config"
	"github.com/dmitrijs2005/piggysync/internal/server/httpapi"
	"github.com/dmitrijs2005/piggysync/internal/services/loader"
	"github.com/dmitrijs2005/piggysync/internal/services/piggybank"
	"github.com/dmitrijs2005/piggysync/internal/services/reconciler"
	"github.com/go-redis/redis/v8"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	cacheDB  *sql.DB
	redis    *redis.Client
	sessions *realtime.Manager
	changes  *realtime.Listener
	server   *httpapi.Server
}

// NewApp validates the configuration, opens the stores, applies
// migrations and builds the service graph.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mode, _ := reconciler.ParseMode(c.ConcurrencyMode)
	loc, _ := time.LoadLocation(c.Timezone)

	cipher, err := cryptox.NewAmountCipher([]byte(c.CipherKey), []byte(c.CipherSalt))
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	app.db, err = sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("db migrations error: %w", err)
	}

	if _, err := filex.EnsureDirFor(filex.SQLitePath(c.CacheDSN)); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("view cache dir: %w", err)
	}
	var cache *viewcache.SQLiteStore
	app.cacheDB, cache, err = viewcache.Open(ctx, c.CacheDSN)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("view cache init error: %w", err)
	}

	var transport realtime.Transport
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		transport = realtime.NewRedisTransport(app.redis, logger.With("module", "realtime"))
	} else {
		logger.Warn(ctx, "no redis address configured, change notifications stay in-process")
		transport = realtime.NewLocalTransport(logger.With("module", "realtime"))
	}

	rec := reconciler.New(rm.PiggyBanks(app.db), rm.Transactions(app.db), cipher,
		logger.With("module", "reconciler"), reconciler.WithMode(mode, c.OptimisticRetries))
	ld := loader.New(app.db, rm, rec, cipher, logger.With("module", "loader"),
		loader.WithCache(cache), loader.WithLocation(loc))
	svc := piggybank.NewService(app.db, rm, ld, rec, cipher, logger.With("module", "piggybank"))

	app.changes = realtime.NewListener(realtime.PgxDialer(c.DatabaseDSN),
		realtime.NewPublisher(transport, logger.With("module", "publisher")), logger.With("module", "changes"))

	hub := notify.NewHub(logger.With("module", "events"))
	emitter := notify.Multi{notify.NewLogEmitter(logger.With("module", "notify")), hub}
	app.sessions = realtime.NewManager(transport, ld, emitter, logger.With("module", "sessions"),
		realtime.WithDebounce(c.Debounce))

	app.server = httpapi.NewServer(c.HTTPAddr, logger, svc, hub, app.sessions, c.AuthSecret,
		httpapi.WithRequestTimeout(c.LoadTimeout))

	logger.Info(ctx, "app initialised", "concurrency_mode", string(mode), "timezone", loc.String())
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx, app.config.ShutdownTimeout); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the HTTP server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.changes.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

// close releases resources in reverse order of acquisition.
func (app *App) close(ctx context.Context) {
	var errs []error
	if app.sessions != nil {
		app.sessions.Close()
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.cacheDB != nil {
		errs = append(errs, app.cacheDB.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error(ctx, "shutdown error", "error", err)
	}
}
