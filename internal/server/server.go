// Package server boots the storefront process: it connects the
// dependencies, wires the background workers and runs the HTTP and gRPC
// listeners until the context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/buddyengineerz/storefront/app/cart"
	"github.com/buddyengineerz/storefront/app/jobs"
	"github.com/buddyengineerz/storefront/app/routes"
	"github.com/buddyengineerz/storefront/app/schema"
	"github.com/buddyengineerz/storefront/app/services"
	"github.com/buddyengineerz/storefront/config"
	"github.com/buddyengineerz/storefront/internal/kernel"
	"github.com/buddyengineerz/storefront/pkg/cache"
	"github.com/buddyengineerz/storefront/pkg/database"
	"github.com/buddyengineerz/storefront/pkg/event"
	"github.com/buddyengineerz/storefront/pkg/graphql"
	"github.com/buddyengineerz/storefront/pkg/grpc"
	"github.com/buddyengineerz/storefront/pkg/logger"
	"github.com/buddyengineerz/storefront/pkg/mail"
	"github.com/buddyengineerz/storefront/pkg/notification"
	"github.com/buddyengineerz/storefront/pkg/queue"
	"github.com/buddyengineerz/storefront/pkg/router"
	"github.com/buddyengineerz/storefront/pkg/schedule"
	"github.com/buddyengineerz/storefront/pkg/storage"
	"github.com/buddyengineerz/storefront/pkg/workerpool"
	"github.com/buddyengineerz/storefront/pkg/ws"
)

const (
	eventPoolSize   = 8
	queueWorkers    = 4
	shutdownTimeout = 15 * time.Second

	// SweepTask is the scheduled stale-order sweep.
	SweepTask = "orders:sweep-stale"
)

// Deps are the connections an App is built over.
type Deps struct {
	DB *gorm.DB
	// Redis backs the cache, carts and queue. Nil keeps all three in memory.
	Redis *redis.Client
	// Disk stores product images. Nil disables uploads.
	Disk   storage.Disk
	Mailer mail.Mailer
	// QueueDriver is "memory" or "redis".
	QueueDriver string
	// StaleOrderAge is how long an unpaid online order may stay pending.
	StaleOrderAge time.Duration
	Rules         services.PricingRules
}

// App is one wired storefront process.
type App struct {
	DB        *gorm.DB
	Services  *services.Services
	Queue     *queue.Manager
	Scheduler *schedule.Scheduler
	Feed      *ws.Hub
	Disk      storage.Disk
	Checks    grpc.Checks

	pool *workerpool.Pool
}

// Boot loads configuration, connects the database, Redis, storage and
// mail from it, and wires the App. Redis and storage are optional: when
// they fail the process runs degraded and says so in the log.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.Boot()

	if err := database.Connect(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	if config.RedisAddr() != "" {
		if err := cache.Connect(ctx); err != nil {
			logger.Warn("server: redis unavailable, cache, carts and queue stay in memory", "error", err)
		}
	}

	disk, err := storage.Open(ctx)
	if err != nil {
		logger.Warn("server: image storage disabled", "error", err)
		disk = nil
	}

	// MAIL_HOST has a default, so only an explicit value selects SMTP.
	if config.Get("MAIL_HOST", "") != "" {
		mail.SetMailer(mail.NewSMTP(mail.FromConfig()))
	}

	return New(ctx, Deps{
		DB:            database.DB,
		Redis:         cache.RDB,
		Disk:          disk,
		Mailer:        mail.Default(),
		QueueDriver:   config.QueueDriver(),
		StaleOrderAge: time.Duration(config.StaleOrderHours()) * time.Hour,
		Rules:         services.PricingRulesFromConfig(),
	}), nil
}

// New wires services, jobs, event listeners and the scheduler over d.
// Event listeners are process-wide, so build one App per process.
func New(ctx context.Context, d Deps) *App {
	var (
		store  cache.Store = cache.NewMemory()
		carts  cart.Store  = cart.NewMemoryStore()
		driver queue.Driver
	)
	if d.Redis != nil {
		store = cache.NewRedis(d.Redis)
		carts = cart.NewRedisStore(d.Redis)
	}
	if d.QueueDriver == "redis" && d.Redis != nil {
		driver = queue.NewRedisDriver(ctx, d.Redis)
	} else {
		driver = queue.NewMemoryDriver()
	}
	if d.Mailer == nil {
		d.Mailer = mail.LogMailer{}
	}
	if d.StaleOrderAge <= 0 {
		d.StaleOrderAge = 48 * time.Hour
	}
	if d.Rules == (services.PricingRules{}) {
		d.Rules = services.DefaultPricingRules()
	}

	a := &App{
		DB:        d.DB,
		Services:  services.New(d.DB, store, carts, d.Rules),
		Queue:     queue.NewManager(driver),
		Scheduler: schedule.New(),
		Feed:      ws.NewHub(),
		Disk:      d.Disk,
		pool:      workerpool.New("events", eventPoolSize),
	}
	a.Checks = grpc.Checks{
		"database": func(ctx context.Context) error { return ping(ctx, a.DB) },
		"redis": func(ctx context.Context) error {
			if d.Redis == nil {
				return nil
			}
			return d.Redis.Ping(ctx).Err()
		},
	}

	a.Queue.UseStore(queue.GormFailedStore{DB: d.DB})
	jobs.Register(a.Queue, jobs.Deps{DB: d.DB, Notifier: notification.New(d.Mailer, config.AdminWebhookURL())})
	jobs.Listeners{Queue: a.Queue, Feed: a.Feed, Catalog: a.Services.Catalog}.Register()
	event.UsePool(a.pool)

	if origins := config.CORSOrigins(); len(origins) > 0 && !slices.Contains(origins, "*") {
		a.Feed.SetCheckOrigin(func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		})
	}

	maxAge := d.StaleOrderAge
	a.Scheduler.Hourly().Name(SweepTask).WithoutOverlapping().Run(func(ctx context.Context) error {
		_, err := a.Services.Orders.SweepStale(ctx, maxAge)
		return err
	})
	return a
}

func ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database: not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Router builds the full HTTP handler tree.
func (a *App) Router() (*router.Router, error) {
	catalog, err := schema.New(a.Services.Catalog)
	if err != nil {
		return nil, fmt.Errorf("graphql schema: %w", err)
	}

	var root string
	if local, ok := a.Disk.(*storage.Local); ok {
		root = local.Root()
	}

	return kernel.NewHTTP(kernel.Options{
		Routes: func(r *router.Router) {
			routes.Register(r, routes.Deps{
				Services:  a.Services,
				Disk:      a.Disk,
				GraphQL:   graphql.Handler(catalog),
				OrderFeed: a.Feed,
				APIKey:    config.APIKey(),
			})
		},
		Checks:      a.Checks,
		StorageRoot: root,
		CORSOrigins: config.CORSOrigins(),
		RateLimit:   config.RateLimitPerMinute(),
	}), nil
}

// Serve runs HTTP, gRPC health, the admin feed, queue workers and the
// scheduler until ctx ends or a listener fails, then drains them.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r, err := a.Router()
	if err != nil {
		return err
	}

	go a.Feed.Run(ctx)
	workers := a.Queue.StartWorkers(ctx, queueWorkers)
	a.Scheduler.Start(ctx)

	rpc, err := grpc.Start(ctx, config.GRPCPort(), a.Checks)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	logger.Info("server: shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("server: http shutdown", "error", err)
	}
	rpc.Stop()

	cancel()
	workers.Wait()
	a.Scheduler.Wait()
	return serveErr
}

// Close drains pending listeners and releases connections.
func (a *App) Close() {
	event.UsePool(nil)
	a.pool.Shutdown()
	if cache.RDB != nil {
		_ = cache.RDB.Close()
	}
	if err := database.Close(); err != nil {
		logger.Warn("server: database close", "error", err)
	}
	logger.Shutdown()
}

// Start boots the App and serves until ctx ends.
func Start(ctx context.Context) error {
	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}
