package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	gininbound "github.com/uniedit/checkout/internal/adapter/inbound/gin"
	"github.com/uniedit/checkout/internal/adapter/outbound/kafka"
	redisstore "github.com/uniedit/checkout/internal/adapter/outbound/redis"
	"github.com/uniedit/checkout/internal/domain/checkout"
	"github.com/uniedit/checkout/internal/domain/payment"
	"github.com/uniedit/checkout/internal/infra/events"
	"github.com/uniedit/checkout/internal/infra/task"
	"github.com/uniedit/checkout/internal/shared/cache"
	"github.com/uniedit/checkout/internal/shared/config"
	"github.com/uniedit/checkout/internal/shared/database"
	"github.com/uniedit/checkout/internal/shared/logger"
	"github.com/uniedit/checkout/internal/utils/metrics"
	"github.com/uniedit/checkout/internal/utils/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App represents the application.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  goredis.UniversalClient
	router *gin.Engine

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Event and job infrastructure
	eventBus  *events.Bus
	sink      *kafka.Sink
	scheduler *task.Scheduler

	// Domains
	sessions *checkout.Manager
	payments *payment.Processor
	refunds  *payment.RefundProcessor
}

// New creates a new application instance. Background work starts with Start.
func New(cfg *config.Config) (*App, error) {
	return newApp(cfg, logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}))
}

func newApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New("checkout", app.registry)

	if err := app.initInfrastructure(context.Background()); err != nil {
		app.Stop()
		return nil, err
	}
	if err := app.initDomains(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("init domains: %w", err)
	}
	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initInfrastructure connects the database and Redis the configuration asks for.
func (a *App) initInfrastructure(ctx context.Context) error {
	if a.config.Store.Driver == config.StorePostgres {
		db, err := database.New(&a.config.Database, a.logger)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		a.db = db
	}

	if a.config.Redis.Address != "" {
		client, err := cache.NewRedisClient(ctx, &a.config.Redis)
		switch {
		case err == nil:
			a.redis = client
		case a.config.Store.Driver == config.StoreRedis:
			return fmt.Errorf("init redis: %w", err)
		default:
			// Redis only backs rate limiting and idempotency here.
			a.logger.Warn("redis unavailable, continuing without it", zap.Error(err))
		}
	}

	return nil
}

// initDomains builds the stores, the event bus, the settlement scheduler and
// the checkout and payment domains.
func (a *App) initDomains() error {
	st, err := a.buildStores()
	if err != nil {
		return err
	}

	a.eventBus = events.NewBus(a.logger)
	a.eventBus.Register(events.NewHandlerFunc([]string{events.Wildcard}, func(e events.Event) error {
		a.logger.Debug("domain event",
			zap.String("event_type", e.EventType()),
			zap.String("aggregate_id", e.AggregateID().String()))
		return nil
	}))
	if kcfg := kafkaConfig(&a.config.Kafka); kcfg.Enabled() {
		a.sink = kafka.NewSink(kcfg, a.logger)
		a.eventBus.Register(a.sink)
	}

	a.scheduler = task.NewScheduler(a.logger, schedulerConfig(&a.config.Settlement), a.metrics)

	a.sessions = checkout.NewManager(st.sessions, checkoutConfig(&a.config.Checkout), a.logger,
		checkout.WithMetrics(a.metrics))

	paymentOpts := []payment.Option{
		payment.WithPublisher(a.eventBus),
		payment.WithMetrics(a.metrics),
	}
	settlement := paymentConfig(&a.config.Settlement)
	a.payments = payment.NewProcessor(st.sessions, st.transactions, a.buildGateway(), a.scheduler,
		settlement, a.logger, paymentOpts...)
	a.refunds = payment.NewRefundProcessor(st.transactions, a.scheduler, settlement, a.logger, paymentOpts...)

	a.scheduler.RegisterHandler(payment.JobSettlePayment, a.payments.Settle)
	a.scheduler.RegisterHandler(payment.JobSettleRefund, a.refunds.SettleRefund)

	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID(a.logger))
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Metrics(a.metrics))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return r
}

// registerRoutes registers the service routes.
func (a *App) registerRoutes() {
	gininbound.RegisterHealthRoutes(a.router, gininbound.NewHealthAdapter(a.sessions, a.payments))

	api := a.router.Group("/checkout")
	if a.redis != nil {
		if a.config.RateLimit.Enabled {
			api.Use(middleware.RateLimit(redisstore.NewRateLimiter(a.redis), middleware.RateLimitConfig{
				Limit:  a.config.RateLimit.Limit,
				Window: a.config.RateLimit.Window,
			}, a.logger))
		}
		api.Use(middleware.Idempotency(a.redis, middleware.IdempotencyConfig{
			TTL: a.config.RateLimit.IdempotencyTTL,
		}))
	}

	gininbound.RegisterCheckoutRoutes(api, gininbound.NewCheckoutAdapter(a.sessions, a.config.Checkout.DefaultCurrency))
	gininbound.RegisterPaymentRoutes(api,
		gininbound.NewPaymentAdapter(a.payments),
		gininbound.NewRefundAdapter(a.refunds))
}

// Start runs the expiry sweeper and reschedules settlements left unfinished
// by a previous run.
func (a *App) Start(ctx context.Context) error {
	a.sessions.Start(ctx)

	if _, err := a.payments.RecoverPending(ctx); err != nil {
		return fmt.Errorf("recover payments: %w", err)
	}
	if _, err := a.refunds.RecoverPending(ctx); err != nil {
		return fmt.Errorf("recover refunds: %w", err)
	}
	return nil
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops background work and releases resources.
func (a *App) Stop() {
	if a.sessions != nil {
		a.sessions.Stop()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("close event sink", zap.Error(err))
		}
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}

	_ = a.logger.Sync()
}
