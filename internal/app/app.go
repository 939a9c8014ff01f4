package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/audit"
	"github.com/saha-club/bookingservice/internal/auth"
	"github.com/saha-club/bookingservice/internal/booking"
	bookingpg "github.com/saha-club/bookingservice/internal/booking/postgres"
	"github.com/saha-club/bookingservice/internal/cache"
	"github.com/saha-club/bookingservice/internal/config"
	"github.com/saha-club/bookingservice/internal/events"
	"github.com/saha-club/bookingservice/internal/jobs"
	"github.com/saha-club/bookingservice/internal/ledger"
	ledgerpg "github.com/saha-club/bookingservice/internal/ledger/postgres"
	"github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/metrics"
	"github.com/saha-club/bookingservice/internal/pricing"
	pricingpg "github.com/saha-club/bookingservice/internal/pricing/postgres"
	"github.com/saha-club/bookingservice/internal/server"
	"github.com/saha-club/bookingservice/internal/service"
	"github.com/saha-club/bookingservice/internal/weather"
)

// App wires the booking service together: storage, pricing, the hour
// ledger, the allocator, the gRPC surface and the background jobs.
type App struct {
	config        *config.Config
	logger        *zap.Logger
	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	publisher     events.Publisher
	grpcServer    *server.GRPCServer
	metricsServer *metrics.Server
	scheduler     *jobs.Scheduler
	service       *service.BookingService
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	if err := log.Init(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.L(context.Background())

	logger.Info("Initializing booking service application",
		zap.String("app_name", cfg.AppName),
		zap.String("grpc_address", cfg.GRPC.Address))

	// Database is optional: without a DSN the service runs on in-memory
	// stores, which is how the test and demo environments operate.
	dbPool, err := initializeDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisClient, err := initializeRedis(cfg)
	if err != nil {
		logger.Warn("Redis initialization failed, continuing without Redis",
			zap.Error(err),
			zap.String("redis_addr", cfg.Redis.Addr))
		redisClient = nil
	}

	var sharedCache cache.Cache
	if redisClient != nil {
		sharedCache = cache.NewRedisFromClient(redisClient)
	} else {
		sharedCache = cache.NewMemory()
	}

	// Storage layer.
	var (
		reservations booking.ReservationStore
		resources    booking.ResourceStore
		instruments  ledger.InstrumentStore
		ruleSource   *pricingpg.Store
	)
	if dbPool != nil {
		store, err := bookingpg.NewStoreWithPool(dbPool)
		if err != nil {
			return nil, err
		}
		reservations = store.Reservations()
		resources = store.Resources()
		instruments, err = ledgerpg.NewStoreWithPool(dbPool)
		if err != nil {
			return nil, err
		}
		ruleSource, err = pricingpg.NewStoreWithPool(dbPool)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("No database configured, using in-memory stores")
		reservations = booking.NewMemoryReservationStore()
		resources = booking.NewMemoryResourceStore()
		instruments = ledger.NewMemoryInstrumentStore()
	}

	// Pricing.
	ruleStore := pricing.NewMemoryRuleStore()
	if ruleSource != nil {
		rules, err := ruleSource.LoadAll(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to load pricing rules: %w", err)
		}
		ruleStore.ReplaceAll(rules)
		logger.Info("Pricing rules loaded", zap.Int("count", len(rules)))
	}
	engine := pricing.NewEngine(ruleStore)

	weatherClient := weather.NewClient(cfg.Weather, sharedCache, logger)
	collector := pricing.NewCollector(
		occupancySource{reservations: reservations, resources: resources},
		weatherClient, nil, sharedCache, cfg.Booking.OccupancyCacheTTL)

	// Events.
	publisher, err := initializePublisher(cfg, logger)
	if err != nil {
		logger.Warn("Kafka initialization failed, events disabled", zap.Error(err))
		publisher = events.NoopPublisher{}
	}

	// Core.
	credits := ledger.New(instruments)
	allocator := booking.NewAllocator(reservations, resources, collector, engine, credits, publisher, booking.Options{
		PaymentTimeout: cfg.Booking.PaymentTimeout,
		CheckInWindow:  cfg.Booking.CheckInWindow,
		LockWait:       cfg.Booking.LockWait,
	})
	bookingService := service.NewBookingService(allocator, credits, audit.New(logger))

	// Surface.
	validator, err := initializeValidator(cfg, logger)
	if err != nil {
		return nil, err
	}
	grpcServer := server.NewGRPCServer(cfg, dbPool, redisClient, validator)
	metricsServer := metrics.NewServer(cfg.Metrics.Address, logger)

	scheduler := jobs.NewScheduler(allocator)
	if ruleSource != nil {
		src := ruleSource
		scheduler.ReloadRules = func(ctx context.Context) error {
			rules, err := src.LoadAll(ctx)
			if err != nil {
				return err
			}
			ruleStore.ReplaceAll(rules)
			return nil
		}
	}

	return &App{
		config:        cfg,
		logger:        logger,
		dbPool:        dbPool,
		redisClient:   redisClient,
		publisher:     publisher,
		grpcServer:    grpcServer,
		metricsServer: metricsServer,
		scheduler:     scheduler,
		service:       bookingService,
	}, nil
}

// Service exposes the booking API, used by transport registration and tests.
func (a *App) Service() *service.BookingService {
	return a.service
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting booking service application")

	a.grpcServer.StartHealthMonitoring(ctx)

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		if err := a.metricsServer.Start(ctx); err != nil {
			a.logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	if err := a.grpcServer.Serve(ctx); err != nil {
		return fmt.Errorf("gRPC server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down booking service application")

	a.scheduler.Stop()

	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shut down metrics server", zap.Error(err))
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.logger.Info("Application shutdown complete")
	return nil
}

// occupancySource adapts the two stores into the single counter the
// pricing collector wants.
type occupancySource struct {
	reservations booking.ReservationStore
	resources    booking.ResourceStore
}

func (o occupancySource) CountBookedResources(ctx context.Context, start, end time.Time) (int, error) {
	return o.reservations.CountBookedResources(ctx, start, end)
}

func (o occupancySource) CountActiveResources(ctx context.Context) (int, error) {
	return o.resources.CountActiveResources(ctx)
}

// initializeDatabase initializes the database connection pool
func initializeDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	if cfg.Postgres.DSN == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Postgres.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// initializeRedis initializes the Redis client
func initializeRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// initializePublisher builds the Kafka publisher, or a noop when no
// brokers are configured.
func initializePublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Warn("No Kafka brokers configured, events disabled")
		return events.NoopPublisher{}, nil
	}
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}

// initializeValidator builds the token validator. Without a public key the
// insecure validator is used, which only makes sense in development.
func initializeValidator(cfg *config.Config, logger *zap.Logger) (auth.Validator, error) {
	if cfg.Auth.PublicKeyPEM == "" {
		logger.Warn("No auth public key configured, using insecure validator")
		return auth.InsecureValidator{}, nil
	}
	validator, err := auth.NewJWTValidator(cfg.Auth.PublicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT validator: %w", err)
	}
	return validator, nil
}
