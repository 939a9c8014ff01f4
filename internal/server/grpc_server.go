package server

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/saha-club/bookingservice/internal/auth"
	"github.com/saha-club/bookingservice/internal/config"
	"github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/ratelimit"
	"github.com/saha-club/bookingservice/internal/server/interceptors"
)

// GRPCServer wraps the gRPC server with its interceptor chain, health
// service and dependency monitoring.
type GRPCServer struct {
	server       *grpc.Server
	config       *config.Config
	logger       *zap.Logger
	healthServer *health.Server
	pool         *pgxpool.Pool
	redisClient  *redis.Client
}

// NewGRPCServer builds the server with the full interceptor chain. The
// pool and redisClient are only used for health reporting and may be nil.
func NewGRPCServer(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, validator auth.Validator) *GRPCServer {
	logger := log.L(context.Background())

	authInterceptor := interceptors.NewAuthInterceptor(validator, cfg.Auth.WhitelistedMethods)
	loggingInterceptor := interceptors.NewLoggingInterceptor()
	errorHandlerInterceptor := interceptors.NewErrorHandlerInterceptor()

	// Booking creation holds the resource lock and may talk to the
	// weather API, so it gets more headroom than reads.
	methodTimeouts := map[string]time.Duration{
		"/booking.v1.BookingService/CreateReservation": 30 * time.Second,
		"/booking.v1.BookingService/QuotePrice":        20 * time.Second,
		"/booking.v1.BookingService/CancelReservation": 20 * time.Second,
	}
	timeoutInterceptor := interceptors.NewTimeoutInterceptor(15*time.Second, methodTimeouts)

	recoveryOpts := []grpc_recovery.Option{
		grpc_recovery.WithRecoveryHandler(func(p interface{}) (err error) {
			logger.Error("gRPC panic recovered", zap.Any("panic", p))
			return status.Errorf(codes.Internal, "internal server error")
		}),
	}

	zapOpts := []grpc_zap.Option{
		grpc_zap.WithLevels(grpc_zap.DefaultCodeToLevel),
	}

	unaryInterceptors := []grpc.UnaryServerInterceptor{
		otelgrpc.UnaryServerInterceptor(),
		grpc_recovery.UnaryServerInterceptor(recoveryOpts...),
		grpc_zap.UnaryServerInterceptor(logger, zapOpts...),
		timeoutInterceptor.Unary(),
		authInterceptor.Unary(),
		errorHandlerInterceptor.Unary(),
		loggingInterceptor.Unary(),
	}

	streamInterceptors := []grpc.StreamServerInterceptor{
		otelgrpc.StreamServerInterceptor(),
		grpc_recovery.StreamServerInterceptor(recoveryOpts...),
		grpc_zap.StreamServerInterceptor(logger, zapOpts...),
		timeoutInterceptor.Stream(),
		authInterceptor.Stream(),
		errorHandlerInterceptor.Stream(),
		loggingInterceptor.Stream(),
	}

	if redisClient != nil {
		limiter := ratelimit.NewRedisRateLimiter(redisClient, 100, time.Minute)
		unaryInterceptors = append(unaryInterceptors, ratelimit.UnaryServerInterceptor(limiter))
		logger.Info("Rate limiter initialized with Redis")
	} else {
		logger.Warn("Redis not available, rate limiting disabled")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(unaryInterceptors...)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(streamInterceptors...)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	// NOT_SERVING until the first dependency check succeeds.
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.GRPC.EnableReflection {
		logger.Info("Registering gRPC reflection")
		reflection.Register(server)
	}

	return &GRPCServer{
		server:       server,
		config:       cfg,
		logger:       logger,
		healthServer: healthServer,
		pool:         pool,
		redisClient:  redisClient,
	}
}

// RegisterService registers a gRPC service with the server
func (s *GRPCServer) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.server.RegisterService(desc, impl)
}

// GetServer returns the underlying gRPC server
func (s *GRPCServer) GetServer() *grpc.Server {
	return s.server
}

// StartHealthMonitoring starts background health checks for dependencies
func (s *GRPCServer) StartHealthMonitoring(ctx context.Context) {
	go s.monitorHealth(ctx)
}

func (s *GRPCServer) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	s.logger.Info("Starting health monitoring for dependencies")
	s.checkDependencies()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Health monitoring stopped")
			return
		case <-ticker.C:
			s.checkDependencies()
		}
	}
}

// checkDependencies flips the health status based on database and Redis
// reachability. Redis is optional, so only the database gates SERVING.
func (s *GRPCServer) checkDependencies() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbHealthy := s.checkDatabase(ctx)
	redisHealthy := s.checkRedis(ctx)

	if dbHealthy {
		s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		if !redisHealthy && s.redisClient != nil {
			s.logger.Warn("Redis unreachable, continuing degraded")
		}
	} else {
		s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		s.logger.Warn("Database unhealthy, setting status to NOT_SERVING")
	}
}

func (s *GRPCServer) checkDatabase(ctx context.Context) bool {
	if s.pool == nil {
		// Running on the in-memory stores; nothing to ping.
		return true
	}
	if err := s.pool.Ping(ctx); err != nil {
		s.logger.Debug("Database health check failed", zap.Error(err))
		return false
	}
	return true
}

func (s *GRPCServer) checkRedis(ctx context.Context) bool {
	if s.redisClient == nil {
		return false
	}
	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.logger.Debug("Redis health check failed", zap.Error(err))
		return false
	}
	return true
}

// Serve starts the gRPC server and handles graceful shutdown
func (s *GRPCServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.GRPC.Address)
	if err != nil {
		return err
	}

	s.logger.Info("gRPC server starting",
		zap.String("address", s.config.GRPC.Address))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.server.Serve(listener)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err

	case <-ctx.Done():
		s.logger.Info("gRPC server shutting down due to context cancellation")

	case sig := <-shutdown:
		s.logger.Info("gRPC server shutting down due to signal",
			zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gracefulStop := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(gracefulStop)
	}()

	select {
	case <-gracefulStop:
		s.logger.Info("gRPC server stopped gracefully")
		return nil

	case <-shutdownCtx.Done():
		s.logger.Warn("Graceful shutdown timeout, forcing stop")
		s.server.Stop()
		return nil
	}
}
