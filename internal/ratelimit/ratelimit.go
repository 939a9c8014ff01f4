package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/saha-club/bookingservice/internal/log"
)

// RateLimiter limits how many requests a caller may make per window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisRateLimiter implements a fixed-window counter in Redis. Counting
// fails open: if Redis is unreachable the request is allowed.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisRateLimiter creates a rate limiter allowing limit requests per window.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether the caller identified by key may proceed.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			log.Warn(ctx, "Failed to set rate limit expiry",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return count <= int64(r.limit), nil
}

// UnaryServerInterceptor returns a gRPC interceptor that rate limits
// per user and method. Unauthenticated requests share an anonymous bucket.
func UnaryServerInterceptor(limiter RateLimiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		userID, _ := ctx.Value(log.UserIDKey).(string)
		if userID == "" {
			userID = "anonymous"
		}

		key := fmt.Sprintf("ratelimit:%s:%s", userID, info.FullMethod)
		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			log.Warn(ctx, "Rate limiter unavailable, allowing request",
				zap.String("method", info.FullMethod),
				zap.Error(err))
			return handler(ctx, req)
		}
		if !allowed {
			log.Warn(ctx, "Rate limit exceeded",
				zap.String("user_id", userID),
				zap.String("method", info.FullMethod))
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}

		return handler(ctx, req)
	}
}
