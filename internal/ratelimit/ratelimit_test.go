package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimiter(client, limit, window), mr
}

func TestRedisRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Error("request over the limit should be denied")
	}
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create"); !allowed {
		t.Fatal("first request for user-1 should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-2:/booking/Create"); !allowed {
		t.Error("first request for user-2 should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-1:/booking/Cancel"); !allowed {
		t.Error("different method for user-1 should be allowed")
	}
}

func TestRedisRateLimiter_WindowResets(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create"); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create"); allowed {
		t.Fatal("second request should be denied")
	}

	mr.FastForward(time.Minute + time.Second)

	if allowed, _ := limiter.Allow(ctx, "ratelimit:user-1:/booking/Create"); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "ratelimit:user-1:/booking/Create")
	if err == nil {
		t.Fatal("expected error from closed Redis")
	}
	if !allowed {
		t.Error("limiter should fail open when Redis is unavailable")
	}
}
