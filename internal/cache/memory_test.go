package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	type snapshot struct {
		Temperature int    `json:"temperature"`
		Condition   string `json:"condition"`
	}

	if err := c.Set(ctx, "weather:41.0:28.9", snapshot{Temperature: 20, Condition: "sunny"}, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got snapshot
	if err := c.Get(ctx, "weather:41.0:28.9", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Temperature != 20 || got.Condition != "sunny" {
		t.Errorf("unexpected value: %+v", got)
	}
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	c := NewMemory()

	var dest int
	if err := c.Get(context.Background(), "absent", &dest); err != ErrMiss {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestMemory_ExpiryUsesInjectedClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryWithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := c.Set(ctx, "occupancy:2025-06-01:12", 85, 5*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var pct int
	if err := c.Get(ctx, "occupancy:2025-06-01:12", &pct); err != nil {
		t.Fatalf("get before expiry failed: %v", err)
	}
	if pct != 85 {
		t.Errorf("expected 85, got %d", pct)
	}

	// Advance past the TTL without sleeping
	now = now.Add(5*time.Minute + time.Second)
	if err := c.Get(ctx, "occupancy:2025-06-01:12", &pct); err != ErrMiss {
		t.Errorf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestMemory_Delete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_ = c.Set(ctx, "k", "v", time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var dest string
	if err := c.Get(ctx, "k", &dest); err != ErrMiss {
		t.Errorf("expected ErrMiss after delete, got %v", err)
	}
}

func TestNop_AlwaysMisses(t *testing.T) {
	c := Nop{}
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	var dest string
	if err := c.Get(ctx, "k", &dest); err != ErrMiss {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}
