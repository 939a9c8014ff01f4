package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saha-club/bookingservice/internal/cache"
	"github.com/saha-club/bookingservice/internal/config"
	"github.com/saha-club/bookingservice/internal/log"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, c cache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.WeatherConfig{
		APIKey:   "test-key",
		BaseURL:  srv.URL,
		Latitude: 41.0082, Longitude: 28.9784,
		Timeout:  2 * time.Second,
		CacheTTL: time.Minute,
	}
	client := NewClient(cfg, c, log.NewNop().Logger)
	// Keep transient-failure tests fast.
	client.retryCfg.InitialDelay = time.Millisecond
	return client
}

func TestCurrent_ParsesAndMapsCondition(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("appid") != "test-key" {
			t.Errorf("missing api key in request: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"main":{"temp":21.7,"humidity":64},"weather":[{"main":"Rain"}]}`))
	}, cache.Nop{})

	snap, err := client.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if snap.Temperature != 22 {
		t.Errorf("temperature = %d, want 22", snap.Temperature)
	}
	if snap.Humidity != 64 {
		t.Errorf("humidity = %d, want 64", snap.Humidity)
	}
	if snap.Condition != "rainy" {
		t.Errorf("condition = %q, want rainy", snap.Condition)
	}
}

func TestCurrent_UsesCache(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"main":{"temp":18,"humidity":50},"weather":[{"main":"Clear"}]}`))
	}, cache.NewMemory())

	for i := 0; i < 3; i++ {
		if _, err := client.Current(context.Background()); err != nil {
			t.Fatalf("Current call %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1 within TTL", calls)
	}
}

func TestCurrent_UpstreamErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, cache.Nop{})

	if _, err := client.Current(context.Background()); err == nil {
		t.Fatal("expected error from upstream failure")
	}
}

func TestCurrent_RetriesTransientFailure(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"main":{"temp":10,"humidity":80},"weather":[{"main":"Snow"}]}`))
	}, cache.Nop{})

	snap, err := client.Current(context.Background())
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if snap.Condition != "snowy" {
		t.Errorf("condition = %q, want snowy", snap.Condition)
	}
	if calls != 2 {
		t.Errorf("upstream called %d times, want 2", calls)
	}
}

func TestMapCondition(t *testing.T) {
	cases := map[string]string{
		"Clear":        "sunny",
		"Clouds":       "cloudy",
		"Mist":         "cloudy",
		"Rain":         "rainy",
		"Drizzle":      "rainy",
		"Thunderstorm": "rainy",
		"Snow":         "snowy",
		"Tornado":      "cloudy",
		"":             "cloudy",
	}
	for in, want := range cases {
		if got := mapCondition(in); got != want {
			t.Errorf("mapCondition(%q) = %q, want %q", in, got, want)
		}
	}
}
