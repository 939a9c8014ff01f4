package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/cache"
	"github.com/saha-club/bookingservice/internal/circuitbreaker"
	"github.com/saha-club/bookingservice/internal/config"
	"github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/retry"
)

const cacheKey = "weather:current"

// Client fetches the current weather at the facility from an
// OpenWeather-compatible API. Responses are cached so a burst of quotes
// costs at most one upstream call per TTL, and the upstream is wrapped
// in retry plus a circuit breaker. Callers treat any error as a signal
// to price with a neutral snapshot.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	lat      float64
	lon      float64
	cache    cache.Cache
	cacheTTL time.Duration
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

func NewClient(cfg config.WeatherConfig, c cache.Cache, logger *zap.Logger) *Client {
	if c == nil {
		c = cache.Nop{}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		lat:      cfg.Latitude,
		lon:      cfg.Longitude,
		cache:    c,
		cacheTTL: ttl,
		breaker:  circuitbreaker.New("weather-api", circuitbreaker.DefaultConfig(), logger),
		retryCfg: retry.DefaultConfig(),
	}
}

// Current returns the current weather snapshot, from cache when fresh.
func (c *Client) Current(ctx context.Context) (domain.WeatherSnapshot, error) {
	var snap domain.WeatherSnapshot
	if err := c.cache.Get(ctx, cacheKey, &snap); err == nil {
		return snap, nil
	}

	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryCfg, log.L(ctx), func() error {
			fetched, err := c.fetch(ctx)
			if err != nil {
				return err
			}
			snap = fetched
			return nil
		})
	})
	if err != nil {
		return domain.WeatherSnapshot{}, err
	}

	if err := c.cache.Set(ctx, cacheKey, snap, c.cacheTTL); err != nil {
		log.Debug(ctx, "weather cache write failed", zap.Error(err))
	}
	return snap, nil
}

type apiResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

func (c *Client) fetch(ctx context.Context) (domain.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", c.lat))
	q.Set("lon", fmt.Sprintf("%.4f", c.lon))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("building weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherSnapshot{}, fmt.Errorf("weather api status %d: %s", resp.StatusCode, body)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("decoding weather response: %w", err)
	}

	condition := ""
	if len(parsed.Weather) > 0 {
		condition = parsed.Weather[0].Main
	}
	return domain.WeatherSnapshot{
		Temperature: int(parsed.Main.Temp + 0.5),
		Humidity:    parsed.Main.Humidity,
		Condition:   mapCondition(condition),
	}, nil
}

// mapCondition folds the upstream condition taxonomy into the four
// buckets rule conditions are written against.
func mapCondition(main string) string {
	switch main {
	case "Clear":
		return "sunny"
	case "Clouds", "Mist", "Fog", "Haze":
		return "cloudy"
	case "Rain", "Drizzle", "Thunderstorm":
		return "rainy"
	case "Snow":
		return "snowy"
	default:
		return "cloudy"
	}
}
