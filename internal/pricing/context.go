package pricing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/cache"
	"github.com/saha-club/bookingservice/internal/log"
)

// OccupancyCounter reports how many distinct active resources hold a live
// reservation overlapping the given window.
type OccupancyCounter interface {
	CountBookedResources(ctx context.Context, start, end time.Time) (int, error)
	CountActiveResources(ctx context.Context) (int, error)
}

// WeatherProvider returns the current weather at the facility.
type WeatherProvider interface {
	Current(ctx context.Context) (domain.WeatherSnapshot, error)
}

// UserDirectory resolves user facts for rule targeting. Implementations
// may call out to the identity service; a nil result means anonymous.
type UserDirectory interface {
	Facts(ctx context.Context, userID string) (*UserFacts, error)
}

// neutralWeather is the snapshot used when the weather provider is down,
// chosen so no weather-conditioned rule fires spuriously.
var neutralWeather = domain.WeatherSnapshot{Temperature: 20, Humidity: 60, Condition: "sunny"}

type occupancySnapshot struct {
	Percent   int `json:"percent"`
	Available int `json:"available"`
}

// Collector assembles the pricing context for a quote: tier, occupancy,
// weather and user facts. Occupancy is bucketed per hour and cached so a
// burst of quotes does not hammer the reservation store.
type Collector struct {
	occupancy    OccupancyCounter
	weather      WeatherProvider
	users        UserDirectory
	cache        cache.Cache
	occupancyTTL time.Duration
}

func NewCollector(occ OccupancyCounter, weather WeatherProvider, users UserDirectory, c cache.Cache, occupancyTTL time.Duration) *Collector {
	if c == nil {
		c = cache.Nop{}
	}
	if occupancyTTL <= 0 {
		occupancyTTL = 5 * time.Minute
	}
	return &Collector{
		occupancy:    occ,
		weather:      weather,
		users:        users,
		cache:        c,
		occupancyTTL: occupancyTTL,
	}
}

// Collect builds the context snapshot for a booking request. Failures in
// the auxiliary signals degrade to neutral values; pricing must stay
// available even when weather or identity are not.
func (c *Collector) Collect(ctx context.Context, resource domain.Resource, start time.Time, durationMinutes, playerCount int, userID string) Context {
	pctx := Context{
		Time:            start,
		ResourceID:      resource.ID,
		ResourceType:    resource.Type,
		Tier:            TierFor(start),
		DurationMinutes: durationMinutes,
		PlayerCount:     playerCount,
	}

	occ := c.occupancyFor(ctx, start)
	pctx.OccupancyPercent = occ.Percent
	pctx.AvailableResources = occ.Available

	pctx.Weather = c.weatherFor(ctx)

	if userID != "" && c.users != nil {
		facts, err := c.users.Facts(ctx, userID)
		if err != nil {
			log.Warn(ctx, "user facts lookup failed, pricing as anonymous",
				zap.String("user_id", userID), zap.Error(err))
		} else {
			pctx.User = facts
		}
	}
	return pctx
}

func (c *Collector) occupancyFor(ctx context.Context, start time.Time) occupancySnapshot {
	bucket := start.Truncate(time.Hour)
	key := fmt.Sprintf("pricing:occupancy:%s", bucket.UTC().Format("2006-01-02T15"))

	var snap occupancySnapshot
	if err := c.cache.Get(ctx, key, &snap); err == nil {
		return snap
	}

	total, err := c.occupancy.CountActiveResources(ctx)
	if err != nil || total == 0 {
		if err != nil {
			log.Warn(ctx, "active resource count failed, occupancy defaults to 0", zap.Error(err))
		}
		return occupancySnapshot{}
	}
	booked, err := c.occupancy.CountBookedResources(ctx, bucket, bucket.Add(time.Hour))
	if err != nil {
		log.Warn(ctx, "booked resource count failed, occupancy defaults to 0", zap.Error(err))
		return occupancySnapshot{}
	}

	snap = occupancySnapshot{
		Percent:   booked * 100 / total,
		Available: total - booked,
	}
	if err := c.cache.Set(ctx, key, snap, c.occupancyTTL); err != nil {
		log.Debug(ctx, "occupancy cache write failed", zap.Error(err))
	}
	return snap
}

func (c *Collector) weatherFor(ctx context.Context) domain.WeatherSnapshot {
	if c.weather == nil {
		return neutralWeather
	}
	w, err := c.weather.Current(ctx)
	if err != nil {
		log.Warn(ctx, "weather lookup failed, using neutral snapshot", zap.Error(err))
		return neutralWeather
	}
	return w
}
