package pricing

import (
	"time"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// Matches reports whether every configured condition category holds for
// the context. Unset categories match vacuously.
func Matches(c Conditions, pctx Context) bool {
	return matchTime(c, pctx.Time) &&
		matchOccupancy(c, pctx) &&
		matchUser(c, pctx) &&
		matchWeather(c, pctx.Weather) &&
		matchResource(c, pctx)
}

func matchTime(c Conditions, t time.Time) bool {
	if len(c.DaysOfWeek) > 0 && !containsWeekday(c.DaysOfWeek, t.Weekday()) {
		return false
	}
	if len(c.TimeRanges) > 0 {
		clock := t.Format("15:04")
		inAny := false
		for _, w := range c.TimeRanges {
			if clock >= w.Start && clock <= w.End {
				inAny = true
				break
			}
		}
		if !inAny {
			return false
		}
	}
	if len(c.ExcludeDates) > 0 {
		date := t.Format("2006-01-02")
		for _, d := range c.ExcludeDates {
			if d == date {
				return false
			}
		}
	}
	return true
}

func matchOccupancy(c Conditions, pctx Context) bool {
	if c.MinOccupancy != nil && pctx.OccupancyPercent < *c.MinOccupancy {
		return false
	}
	if c.MaxOccupancy != nil && pctx.OccupancyPercent > *c.MaxOccupancy {
		return false
	}
	if c.MinAvailable != nil && pctx.AvailableResources < *c.MinAvailable {
		return false
	}
	if c.MaxAvailable != nil && pctx.AvailableResources > *c.MaxAvailable {
		return false
	}
	return true
}

// matchUser requires user facts to be present when any user condition is
// configured; anonymous quotes never match user-targeted rules.
func matchUser(c Conditions, pctx Context) bool {
	hasUserConds := len(c.UserTiers) > 0 || len(c.LoyaltyLevels) > 0 || c.NewUserDays != nil
	if !hasUserConds {
		return true
	}
	if pctx.User == nil {
		return false
	}
	if len(c.UserTiers) > 0 && !containsString(c.UserTiers, pctx.User.Tier) {
		return false
	}
	if len(c.LoyaltyLevels) > 0 && !containsString(c.LoyaltyLevels, pctx.User.LoyaltyLevel) {
		return false
	}
	if c.NewUserDays != nil {
		age := pctx.Time.Sub(pctx.User.CreatedAt)
		if age > time.Duration(*c.NewUserDays)*24*time.Hour {
			return false
		}
	}
	return true
}

func matchWeather(c Conditions, w domain.WeatherSnapshot) bool {
	if len(c.WeatherConditions) > 0 && !containsString(c.WeatherConditions, w.Condition) {
		return false
	}
	if c.MinTemperature != nil && w.Temperature < *c.MinTemperature {
		return false
	}
	if c.MaxTemperature != nil && w.Temperature > *c.MaxTemperature {
		return false
	}
	if c.MinHumidity != nil && w.Humidity < *c.MinHumidity {
		return false
	}
	if c.MaxHumidity != nil && w.Humidity > *c.MaxHumidity {
		return false
	}
	return true
}

func matchResource(c Conditions, pctx Context) bool {
	if len(c.ResourceTypes) > 0 {
		found := false
		for _, rt := range c.ResourceTypes {
			if rt == pctx.ResourceType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.ResourceIDs) > 0 && !containsString(c.ResourceIDs, pctx.ResourceID) {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsWeekday(list []time.Weekday, d time.Weekday) bool {
	for _, w := range list {
		if w == d {
			return true
		}
	}
	return false
}
