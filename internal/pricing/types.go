package pricing

import (
	"time"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// ActionType represents the kind of price transformation a rule applies.
type ActionType string

const (
	ActionPercentage ActionType = "percentage"
	ActionFixedDelta ActionType = "fixed_amount"
	ActionFixedPrice ActionType = "fixed_price"
	ActionFormula    ActionType = "formula"
)

// Rounding selects how an adjusted price is rounded to the rule's step.
type Rounding string

const (
	RoundNone    Rounding = "none"
	RoundUp      Rounding = "up"
	RoundDown    Rounding = "down"
	RoundNearest Rounding = "nearest"
)

// TimeRange is a daily window in "HH:MM" local time, bounds inclusive.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Conditions is a rule's condition set. A rule matches only when every
// configured category is satisfied; unset categories are vacuously true.
type Conditions struct {
	// Time-of-week conditions
	DaysOfWeek   []time.Weekday `json:"days_of_week,omitempty"`
	TimeRanges   []TimeRange    `json:"time_ranges,omitempty"`
	ExcludeDates []string       `json:"exclude_dates,omitempty"` // "2006-01-02"

	// Occupancy conditions (percent of active resources booked)
	MinOccupancy *int `json:"min_occupancy,omitempty"`
	MaxOccupancy *int `json:"max_occupancy,omitempty"`
	MinAvailable *int `json:"min_available,omitempty"`
	MaxAvailable *int `json:"max_available,omitempty"`

	// User conditions
	UserTiers     []string `json:"user_tiers,omitempty"`     // guest, member, premium
	LoyaltyLevels []string `json:"loyalty_levels,omitempty"` // bronze, silver, gold
	NewUserDays   *int     `json:"new_user_days,omitempty"`

	// Weather conditions
	WeatherConditions []string `json:"weather_conditions,omitempty"` // sunny, cloudy, rainy, snowy
	MinTemperature    *int     `json:"min_temperature,omitempty"`
	MaxTemperature    *int     `json:"max_temperature,omitempty"`
	MinHumidity       *int     `json:"min_humidity,omitempty"`
	MaxHumidity       *int     `json:"max_humidity,omitempty"`

	// Resource conditions
	ResourceTypes []domain.ResourceType `json:"resource_types,omitempty"`
	ResourceIDs   []string              `json:"resource_ids,omitempty"`
}

// Action is the price transformation of a matched rule.
type Action struct {
	Type ActionType `json:"type"`
	// Value is the percentage delta, fixed delta, or fixed price.
	Value float64 `json:"value"`
	// Formula is a bounded arithmetic expression over basePrice and
	// occupancyPercent, used when Type is ActionFormula.
	Formula      string   `json:"formula,omitempty"`
	MinPrice     *float64 `json:"min_price,omitempty"`
	MaxPrice     *float64 `json:"max_price,omitempty"`
	Rounding     Rounding `json:"rounding,omitempty"`
	RoundingStep float64  `json:"rounding_step,omitempty"`
}

// Limits caps how often a rule may apply. Exceeded limits skip the rule,
// they never fail the quote.
type Limits struct {
	MaxDailyApplications     int           `json:"max_daily_applications,omitempty"`
	MaxMonthlyApplications   int           `json:"max_monthly_applications,omitempty"`
	MaxUserDailyApplications int           `json:"max_user_daily_applications,omitempty"`
	Cooldown                 time.Duration `json:"cooldown,omitempty"`
	ExpiresAt                *time.Time    `json:"expires_at,omitempty"`
}

// Rule defines a single pricing rule configuration. Rules are created and
// edited by facility operators; the engine reads them and records usage.
type Rule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
	// Priority orders evaluation, higher first. Equal priorities evaluate
	// in rule-id order.
	Priority int `json:"priority"`
	// AllowCombination controls whether the rule may stack with other
	// matched rules in one quote.
	AllowCombination bool       `json:"allow_combination"`
	Conditions       Conditions `json:"conditions"`
	Action           Action     `json:"action"`
	Limits           Limits     `json:"limits"`
}

// Expired reports whether the rule's expiry date has passed.
func (r Rule) Expired(now time.Time) bool {
	return r.Limits.ExpiresAt != nil && r.Limits.ExpiresAt.Before(now)
}

// RuleRepository defines storage for pricing rules.
type RuleRepository interface {
	// Get returns a rule by ID. Second return indicates existence.
	Get(id string) (Rule, bool)
	// List returns all rules.
	List() []Rule
	// Upsert adds or updates a rule.
	Upsert(rule Rule) error
	// Delete removes a rule.
	Delete(id string) error
}

// UserFacts are the read-only user attributes consulted by rule conditions
// and instrument eligibility.
type UserFacts struct {
	ID           string    `json:"id"`
	Tier         string    `json:"tier"` // guest, member, premium
	LoyaltyLevel string    `json:"loyalty_level"`
	CreatedAt    time.Time `json:"created_at"`
}

// Context is the pricing context snapshot a quote is computed against.
type Context struct {
	Time               time.Time
	ResourceID         string
	ResourceType       domain.ResourceType
	Tier               domain.PriceTier
	OccupancyPercent   int
	AvailableResources int
	Weather            domain.WeatherSnapshot
	User               *UserFacts // nil for anonymous quotes
	DurationMinutes    int
	PlayerCount        int
}
