package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/saha-club/bookingservice/internal/booking/domain"
)

// InstrumentType distinguishes the two credit products.
type InstrumentType string

const (
	TypePass         InstrumentType = "pass"
	TypeSubscription InstrumentType = "subscription"
)

// InstrumentStatus is derived from the instrument's balance and validity
// window at read time; it is never stored.
type InstrumentStatus string

const (
	StatusActive    InstrumentStatus = "active"
	StatusExpired   InstrumentStatus = "expired"
	StatusExhausted InstrumentStatus = "exhausted"
	StatusSuspended InstrumentStatus = "suspended"
)

// UsageRecord is one debit against an instrument, keyed by the
// reservation that consumed it so refunds restore the exact amount.
type UsageRecord struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	Hours         float64    `json:"hours"`
	UsedAt        time.Time  `json:"used_at"`
	Refunded      bool       `json:"refunded"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

// CreditInstrument is a prepaid bundle of court hours. The instrument is
// the single owner of its usage history; reservations reference it only
// by ID.
type CreditInstrument struct {
	ID     uuid.UUID      `json:"id"`
	UserID string         `json:"user_id"`
	Type   InstrumentType `json:"type"`

	TotalHours float64 `json:"total_hours"`
	BonusHours float64 `json:"bonus_hours"`
	UsedHours  float64 `json:"used_hours"`

	// AllowedTiers restricts which price tiers the instrument may pay for.
	AllowedTiers []domain.PriceTier `json:"allowed_tiers"`
	// DailyCapHours limits hours consumed per calendar day. Zero means no cap.
	DailyCapHours float64 `json:"daily_cap_hours"`
	// PerExtraPlayerHours is charged per player beyond two, per booking.
	PerExtraPlayerHours float64 `json:"per_extra_player_hours"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	Suspended  bool      `json:"suspended"`

	Usage map[uuid.UUID]UsageRecord `json:"usage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemainingHours is the spendable balance: purchased plus bonus minus used.
func (ci *CreditInstrument) RemainingHours() float64 {
	return ci.TotalHours + ci.BonusHours - ci.UsedHours
}

// Status derives the instrument state at the given moment.
func (ci *CreditInstrument) Status(now time.Time) InstrumentStatus {
	switch {
	case ci.Suspended:
		return StatusSuspended
	case now.Before(ci.ValidFrom) || now.After(ci.ValidUntil):
		return StatusExpired
	case ci.RemainingHours() <= 0:
		return StatusExhausted
	default:
		return StatusActive
	}
}

// CoversTier reports whether the instrument may pay for the given tier.
// An empty allow-list covers every tier.
func (ci *CreditInstrument) CoversTier(tier domain.PriceTier) bool {
	if len(ci.AllowedTiers) == 0 {
		return true
	}
	for _, t := range ci.AllowedTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// HoursRequired converts a booking into instrument hours: the slot
// duration plus the per-extra-player charge for players beyond two.
func (ci *CreditInstrument) HoursRequired(durationMinutes, playerCount int) float64 {
	hours := float64(durationMinutes) / 60
	if playerCount > 2 {
		hours += float64(playerCount-2) * ci.PerExtraPlayerHours
	}
	return hours
}

// UsedOn sums the non-refunded hours consumed on the given calendar day.
func (ci *CreditInstrument) UsedOn(day time.Time) float64 {
	y, m, d := day.Date()
	var sum float64
	for _, rec := range ci.Usage {
		if rec.Refunded {
			continue
		}
		ry, rm, rd := rec.UsedAt.Date()
		if ry == y && rm == m && rd == d {
			sum += rec.Hours
		}
	}
	return sum
}

// NewPass creates a multi-use hour pass. Passes pay for mid and off-peak
// bookings only and consume one extra hour per additional player.
func NewPass(userID string, totalHours, bonusHours float64, validFrom, validUntil time.Time) *CreditInstrument {
	now := time.Now()
	return &CreditInstrument{
		ID:                  uuid.New(),
		UserID:              userID,
		Type:                TypePass,
		TotalHours:          totalHours,
		BonusHours:          bonusHours,
		AllowedTiers:        []domain.PriceTier{domain.TierMid, domain.TierOff},
		DailyCapHours:       3,
		PerExtraPlayerHours: 1,
		ValidFrom:           validFrom,
		ValidUntil:          validUntil,
		Usage:               make(map[uuid.UUID]UsageRecord),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// SubscriptionPeakHoursPerYear is the annual peak-hour allowance of a
// club subscription.
const SubscriptionPeakHoursPerYear = 20

// NewSubscription creates the yearly subscription instrument covering
// peak-hour bookings.
func NewSubscription(userID string, validFrom time.Time) *CreditInstrument {
	now := time.Now()
	return &CreditInstrument{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         TypeSubscription,
		TotalHours:   SubscriptionPeakHoursPerYear,
		AllowedTiers: []domain.PriceTier{domain.TierPeak},
		ValidFrom:    validFrom,
		ValidUntil:   validFrom.AddDate(1, 0, 0),
		Usage:        make(map[uuid.UUID]UsageRecord),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
