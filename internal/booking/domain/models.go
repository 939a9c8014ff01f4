package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PriceTier is the demand bucket a booking time falls into. It drives the
// base price table and credit-instrument eligibility.
type PriceTier string

const (
	TierPeak   PriceTier = "peak"
	TierMid    PriceTier = "mid"
	TierOff    PriceTier = "off"
	TierSocial PriceTier = "social"
)

// ResourceType categorizes a bookable court and selects its base price table.
type ResourceType string

const (
	ResourceIndoor  ResourceType = "indoor"
	ResourceOutdoor ResourceType = "outdoor"
)

// ResourceStatus describes whether a resource can accept bookings.
type ResourceStatus string

const (
	ResourceActive      ResourceStatus = "active"
	ResourceMaintenance ResourceStatus = "maintenance"
	ResourceInactive    ResourceStatus = "inactive"
)

// OperatingHours is the daily open window of a resource, "HH:MM" local time.
type OperatingHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// Resource is a bookable physical asset (court). Read-mostly by the core;
// owned by the facility.
type Resource struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           ResourceType   `json:"type"`
	Status         ResourceStatus `json:"status"`
	OperatingHours OperatingHours `json:"operating_hours"`
}

// Bookable reports whether the resource can accept new reservations and,
// when it cannot, the reason.
func (r Resource) Bookable() (bool, string) {
	switch r.Status {
	case ResourceActive:
		return true, ""
	case ResourceMaintenance:
		return false, "under maintenance"
	default:
		return false, "inactive"
	}
}

// WithinOperatingHours reports whether [start, end) falls inside the
// resource's daily open window.
func (r Resource) WithinOperatingHours(start, end time.Time) bool {
	if r.OperatingHours.Open == "" || r.OperatingHours.Close == "" {
		return true
	}
	open := start.Format("15:04") >= r.OperatingHours.Open
	// End is exclusive, so a booking may run exactly until closing time.
	closeOK := end.Format("15:04") <= r.OperatingHours.Close || end.Format("15:04") == "00:00"
	return open && closeOK
}

// ReservationStatus is a reservation lifecycle state.
type ReservationStatus string

const (
	StatusPendingPayment ReservationStatus = "pending_payment"
	StatusConfirmed      ReservationStatus = "confirmed"
	StatusCheckedIn      ReservationStatus = "checked_in"
	StatusInProgress     ReservationStatus = "in_progress"
	StatusCompleted      ReservationStatus = "completed"
	StatusCancelled      ReservationStatus = "cancelled"
	StatusNoShow         ReservationStatus = "no_show"
)

// liveStatuses are the states that occupy a resource and participate in
// conflict detection. A pending reservation holds its slot for the
// payment window; the timeout sweep frees it.
var liveStatuses = map[ReservationStatus]bool{
	StatusPendingPayment: true,
	StatusConfirmed:      true,
	StatusCheckedIn:      true,
	StatusInProgress:     true,
}

// IsLive reports whether the status holds the time slot against other bookings.
func (s ReservationStatus) IsLive() bool {
	return liveStatuses[s]
}

// IsTerminal reports whether the status accepts no further transitions.
func (s ReservationStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// validTransitions encodes the booking lifecycle state machine.
var validTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:      {StatusInProgress},
	StatusInProgress:     {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to ReservationStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WeatherSnapshot is the weather reading used to produce a quote.
type WeatherSnapshot struct {
	Temperature int    `json:"temperature"`
	Humidity    int    `json:"humidity"`
	Condition   string `json:"condition"`
}

// AppliedRule records one pricing rule's contribution to a quote.
type AppliedRule struct {
	RuleID     string  `json:"rule_id"`
	Name       string  `json:"name"`
	Adjustment float64 `json:"adjustment"`
}

// PriceQuote is the full price breakdown embedded into a reservation at
// confirmation time so the computation stays reproducible.
type PriceQuote struct {
	BasePrice           float64         `json:"base_price"`
	Tier                PriceTier       `json:"tier"`
	HourlyRate          float64         `json:"hourly_rate"`
	DurationMinutes     int             `json:"duration_minutes"`
	PlayerCount         int             `json:"player_count"`
	AdditionalPlayerFee float64         `json:"additional_player_fee"`
	Total               float64         `json:"total"`
	AppliedRules        []AppliedRule   `json:"applied_rules"`
	Weather             WeatherSnapshot `json:"weather"`
	OccupancyPercent    int             `json:"occupancy_percent"`
	Currency            string          `json:"currency"`
}

// CancellationRecord captures why and when a reservation was cancelled.
type CancellationRecord struct {
	CancelledAt      time.Time `json:"cancelled_at"`
	CancelledBy      string    `json:"cancelled_by"`
	Reason           string    `json:"reason"`
	RefundEligible   bool      `json:"refund_eligible"`
	RefundAmount     float64   `json:"refund_amount"`
	HoursBeforeStart float64   `json:"hours_before_start"`
}

// Reservation is a claim on a resource for a time window. Reservations are
// never deleted; terminal states keep the audit trail intact.
type Reservation struct {
	ID              uuid.UUID           `json:"id"`
	Number          string              `json:"number"`
	ResourceID      string              `json:"resource_id"`
	UserID          string              `json:"user_id"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	DurationMinutes int                 `json:"duration_minutes"`
	PlayerCount     int                 `json:"player_count"`
	Players         []string            `json:"players,omitempty"`
	Status          ReservationStatus   `json:"status"`
	Quote           *PriceQuote         `json:"quote,omitempty"`
	InstrumentID    *uuid.UUID          `json:"instrument_id,omitempty"`
	Cancellation    *CancellationRecord `json:"cancellation,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Overlaps reports whether the reservation's half-open interval intersects
// [start, end). Back-to-back bookings do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return start.Before(r.EndTime) && end.After(r.StartTime)
}

// HoursUntilStart returns the time remaining before the booking starts, in hours.
func (r *Reservation) HoursUntilStart(now time.Time) float64 {
	return r.StartTime.Sub(now).Hours()
}

// RefundPercent returns the monetary refund share for a user cancellation
// at the given moment: 100% at >=48h before start, 50% at >=24h, else 0.
func (r *Reservation) RefundPercent(now time.Time) float64 {
	h := r.HoursUntilStart(now)
	switch {
	case h >= 48:
		return 1.0
	case h >= 24:
		return 0.5
	default:
		return 0
	}
}

// CanCheckIn reports whether check-in is allowed at now, given the window
// around the scheduled start.
func (r *Reservation) CanCheckIn(now time.Time, window time.Duration) bool {
	if r.Status != StatusConfirmed {
		return false
	}
	return !now.Before(r.StartTime.Add(-window)) && !now.After(r.StartTime.Add(window))
}

// RefundOutcome summarizes what a cancellation returned to the user.
// RefundAmount and RefundPercent describe the monetary refund only;
// credit hours are reported in HoursRefunded and always come back in
// full, so no percent applies to them.
type RefundOutcome struct {
	ReservationID uuid.UUID  `json:"reservation_id"`
	RefundAmount  float64    `json:"refund_amount"`
	RefundPercent float64    `json:"refund_percent"`
	HoursRefunded float64    `json:"hours_refunded"`
	InstrumentID  *uuid.UUID `json:"instrument_id,omitempty"`
}

const numberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReservationNumber generates a human-facing booking number,
// e.g. SAH20250601X7K2QD.
func NewReservationNumber(now time.Time) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(numberAlphabet[rand.Intn(len(numberAlphabet))])
	}
	return fmt.Sprintf("SAH%s%s", now.Format("20060102"), b.String())
}
