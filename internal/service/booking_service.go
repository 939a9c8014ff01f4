package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saha-club/bookingservice/internal/audit"
	"github.com/saha-club/bookingservice/internal/booking"
	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/ledger"
	"github.com/saha-club/bookingservice/internal/pricing"
)

// BookingService is the application-facing API over the allocator and the
// hour ledger. It owns nothing itself; it validates ownership, delegates,
// and records audit events.
type BookingService struct {
	allocator *booking.Allocator
	ledger    *ledger.Ledger
	audit     *audit.Recorder
}

func NewBookingService(allocator *booking.Allocator, l *ledger.Ledger, recorder *audit.Recorder) *BookingService {
	if recorder == nil {
		recorder = audit.New(nil)
	}
	return &BookingService{
		allocator: allocator,
		ledger:    l,
		audit:     recorder,
	}
}

// QuotePrice prices a prospective booking without reserving the slot.
func (s *BookingService) QuotePrice(ctx context.Context, req booking.CreateRequest) (*domain.PriceQuote, error) {
	return s.allocator.QuotePrice(ctx, req)
}

// QuoteCoverage picks the credit instrument that would pay for the
// booking, or nil when the user holds none that covers it. The caller
// passes the chosen instrument back in CreateRequest.InstrumentID.
func (s *BookingService) QuoteCoverage(ctx context.Context, req booking.CreateRequest) (*ledger.Coverage, error) {
	tier := pricing.TierFor(req.StartTime)
	return s.ledger.QuoteCoverage(ctx, req.UserID, tier, req.StartTime, req.DurationMinutes, req.PlayerCount)
}

// CreateReservation books the slot. With an instrument the reservation is
// confirmed immediately; otherwise it stays pending until payment.
func (s *BookingService) CreateReservation(ctx context.Context, req booking.CreateRequest) (*domain.Reservation, error) {
	r, err := s.allocator.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.audit.ReservationCreated(ctx, r)
	if req.InstrumentID != nil {
		if ci, _, err := s.ledger.Balance(ctx, *req.InstrumentID); err == nil {
			if rec, ok := ci.Usage[r.ID]; ok {
				s.audit.CreditDebited(ctx, *req.InstrumentID, r.ID, rec.Hours)
			}
		}
	}
	return r, nil
}

// ConfirmPayment moves a pending reservation to confirmed. Called by the
// payment callback once the charge settles.
func (s *BookingService) ConfirmPayment(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	r, err := s.allocator.Transition(ctx, reservationID, domain.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	s.audit.StatusChanged(ctx, r.ID, domain.StatusPendingPayment, domain.StatusConfirmed)
	return r, nil
}

// CancelReservation cancels on behalf of the given actor and returns the
// refund outcome.
func (s *BookingService) CancelReservation(ctx context.Context, reservationID uuid.UUID, cancelledBy, reason string) (*domain.RefundOutcome, error) {
	outcome, err := s.allocator.Cancel(ctx, reservationID, cancelledBy, reason)
	if err != nil {
		return nil, err
	}
	s.audit.Cancelled(ctx, reservationID, cancelledBy, outcome)
	if outcome.InstrumentID != nil && outcome.HoursRefunded > 0 {
		s.audit.CreditRefunded(ctx, *outcome.InstrumentID, reservationID, outcome.HoursRefunded)
	}
	return outcome, nil
}

// CheckIn marks the guest as arrived. Only accepted inside the window
// around the scheduled start.
func (s *BookingService) CheckIn(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, reservationID, domain.StatusCheckedIn)
}

// StartSession moves a checked-in reservation to in progress.
func (s *BookingService) StartSession(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, reservationID, domain.StatusInProgress)
}

// CompleteSession finishes an in-progress reservation.
func (s *BookingService) CompleteSession(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	return s.transition(ctx, reservationID, domain.StatusCompleted)
}

func (s *BookingService) transition(ctx context.Context, reservationID uuid.UUID, to domain.ReservationStatus) (*domain.Reservation, error) {
	before, err := s.allocator.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	from := before.Status
	r, err := s.allocator.Transition(ctx, reservationID, to)
	if err != nil {
		return nil, err
	}
	s.audit.StatusChanged(ctx, r.ID, from, to)
	return r, nil
}

// GetReservation returns a reservation by ID.
func (s *BookingService) GetReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	return s.allocator.Get(ctx, reservationID)
}

// ListReservations returns the user's reservations.
func (s *BookingService) ListReservations(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	return s.allocator.ListByUser(ctx, userID)
}

// GetAvailability returns the busy slots of a resource in a window.
func (s *BookingService) GetAvailability(ctx context.Context, resourceID string, from, to time.Time) (*booking.Availability, error) {
	return s.allocator.Availability(ctx, resourceID, from, to)
}

// InstrumentBalance is a point-in-time view of a credit instrument.
type InstrumentBalance struct {
	Instrument     *ledger.CreditInstrument `json:"instrument"`
	Status         ledger.InstrumentStatus  `json:"status"`
	RemainingHours float64                  `json:"remaining_hours"`
}

// GetBalance returns the remaining hours on a credit instrument.
func (s *BookingService) GetBalance(ctx context.Context, instrumentID uuid.UUID) (*InstrumentBalance, error) {
	ci, status, err := s.ledger.Balance(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	return &InstrumentBalance{
		Instrument:     ci,
		Status:         status,
		RemainingHours: ci.RemainingHours(),
	}, nil
}

// ListInstruments returns the user's credit instruments.
func (s *BookingService) ListInstruments(ctx context.Context, userID string) ([]*ledger.CreditInstrument, error) {
	return s.ledger.ListByUser(ctx, userID)
}
