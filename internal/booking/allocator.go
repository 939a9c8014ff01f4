package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/events"
	"github.com/saha-club/bookingservice/internal/ledger"
	"github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/metrics"
	"github.com/saha-club/bookingservice/internal/pricing"
)

// Booking validation bounds.
const (
	MinDurationMinutes = 60
	MaxDurationMinutes = 180
	MinPlayers         = 1
	MaxPlayers         = 4
)

// Quoter computes a price quote from a pricing context.
type Quoter interface {
	Quote(ctx context.Context, pctx pricing.Context) domain.PriceQuote
}

// ContextCollector assembles the pricing context for a booking request.
type ContextCollector interface {
	Collect(ctx context.Context, resource domain.Resource, start time.Time, durationMinutes, playerCount int, userID string) pricing.Context
}

// CreditLedger is the slice of the hour ledger the allocator needs.
type CreditLedger interface {
	Debit(ctx context.Context, instrumentID, reservationID uuid.UUID, tier domain.PriceTier, start time.Time, durationMinutes, playerCount int) (*ledger.Coverage, error)
	Refund(ctx context.Context, instrumentID, reservationID uuid.UUID) (float64, error)
}

// Options tune the allocator's timing behavior.
type Options struct {
	// PaymentTimeout is how long a pending reservation holds its slot
	// before the sweep releases it.
	PaymentTimeout time.Duration
	// CheckInWindow bounds check-in around the scheduled start, and a
	// confirmed booking this long past its start is flagged no-show.
	CheckInWindow time.Duration
	// LockWait bounds how long a booking attempt waits for the resource lock.
	LockWait time.Duration
}

func (o *Options) fillDefaults() {
	if o.PaymentTimeout <= 0 {
		o.PaymentTimeout = 10 * time.Minute
	}
	if o.CheckInWindow <= 0 {
		o.CheckInWindow = 30 * time.Minute
	}
	if o.LockWait <= 0 {
		o.LockWait = 5 * time.Second
	}
}

// Allocator owns the reservation lifecycle: slot allocation, pricing,
// credit debits, cancellations and the background sweeps. All state
// changes to reservations flow through it.
type Allocator struct {
	reservations ReservationStore
	resources    ResourceStore
	detector     *ConflictDetector
	locks        *resourceLocks
	collector    ContextCollector
	quoter       Quoter
	credits      CreditLedger
	publisher    events.Publisher
	opts         Options
	now          func() time.Time
}

func NewAllocator(
	reservations ReservationStore,
	resources ResourceStore,
	collector ContextCollector,
	quoter Quoter,
	credits CreditLedger,
	publisher events.Publisher,
	opts Options,
) *Allocator {
	opts.fillDefaults()
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Allocator{
		reservations: reservations,
		resources:    resources,
		detector:     NewConflictDetector(reservations),
		locks:        newResourceLocks(),
		collector:    collector,
		quoter:       quoter,
		credits:      credits,
		publisher:    publisher,
		opts:         opts,
		now:          time.Now,
	}
}

// WithClock overrides the allocator's clock, used by tests.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// CreateRequest is a booking request.
type CreateRequest struct {
	ResourceID      string
	UserID          string
	StartTime       time.Time
	DurationMinutes int
	PlayerCount     int
	Players         []string
	// InstrumentID pays with credit hours instead of money. A successful
	// debit confirms the reservation immediately.
	InstrumentID *uuid.UUID
}

func (r CreateRequest) validate() error {
	if r.DurationMinutes < MinDurationMinutes || r.DurationMinutes > MaxDurationMinutes {
		return domain.NewInvalidDurationError(r.DurationMinutes, MinDurationMinutes, MaxDurationMinutes)
	}
	if r.PlayerCount < MinPlayers || r.PlayerCount > MaxPlayers {
		return domain.NewInvalidPlayerCountError(r.PlayerCount, MinPlayers, MaxPlayers)
	}
	return nil
}

// QuotePrice prices a booking without reserving anything.
func (a *Allocator) QuotePrice(ctx context.Context, req CreateRequest) (*domain.PriceQuote, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	resource, err := a.resources.Get(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	pctx := a.collector.Collect(ctx, *resource, req.StartTime, req.DurationMinutes, req.PlayerCount, req.UserID)
	quote := a.quoter.Quote(ctx, pctx)
	metrics.RecordQuote(string(quote.Tier), quote.Total)
	return &quote, nil
}

// Create allocates the slot and persists the reservation. The conflict
// check and insert run under the per-resource lock, so two racing
// requests for the same window cannot both succeed.
func (a *Allocator) Create(ctx context.Context, req CreateRequest) (*domain.Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	resource, err := a.resources.Get(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if ok, reason := resource.Bookable(); !ok {
		return nil, domain.NewResourceUnavailableError(resource.ID, reason)
	}

	end := req.StartTime.Add(time.Duration(req.DurationMinutes) * time.Minute)
	if !resource.WithinOperatingHours(req.StartTime, end) {
		return nil, domain.NewResourceUnavailableError(resource.ID, "outside operating hours")
	}

	if !a.locks.Acquire(ctx, req.ResourceID, a.opts.LockWait) {
		return nil, domain.NewLockTimeoutError(req.ResourceID)
	}
	defer a.locks.Release(req.ResourceID)

	conflict, err := a.detector.FindConflict(ctx, req.ResourceID, req.StartTime, end)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		metrics.SlotConflicts.Inc()
		return nil, domain.NewSlotConflictError(req.ResourceID, conflict.StartTime, conflict.EndTime)
	}

	pctx := a.collector.Collect(ctx, *resource, req.StartTime, req.DurationMinutes, req.PlayerCount, req.UserID)
	quote := a.quoter.Quote(ctx, pctx)

	now := a.now()
	reservation := &domain.Reservation{
		ID:              uuid.New(),
		Number:          domain.NewReservationNumber(now),
		ResourceID:      req.ResourceID,
		UserID:          req.UserID,
		StartTime:       req.StartTime,
		EndTime:         end,
		DurationMinutes: req.DurationMinutes,
		PlayerCount:     req.PlayerCount,
		Players:         req.Players,
		Status:          domain.StatusPendingPayment,
		Quote:           &quote,
		InstrumentID:    req.InstrumentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// A credit debit pays the booking in full, so it confirms immediately.
	// Money bookings stay pending until the payment callback confirms them.
	if req.InstrumentID != nil {
		cov, err := a.credits.Debit(ctx, *req.InstrumentID, reservation.ID, quote.Tier, req.StartTime, req.DurationMinutes, req.PlayerCount)
		if err != nil {
			return nil, err
		}
		metrics.RecordDebit(cov.HoursRequired)
		reservation.Status = domain.StatusConfirmed
	}

	if err := a.reservations.Create(ctx, reservation); err != nil {
		// Undo the debit so the instrument is not charged for a booking
		// that never existed.
		if req.InstrumentID != nil {
			if _, rerr := a.credits.Refund(ctx, *req.InstrumentID, reservation.ID); rerr != nil {
				log.Error(ctx, "failed to undo debit after create failure",
					zap.String("reservation_id", reservation.ID.String()), zap.Error(rerr))
			}
		}
		return nil, err
	}

	metrics.RecordReservationCreated(string(reservation.Status), string(quote.Tier))
	a.publish(ctx, events.TypeReservationCreated, reservation, map[string]interface{}{
		"total": quote.Total,
		"tier":  string(quote.Tier),
	})
	log.Info(ctx, "reservation created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("number", reservation.Number),
		zap.String("resource_id", reservation.ResourceID),
		zap.String("status", string(reservation.Status)))
	return reservation, nil
}

// Cancel cancels a pending or confirmed reservation. Money refunds are
// tiered by notice; credit hours always come back in full.
func (a *Allocator) Cancel(ctx context.Context, reservationID uuid.UUID, cancelledBy, reason string) (*domain.RefundOutcome, error) {
	r, err := a.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(r.Status, domain.StatusCancelled) {
		return nil, domain.NewInvalidTransitionError(r.Status, domain.StatusCancelled)
	}

	now := a.now()
	outcome := &domain.RefundOutcome{ReservationID: r.ID}

	if r.InstrumentID != nil {
		hours, err := a.credits.Refund(ctx, *r.InstrumentID, r.ID)
		if err != nil {
			return nil, err
		}
		if hours > 0 {
			metrics.LedgerRefunds.Inc()
		}
		outcome.HoursRefunded = hours
		outcome.InstrumentID = r.InstrumentID
	} else if r.Status == domain.StatusConfirmed && r.Quote != nil {
		pct := r.RefundPercent(now)
		outcome.RefundPercent = pct
		outcome.RefundAmount = r.Quote.Total * pct
	}

	from := r.Status
	r.Status = domain.StatusCancelled
	r.Cancellation = &domain.CancellationRecord{
		CancelledAt:      now,
		CancelledBy:      cancelledBy,
		Reason:           reason,
		RefundEligible:   outcome.RefundAmount > 0 || outcome.HoursRefunded > 0,
		RefundAmount:     outcome.RefundAmount,
		HoursBeforeStart: r.HoursUntilStart(now),
	}
	r.UpdatedAt = now
	if err := a.reservations.Update(ctx, r); err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(from), string(domain.StatusCancelled))
	a.publish(ctx, events.TypeReservationCancelled, r, map[string]interface{}{
		"refund_amount": outcome.RefundAmount,
		"hours":         outcome.HoursRefunded,
		"reason":        reason,
	})
	log.Info(ctx, "reservation cancelled",
		zap.String("reservation_id", r.ID.String()),
		zap.Float64("refund_amount", outcome.RefundAmount),
		zap.Float64("hours_refunded", outcome.HoursRefunded))
	return outcome, nil
}

// Transition moves a reservation along its lifecycle. Check-in is only
// accepted inside the window around the scheduled start.
func (a *Allocator) Transition(ctx context.Context, reservationID uuid.UUID, to domain.ReservationStatus) (*domain.Reservation, error) {
	r, err := a.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	// Cancellation carries refund obligations, so it has its own entry point.
	if to == domain.StatusCancelled {
		return nil, &domain.DomainError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: "cancellation must go through Cancel",
			Details: "from=" + string(r.Status) + ", to=" + string(to),
		}
	}

	if !domain.CanTransition(r.Status, to) {
		return nil, domain.NewInvalidTransitionError(r.Status, to)
	}

	now := a.now()
	if to == domain.StatusCheckedIn && !r.CanCheckIn(now, a.opts.CheckInWindow) {
		return nil, &domain.DomainError{
			Code:    domain.ErrCodeInvalidTransition,
			Message: "check-in is only allowed near the scheduled start",
			Details: "window is " + a.opts.CheckInWindow.String() + " around " + r.StartTime.Format(time.RFC3339),
		}
	}

	from := r.Status
	r.Status = to
	r.UpdatedAt = now
	if err := a.reservations.Update(ctx, r); err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(from), string(to))
	a.publish(ctx, eventTypeFor(to), r, nil)
	log.Info(ctx, "reservation transitioned",
		zap.String("reservation_id", r.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return r, nil
}

// Get returns a reservation by ID.
func (a *Allocator) Get(ctx context.Context, reservationID uuid.UUID) (*domain.Reservation, error) {
	return a.reservations.Get(ctx, reservationID)
}

// ListByUser returns the user's reservations.
func (a *Allocator) ListByUser(ctx context.Context, userID string) ([]*domain.Reservation, error) {
	return a.reservations.ListByUser(ctx, userID)
}

// Availability returns the busy slots of a resource in a window.
func (a *Allocator) Availability(ctx context.Context, resourceID string, from, to time.Time) (*Availability, error) {
	if _, err := a.resources.Get(ctx, resourceID); err != nil {
		return nil, err
	}
	return a.detector.Availability(ctx, resourceID, from, to)
}

// ExpireUnpaid cancels pending reservations whose payment window lapsed,
// freeing their slots. Returns how many were expired.
func (a *Allocator) ExpireUnpaid(ctx context.Context) (int, error) {
	cutoff := a.now().Add(-a.opts.PaymentTimeout)
	stale, err := a.reservations.ListPendingCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, r := range stale {
		if _, err := a.Cancel(ctx, r.ID, "system", "payment timeout"); err != nil {
			log.Error(ctx, "failed to expire unpaid reservation",
				zap.String("reservation_id", r.ID.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}

// FlagNoShows marks confirmed reservations as no-show once the check-in
// window past the start has lapsed. No refund is issued.
func (a *Allocator) FlagNoShows(ctx context.Context) (int, error) {
	now := a.now()
	cutoff := now.Add(-a.opts.CheckInWindow)
	missed, err := a.reservations.ListConfirmedStartedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, r := range missed {
		r.Status = domain.StatusNoShow
		r.UpdatedAt = now
		if err := a.reservations.Update(ctx, r); err != nil {
			log.Error(ctx, "failed to flag no-show",
				zap.String("reservation_id", r.ID.String()), zap.Error(err))
			continue
		}
		metrics.RecordTransition(string(domain.StatusConfirmed), string(domain.StatusNoShow))
		a.publish(ctx, events.TypeReservationNoShow, r, nil)
		flagged++
	}
	return flagged, nil
}

func (a *Allocator) publish(ctx context.Context, eventType string, r *domain.Reservation, data map[string]interface{}) {
	if err := a.publisher.Publish(ctx, events.NewEvent(eventType, r, data)); err != nil {
		log.Warn(ctx, "event publish failed",
			zap.String("type", eventType),
			zap.String("reservation_id", r.ID.String()),
			zap.Error(err))
	}
}

func eventTypeFor(status domain.ReservationStatus) string {
	switch status {
	case domain.StatusConfirmed:
		return events.TypeReservationConfirmed
	case domain.StatusCheckedIn:
		return events.TypeCheckIn
	case domain.StatusCompleted:
		return events.TypeReservationCompleted
	case domain.StatusNoShow:
		return events.TypeReservationNoShow
	default:
		return "reservation." + string(status)
	}
}
