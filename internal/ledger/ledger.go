package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/log"
)

// InstrumentStore persists credit instruments.
type InstrumentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*CreditInstrument, error)
	Save(ctx context.Context, instrument *CreditInstrument) error
	ListByUser(ctx context.Context, userID string) ([]*CreditInstrument, error)
}

// Ledger is the only writer of instrument balances. All debits and
// refunds go through it so per-instrument serialization holds even when
// two bookings race on the same pass.
type Ledger struct {
	store InstrumentStore

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New(store InstrumentStore) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// Coverage is the outcome of a successful coverage check.
type Coverage struct {
	InstrumentID   uuid.UUID `json:"instrument_id"`
	HoursRequired  float64   `json:"hours_required"`
	HoursRemaining float64   `json:"hours_remaining"`
}

// CheckCoverage verifies the instrument can pay for a booking without
// consuming anything. Validation order matters for the error the user
// sees: state first, then tier, then balance, then the daily cap.
func (l *Ledger) CheckCoverage(ctx context.Context, instrumentID uuid.UUID, tier domain.PriceTier, start time.Time, durationMinutes, playerCount int) (*Coverage, error) {
	ci, err := l.store.Get(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	return l.checkCoverage(ci, tier, start, durationMinutes, playerCount, time.Now())
}

func (l *Ledger) checkCoverage(ci *CreditInstrument, tier domain.PriceTier, start time.Time, durationMinutes, playerCount int, now time.Time) (*Coverage, error) {
	switch ci.Status(now) {
	case StatusExpired:
		return nil, domain.NewInstrumentExpiredError(ci.ID.String(), ci.ValidUntil)
	case StatusExhausted:
		return nil, domain.NewInstrumentExhaustedError(ci.ID.String())
	case StatusSuspended:
		return nil, domain.NewResourceUnavailableError(ci.ID.String(), "instrument suspended")
	}

	if !ci.CoversTier(tier) {
		return nil, domain.NewTierMismatchError(string(tier), ci.AllowedTiers)
	}

	required := ci.HoursRequired(durationMinutes, playerCount)
	remaining := ci.RemainingHours()
	if required > remaining {
		return nil, domain.NewInsufficientBalanceError(required, remaining)
	}

	if ci.DailyCapHours > 0 {
		usedToday := ci.UsedOn(start)
		if usedToday+required > ci.DailyCapHours {
			return nil, domain.NewDailyCapExceededError(ci.DailyCapHours, usedToday, required)
		}
	}

	return &Coverage{
		InstrumentID:   ci.ID,
		HoursRequired:  required,
		HoursRemaining: remaining,
	}, nil
}

// QuoteCoverage scans the user's instruments and picks one that can pay
// for the booking. Instruments expiring soonest are tried first, ID
// breaking ties, so repeated calls pick the same instrument. A nil
// Coverage with a nil error means nothing the user holds covers the
// booking; the caller falls back to a money booking.
func (l *Ledger) QuoteCoverage(ctx context.Context, userID string, tier domain.PriceTier, start time.Time, durationMinutes, playerCount int) (*Coverage, error) {
	instruments, err := l.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(instruments, func(i, j int) bool {
		if !instruments[i].ValidUntil.Equal(instruments[j].ValidUntil) {
			return instruments[i].ValidUntil.Before(instruments[j].ValidUntil)
		}
		return instruments[i].ID.String() < instruments[j].ID.String()
	})

	now := time.Now()
	for _, ci := range instruments {
		cov, err := l.checkCoverage(ci, tier, start, durationMinutes, playerCount, now)
		if err != nil {
			continue
		}
		return cov, nil
	}
	return nil, nil
}

// Debit consumes hours for a reservation. The debit re-runs the coverage
// check under the instrument lock, so a quote that passed moments ago can
// still be rejected here if a concurrent booking drained the balance.
// Debiting the same reservation twice is a no-op returning the recorded
// coverage.
func (l *Ledger) Debit(ctx context.Context, instrumentID, reservationID uuid.UUID, tier domain.PriceTier, start time.Time, durationMinutes, playerCount int) (*Coverage, error) {
	lock := l.lockFor(instrumentID)
	lock.Lock()
	defer lock.Unlock()

	ci, err := l.store.Get(ctx, instrumentID)
	if err != nil {
		return nil, err
	}

	if rec, ok := ci.Usage[reservationID]; ok && !rec.Refunded {
		return &Coverage{
			InstrumentID:   ci.ID,
			HoursRequired:  rec.Hours,
			HoursRemaining: ci.RemainingHours(),
		}, nil
	}

	now := time.Now()
	cov, err := l.checkCoverage(ci, tier, start, durationMinutes, playerCount, now)
	if err != nil {
		return nil, err
	}

	ci.UsedHours += cov.HoursRequired
	ci.Usage[reservationID] = UsageRecord{
		ReservationID: reservationID,
		Hours:         cov.HoursRequired,
		UsedAt:        start,
	}
	ci.UpdatedAt = now
	if err := l.store.Save(ctx, ci); err != nil {
		return nil, err
	}

	cov.HoursRemaining = ci.RemainingHours()
	log.Info(ctx, "instrument debited",
		zap.String("instrument_id", instrumentID.String()),
		zap.String("reservation_id", reservationID.String()),
		zap.Float64("hours", cov.HoursRequired),
		zap.Float64("remaining", cov.HoursRemaining))
	return cov, nil
}

// Refund returns the hours a reservation consumed. Credit hours are
// always refunded in full regardless of how close to the start the
// cancellation happens. Refunding an unknown or already-refunded
// reservation is a no-op returning zero hours.
func (l *Ledger) Refund(ctx context.Context, instrumentID, reservationID uuid.UUID) (float64, error) {
	lock := l.lockFor(instrumentID)
	lock.Lock()
	defer lock.Unlock()

	ci, err := l.store.Get(ctx, instrumentID)
	if err != nil {
		return 0, err
	}

	rec, ok := ci.Usage[reservationID]
	if !ok || rec.Refunded {
		return 0, nil
	}

	now := time.Now()
	ci.UsedHours -= rec.Hours
	if ci.UsedHours < 0 {
		ci.UsedHours = 0
	}
	rec.Refunded = true
	rec.RefundedAt = &now
	ci.Usage[reservationID] = rec
	ci.UpdatedAt = now
	if err := l.store.Save(ctx, ci); err != nil {
		return 0, err
	}

	log.Info(ctx, "instrument refunded",
		zap.String("instrument_id", instrumentID.String()),
		zap.String("reservation_id", reservationID.String()),
		zap.Float64("hours", rec.Hours),
		zap.Float64("remaining", ci.RemainingHours()))
	return rec.Hours, nil
}

// ListByUser returns the user's instruments.
func (l *Ledger) ListByUser(ctx context.Context, userID string) ([]*CreditInstrument, error) {
	return l.store.ListByUser(ctx, userID)
}

// Balance returns the instrument with its derived status.
func (l *Ledger) Balance(ctx context.Context, instrumentID uuid.UUID) (*CreditInstrument, InstrumentStatus, error) {
	ci, err := l.store.Get(ctx, instrumentID)
	if err != nil {
		return nil, "", err
	}
	return ci, ci.Status(time.Now()), nil
}
